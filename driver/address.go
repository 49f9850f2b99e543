package driver

import "fmt"

// ServerAddress identifies one server by host and port. It is a plain
// comparable value: equality and map-key use are by value everywhere,
// never by pointer identity, per SPEC_FULL.md §5's resolution of
// spec.md §9's open question on ServerAddress equality.
type ServerAddress struct {
	Host string
	Port int
}

func (a ServerAddress) String() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

// IsZero reports whether a is the zero ServerAddress, used to detect
// an absent current-primary.
func (a ServerAddress) IsZero() bool { return a.Host == "" && a.Port == 0 }
