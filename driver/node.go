package driver

import "time"

// Node is one member of a replica set as most recently observed by a
// probe: its address, whether it self-reported as primary, how long
// the probe took, and when the probe happened. A probe older than
// ReplicaSetStatus's staleness window is discarded rather than trusted.
type Node struct {
	Addr      ServerAddress
	IsPrimary bool
	PingTime  time.Duration
	ProbedAt  time.Time
}

func (n Node) stale(window time.Duration, now time.Time) bool {
	return now.Sub(n.ProbedAt) > window
}

// ProbeResult is what a Prober reports about one node: its self-
// reported role, the peer member list it knows about (if any — an
// empty slice means "unknown", not "no other members"), and the round
// trip time of the probe.
type ProbeResult struct {
	IsPrimary bool
	Members   []ServerAddress
	PingTime  time.Duration
}

// Prober determines one node's role and the replica set's member list
// as that node sees it. Per spec.md §1, the actual wire command used to
// probe a node (e.g. an "ismaster"-style command) is a protocol detail
// outside this core's scope; Prober is the seam a caller fills in with
// one, typically backed by Port.RunCommand.
type Prober interface {
	Probe(addr ServerAddress) (ProbeResult, error)
}

// PortProber is a Prober built from a PoolRegistry: it checks out a
// Port for the target address, runs command against db, passes the
// CommandResult to extract, and returns the Port to its pool (or fences
// it on failure).
type PortProber struct {
	Registry *PoolRegistry
	DB       string
	Command  any
	Extract  func(CommandResult) (ProbeResult, error)
}

func (p *PortProber) Probe(addr ServerAddress) (ProbeResult, error) {
	pool, err := p.Registry.Get(addr)
	if err != nil {
		return ProbeResult{}, err
	}
	port, err := pool.Get()
	if err != nil {
		return ProbeResult{}, err
	}

	start := time.Now()
	result, err := port.RunCommand(p.DB, p.Command)
	elapsed := time.Since(start)
	if err != nil {
		pool.Error(port, err)
		return ProbeResult{}, err
	}
	pool.Done(port)

	pr, err := p.Extract(result)
	if err != nil {
		return ProbeResult{}, err
	}
	pr.PingTime = elapsed
	return pr, nil
}
