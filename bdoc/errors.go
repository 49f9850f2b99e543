package bdoc

import (
	"fmt"

	"github.com/pkg/errors"
)

// DecodeError is returned for any malformed or unsupported BDOC input.
// The original bytes consumed up to the point of failure are never
// recoverable; callers should treat the decoder instance as unusable
// and discard it.
type DecodeError struct {
	Kind  DecodeErrorKind
	Name  string // element name in progress, if any
	Byte  byte   // offending type byte, for UnsupportedType
	cause error
}

// DecodeErrorKind discriminates the class of decode failure, matching
// spec.md §7's DecodeError sub-kinds.
type DecodeErrorKind int

const (
	UnexpectedEOF DecodeErrorKind = iota
	UnsupportedType
	BadLength
	BadBinarySubtype
	LengthMismatch
	Reentrant
)

func (k DecodeErrorKind) String() string {
	switch k {
	case UnexpectedEOF:
		return "unexpected EOF"
	case UnsupportedType:
		return "unsupported type"
	case BadLength:
		return "bad length"
	case BadBinarySubtype:
		return "bad binary subtype"
	case LengthMismatch:
		return "length mismatch"
	case Reentrant:
		return "decoder already in use"
	default:
		return "unknown decode error"
	}
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case UnsupportedType:
		return fmt.Sprintf("bdoc: unsupported type 0x%02x for element %q", e.Byte, e.Name)
	case UnexpectedEOF:
		if e.Name != "" {
			return fmt.Sprintf("bdoc: unexpected EOF reading element %q: %v", e.Name, e.cause)
		}
		return fmt.Sprintf("bdoc: unexpected EOF: %v", e.cause)
	default:
		if e.Name != "" {
			return fmt.Sprintf("bdoc: %s (element %q)", e.Kind, e.Name)
		}
		return fmt.Sprintf("bdoc: %s", e.Kind)
	}
}

func (e *DecodeError) Unwrap() error { return e.cause }

func newDecodeError(kind DecodeErrorKind, name string, cause error) *DecodeError {
	return &DecodeError{Kind: kind, Name: name, cause: errors.WithStack(cause)}
}

func newUnsupportedType(b byte, name string) *DecodeError {
	return &DecodeError{Kind: UnsupportedType, Byte: b, Name: name}
}
