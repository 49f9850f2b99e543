package driver

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrClosed is returned by any Connector/PortPool/PoolRegistry
// operation invoked after Close has returned.
var ErrClosed = errors.New("driver: use of closed connection")

// ErrPoolExhausted is returned by PortPool.Get when the pool enforces
// a size ceiling (PoolOptions.MaxSize) and every Port is already
// checked out. Blocking on exhaustion is a pool implementation
// choice spec.md §5 leaves open; this pool chooses to fail fast
// instead.
var ErrPoolExhausted = errors.New("driver: port pool exhausted")

// InvalidArgumentError reports a malformed Connector construction
// argument, e.g. a nil or empty address list.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string { return "driver: invalid argument: " + e.Message }

// NetworkError wraps an I/O failure on a Port's send/receive path. Per
// spec.md §7, the underlying Port is always fenced before this error
// reaches the caller.
type NetworkError struct {
	Addr             ServerAddress
	RetriesExhausted bool
	cause            error
}

func (e *NetworkError) Error() string {
	if e.RetriesExhausted {
		return fmt.Sprintf("driver: network error talking to %s (retries exhausted): %v", e.Addr, e.cause)
	}
	return fmt.Sprintf("driver: network error talking to %s: %v", e.Addr, e.cause)
}

func (e *NetworkError) Unwrap() error { return e.cause }

func newNetworkError(addr ServerAddress, retriesExhausted bool, cause error) *NetworkError {
	return &NetworkError{Addr: addr, RetriesExhausted: retriesExhausted, cause: errors.WithStack(cause)}
}

// AuthError wraps a failure from Port.CheckAuth.
type AuthError struct {
	DB    string
	cause error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("driver: auth failed for db %q: %v", e.DB, e.cause)
}

func (e *AuthError) Unwrap() error { return e.cause }

func newAuthError(db string, cause error) *AuthError {
	return &AuthError{DB: db, cause: errors.WithStack(cause)}
}

// NotMasterExhaustedError is raised when a call's retry budget is
// consumed while the replica set keeps refusing the write/read with
// "not master".
type NotMasterExhaustedError struct {
	Addr ServerAddress
}

func (e *NotMasterExhaustedError) Error() string {
	return fmt.Sprintf("driver: not master, retries exhausted (last tried %s)", e.Addr)
}

// DuplicateKeyError is a server acknowledgement error classified as a
// duplicate-key violation: code 11000/11001, or a message prefixed
// E11000/E11001.
type DuplicateKeyError struct {
	Code    int
	Message string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("driver: duplicate key (code %d): %s", e.Code, e.Message)
}

// WriteFailureError is any other non-null "err" reported by an
// acknowledgement command.
type WriteFailureError struct {
	Code    int
	Message string
}

func (e *WriteFailureError) Error() string {
	return fmt.Sprintf("driver: write failed (code %d): %s", e.Code, e.Message)
}

// InternalError reports a core invariant violation, e.g. no master
// reachable after a replica-set refresh in multi-address mode.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string { return "driver: internal: " + e.Message }

func classifyAckError(ce *CommandError) error {
	if ce.Code == 11000 || ce.Code == 11001 || strings.HasPrefix(ce.Message, "E11000") || strings.HasPrefix(ce.Message, "E11001") {
		return &DuplicateKeyError{Code: ce.Code, Message: ce.Message}
	}
	return &WriteFailureError{Code: ce.Code, Message: ce.Message}
}
