package driver

// This file specifies the external contracts spec.md §6 leaves to
// collaborators the core never owns: the wire socket, the outbound
// message encoder, and the write-concern acknowledgement command. The
// core only ever calls through these interfaces.

// MessageOption is a bit in a Message's options bitset. Only SlaveOK is
// ever interrogated by the core (spec.md §6).
type MessageOption uint32

const SlaveOK MessageOption = 1 << 0

// Message is an outbound wire message, already encoded by an external
// collaborator. DoneWithMessage must be invoked exactly once after the
// message is no longer needed, regardless of whether the send
// succeeded.
type Message interface {
	HasOption(opt MessageOption) bool
	DoneWithMessage()
}

// ServerError is an error a server returned inside a Response, as
// opposed to an I/O failure talking to the server at all.
type ServerError interface {
	error
	IsNotMaster() bool
}

// Response is what a Port.Call returns: the framed reply to one
// request.
type Response interface {
	GetError() ServerError // nil if the server reported no error
}

// CommandError is the result of a server command that failed, as
// reported by an acknowledgement command's "err"/"code" fields.
type CommandError struct {
	Code    int
	Message string
}

// CommandResult is what a Port.RunCommand or a write-concern
// acknowledgement command returns.
type CommandResult interface {
	// Err returns the command's err field, or nil if the command
	// reported no error.
	Err() *CommandError
}

// WriteConcern governs whether and how a write's outcome is confirmed.
type WriteConcern interface {
	// CallGetLastError reports whether say() should issue the
	// acknowledgement command at all.
	CallGetLastError() bool
	// RaiseNetworkErrors reports whether an I/O failure during the send
	// or the acknowledgement should surface as a NetworkError rather than
	// a synthetic failed WriteResult.
	RaiseNetworkErrors() bool
	// Command returns the acknowledgement command document to run
	// against the same db the write targeted.
	Command() any
}

// Port is an owned, stateful wire connection bound to one
// ServerAddress. It is never shared concurrently: whichever code path
// acquires a Port from a pool holds it exclusively until Done or Error
// returns it. Per spec.md §1, the concrete socket implementation is an
// external collaborator; the core only consumes this interface.
type Port interface {
	Send(msg Message) error
	Call(msg Message, collection string) (Response, error)
	RunCommand(db string, command any) (CommandResult, error)
	CheckAuth(db string) error
	Close() error
}

// PortFactory dials a fresh Port bound to addr. PortPool calls it on
// demand when no idle Port is available.
type PortFactory func(addr ServerAddress) (Port, error)
