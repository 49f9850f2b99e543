package driver

import (
	"sync/atomic"

	"go.uber.org/zap"
)

const commandCollection = "$cmd"

// Options configures a Connector.
type Options struct {
	PoolOptions PoolOptions
	// DefaultWriteConcern is used by Say when the caller passes a nil
	// WriteConcern. Supplements spec.md §4.6 per SPEC_FULL.md §4: the
	// original always required an explicit WriteConcern, but every
	// caller in practice configures one default and passes it
	// everywhere, so the core accepts nil as shorthand for it.
	DefaultWriteConcern WriteConcern
	// Retries bounds how many times Call redispatches a request after
	// a network failure or a "not master" response before giving up.
	// Default 2, matching DBTCPConnector's call() in the original
	// mongo-java-driver.
	Retries int
	// ReplicaSetOptions configures the background refresher when more
	// than one seed address is supplied.
	ReplicaSetOptions ReplicaSetStatusOptions
}

func (o *Options) setDefaults() {
	if o.Retries <= 0 {
		o.Retries = 2
	}
}

type primaryPair struct {
	addr ServerAddress
	pool *PortPool
}

// WriteResult is Say's outcome when no error is returned. A failed
// acknowledgement (duplicate key, write failure) is never represented
// here; it surfaces as a DuplicateKeyError or WriteFailureError
// instead.
type WriteResult struct {
	// Confirmed is true iff the write concern required and received an
	// acknowledgement. False means "sent, not confirmed" (WriteConcern
	// that doesn't call getLastError).
	Confirmed bool
	// Ok is false when the send or the acknowledgement command hit a
	// network failure that wc's RaiseNetworkErrors suppressed from
	// becoming an error return (spec.md §4.6.1 step 7). True for every
	// other result.
	Ok bool
	// Err carries a synthetic message when Ok is false, mirroring the
	// original driver's "NETWORK ERROR" getlasterror field instead of
	// propagating the underlying NetworkError.
	Err string
}

// Connector is the core's single caller-facing coordinator: it ties a
// PoolRegistry (and, in multi-address mode, a ReplicaSetStatus) to the
// say/call operations spec.md §4.6 describes, handling port pinning,
// retry, and primary failover.
type Connector struct {
	registry   *PoolRegistry
	replicaSet *ReplicaSetStatus
	metrics    *Metrics
	opts       Options

	primary atomic.Pointer[primaryPair]
	closed  atomic.Bool
}

// NewConnector constructs a Connector. A single address runs in
// single-node mode with no topology tracking; two or more run in
// replica-set mode, probing with prober and tracking primary/secondary
// state via ReplicaSetStatus.
func NewConnector(addrs []ServerAddress, factory PortFactory, prober Prober, opts Options, metrics *Metrics) (*Connector, error) {
	if len(addrs) == 0 {
		return nil, &InvalidArgumentError{Message: "address list is empty"}
	}
	opts.setDefaults()

	c := &Connector{
		registry: NewPoolRegistry(factory, opts.PoolOptions, metrics),
		metrics:  metrics,
		opts:     opts,
	}

	if len(addrs) == 1 {
		pool, err := c.registry.Get(addrs[0])
		if err != nil {
			c.registry.Close()
			return nil, err
		}
		c.primary.Store(&primaryPair{addr: addrs[0], pool: pool})
		return c, nil
	}

	if prober == nil {
		c.registry.Close()
		return nil, &InvalidArgumentError{Message: "prober is required in replica-set mode"}
	}
	rs, err := NewReplicaSetStatus(addrs, prober, opts.ReplicaSetOptions, metrics)
	if err != nil {
		c.registry.Close()
		return nil, err
	}
	c.replicaSet = rs
	c.refreshPrimary()
	return c, nil
}

// NewThreadPort returns a fresh per-goroutine handle. Callers must
// confine the returned *ThreadPort to a single goroutine.
func (c *Connector) NewThreadPort() *ThreadPort { return newThreadPort(c) }

func (c *Connector) currentPrimary() (ServerAddress, *PortPool) {
	p := c.primary.Load()
	if p == nil {
		return ServerAddress{}, nil
	}
	return p.addr, p.pool
}

func (c *Connector) setPrimary(addr ServerAddress, pool *PortPool) {
	c.primary.Store(&primaryPair{addr: addr, pool: pool})
}

func (c *Connector) refreshPrimary() {
	if c.replicaSet == nil {
		return
	}
	node, ok := c.replicaSet.ensureMaster()
	if !ok {
		c.primary.Store(nil)
		return
	}
	pool, err := c.registry.Get(node.Addr)
	if err != nil {
		logger.Warn("driver: failed to open pool for new primary", zap.Stringer("addr", node.Addr), zap.Error(err))
		return
	}
	c.setPrimary(node.Addr, pool)
}

func (c *Connector) onPossibleFailover(addr ServerAddress) {
	if c.replicaSet == nil {
		return
	}
	c.replicaSet.notifyPossibleFailover(addr)
	c.refreshPrimary()
}

// Address returns the current primary/single-node address. ok is false
// if no primary is currently known.
func (c *Connector) Address() (ServerAddress, bool) {
	addr, pool := c.currentPrimary()
	return addr, pool != nil
}

// ConnectPoint returns a description of what this Connector is
// currently talking to: the primary/single-node address if one is
// known, or the seed list in replica-set mode if none is.
func (c *Connector) ConnectPoint() string {
	if addr, ok := c.Address(); ok {
		return addr.String()
	}
	addrs := c.AllAddresses()
	if len(addrs) == 0 {
		return ""
	}
	s := addrs[0].String()
	for _, a := range addrs[1:] {
		s += "," + a.String()
	}
	return s
}

// AllAddresses returns every address the replica set currently knows
// about, or the single configured address in single-node mode.
func (c *Connector) AllAddresses() []ServerAddress {
	if c.replicaSet == nil {
		addr, _ := c.currentPrimary()
		if addr.IsZero() {
			return nil
		}
		return []ServerAddress{addr}
	}
	return c.replicaSet.allAddresses()
}

// Close releases every pool and stops the background refresher, if
// any. Further Say/Call calls fail with ErrClosed.
func (c *Connector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.replicaSet != nil {
		c.replicaSet.close()
	}
	return c.registry.Close()
}

// Say sends a one-way write message and, depending on wc, confirms it
// with an acknowledgement command. A nil wc uses opts.DefaultWriteConcern.
func (c *Connector) Say(tp *ThreadPort, db string, message Message, wc WriteConcern) (*WriteResult, error) {
	if c.closed.Load() {
		message.DoneWithMessage()
		return nil, ErrClosed
	}
	if wc == nil {
		wc = c.opts.DefaultWriteConcern
	}

	port, addr, err := tp.acquire(true, false)
	if err != nil {
		message.DoneWithMessage()
		return nil, err
	}

	if err := port.CheckAuth(db); err != nil {
		message.DoneWithMessage()
		tp.fail(port, err)
		return nil, newAuthError(db, err)
	}

	sendErr := port.Send(message)
	message.DoneWithMessage()
	if sendErr != nil {
		tp.fail(port, sendErr)
		c.onPossibleFailover(addr)
		c.metrics.incNetworkError()
		netErr := newNetworkError(addr, false, sendErr)
		if wc != nil && wc.RaiseNetworkErrors() {
			return nil, netErr
		}
		return &WriteResult{Ok: false, Err: "NETWORK ERROR"}, nil
	}

	if wc == nil || !wc.CallGetLastError() {
		tp.release(port)
		return &WriteResult{Confirmed: false, Ok: true}, nil
	}

	result, err := port.RunCommand(db, wc.Command())
	if err != nil {
		tp.fail(port, err)
		c.onPossibleFailover(addr)
		c.metrics.incNetworkError()
		netErr := newNetworkError(addr, false, err)
		if wc.RaiseNetworkErrors() {
			return nil, netErr
		}
		return &WriteResult{Ok: false, Err: "NETWORK ERROR"}, nil
	}
	tp.release(port)

	if ce := result.Err(); ce != nil {
		classified := classifyAckError(ce)
		if _, dup := classified.(*DuplicateKeyError); dup {
			c.metrics.incDuplicateKey()
		}
		return nil, classified
	}
	return &WriteResult{Confirmed: true, Ok: true}, nil
}

// Call issues a request/response message and returns the reply,
// transparently retrying up to opts.Retries times on I/O failure or a
// "not master" response. The $cmd pseudo-collection is never retried
// after an I/O failure: a command already applied server-side should not
// be blindly resent. A "not master" response is retried for any
// collection, $cmd included.
func (c *Connector) Call(tp *ThreadPort, db, collection string, message Message) (resp Response, err error) {
	defer message.DoneWithMessage()
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.callAttempt(tp, db, collection, message, c.opts.Retries)
}

func (c *Connector) callAttempt(tp *ThreadPort, db, collection string, message Message, retries int) (Response, error) {
	slaveOK := message.HasOption(SlaveOK)
	port, addr, err := tp.acquire(true, slaveOK)
	if err != nil {
		return nil, err
	}

	if err := port.CheckAuth(db); err != nil {
		tp.fail(port, err)
		return nil, newAuthError(db, err)
	}

	resp, err := port.Call(message, collection)
	if err != nil {
		tp.fail(port, err)
		c.onPossibleFailover(addr)
		c.metrics.incNetworkError()
		if collection != commandCollection && retries > 0 {
			c.metrics.incRetry()
			return c.callAttempt(tp, db, collection, message, retries-1)
		}
		return nil, newNetworkError(addr, retries <= 0, err)
	}
	tp.release(port)

	if se := resp.GetError(); se != nil && se.IsNotMaster() {
		c.onPossibleFailover(addr)
		if retries > 0 {
			c.metrics.incRetry()
			return c.callAttempt(tp, db, collection, message, retries-1)
		}
		return nil, &NotMasterExhaustedError{Addr: addr}
	}
	return resp, nil
}
