package driver

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// PoolOptions configures a PortPool. The zero value is a usable,
// unbounded pool with no idle/lifetime eviction — the same shape as
// rkive's Client, which holds exactly dfltConns connections and never
// retires one on age.
type PoolOptions struct {
	// MaxSize caps the number of Ports concurrently checked out of the
	// pool. Zero means unbounded. Acquisition beyond the ceiling fails
	// fast with ErrPoolExhausted rather than blocking; spec.md §5
	// leaves the blocking-vs-failing choice to the pool implementation.
	MaxSize int

	// MaxIdleTime retires a Port that has sat idle in the pool longer
	// than this, the next time it would otherwise be handed out.
	// Zero disables idle eviction.
	MaxIdleTime time.Duration

	// MaxLifetime retires a Port once it has existed longer than this,
	// regardless of use, mirroring DBPort's age bookkeeping in the
	// original mongo-java-driver (SPEC_FULL.md §4).
	// Zero disables lifetime eviction.
	MaxLifetime time.Duration
}

type pooledPort struct {
	port      Port
	createdAt time.Time
	idleSince time.Time
}

// PortPool owns a bounded multiset of Ports for one ServerAddress. It
// hands out at most one reference per Port at a time: every Port
// returned by Get is subsequently Done or Error'd back, never both,
// never neither.
type PortPool struct {
	addr    ServerAddress
	factory PortFactory
	opts    PoolOptions
	metrics *Metrics

	mu       sync.Mutex
	idle     []pooledPort
	created  map[Port]time.Time // dial time, keyed by Port, survives Get/Done cycles
	outCount int
	closed   bool
}

// NewPortPool constructs a pool for addr. factory dials a fresh Port
// on demand; it is called without holding the pool's lock.
func NewPortPool(addr ServerAddress, factory PortFactory, opts PoolOptions, metrics *Metrics) *PortPool {
	return &PortPool{addr: addr, factory: factory, opts: opts, metrics: metrics, created: make(map[Port]time.Time)}
}

func (p *PortPool) Address() ServerAddress { return p.addr }

// Get returns a Port bound to p's address, reusing an idle one when
// available and dialing a fresh one otherwise.
func (p *PortPool) Get() (Port, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	for len(p.idle) > 0 {
		pp := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if p.expired(pp) {
			delete(p.created, pp.port)
			p.mu.Unlock()
			pp.port.Close()
			p.mu.Lock()
			continue
		}

		p.outCount++
		p.reportLocked()
		p.mu.Unlock()
		return pp.port, nil
	}

	if p.opts.MaxSize > 0 && p.outCount >= p.opts.MaxSize {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	p.outCount++
	p.reportLocked()
	p.mu.Unlock()

	port, err := p.factory(p.addr)
	if err != nil {
		p.mu.Lock()
		p.outCount--
		p.reportLocked()
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Lock()
	p.created[port] = time.Now()
	p.mu.Unlock()
	return port, nil
}

func (p *PortPool) expired(pp pooledPort) bool {
	now := time.Now()
	if p.opts.MaxLifetime > 0 && now.Sub(pp.createdAt) > p.opts.MaxLifetime {
		return true
	}
	if p.opts.MaxIdleTime > 0 && now.Sub(pp.idleSince) > p.opts.MaxIdleTime {
		return true
	}
	return false
}

// Done returns port to the pool for reuse by a subsequent Get.
func (p *PortPool) Done(port Port) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		port.Close()
		return
	}
	p.outCount--
	createdAt, ok := p.created[port]
	if !ok {
		createdAt = time.Now()
		p.created[port] = createdAt
	}
	p.idle = append(p.idle, pooledPort{port: port, createdAt: createdAt, idleSince: time.Now()})
	p.reportLocked()
	p.mu.Unlock()
}

// Error fences port: it is closed and discarded, and will never be
// reissued by a later Get. Per spec.md §4.3, this is the only path
// that permanently retires a Port outside pool closure.
func (p *PortPool) Error(port Port, cause error) {
	p.mu.Lock()
	p.outCount--
	delete(p.created, port)
	p.reportLocked()
	p.mu.Unlock()

	logger.Warn("driver: fencing port after error", zap.Stringer("addr", p.addr), zap.Error(cause))
	if err := port.Close(); err != nil {
		logger.Warn("driver: error closing fenced port", zap.Stringer("addr", p.addr), zap.Error(err))
	}
}

// Close closes every idle Port and marks the pool closed. Checked-out
// Ports are not waited on; their eventual Done/Error calls simply close
// them instead of returning them to the idle set.
func (p *PortPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	for _, pp := range idle {
		delete(p.created, pp.port)
	}
	p.mu.Unlock()

	for _, pp := range idle {
		pp.port.Close()
	}
	return nil
}

func (p *PortPool) reportLocked() {
	if p.metrics == nil {
		return
	}
	p.metrics.setOpenPorts(p.addr, len(p.idle)+p.outCount)
	p.metrics.setInUsePorts(p.addr, p.outCount)
}
