package driver

import "sync"

// PoolRegistry maps a ServerAddress to its PortPool, creating entries
// lazily on first use and closing them all together.
type PoolRegistry struct {
	factory PortFactory
	opts    PoolOptions
	metrics *Metrics

	mu     sync.Mutex
	pools  map[ServerAddress]*PortPool
	closed bool
}

func NewPoolRegistry(factory PortFactory, opts PoolOptions, metrics *Metrics) *PoolRegistry {
	return &PoolRegistry{
		factory: factory,
		opts:    opts,
		metrics: metrics,
		pools:   make(map[ServerAddress]*PortPool),
	}
}

// Get returns addr's pool, creating it on first request.
func (r *PoolRegistry) Get(addr ServerAddress) (*PortPool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if pool, ok := r.pools[addr]; ok {
		return pool, nil
	}
	pool := NewPortPool(addr, r.factory, r.opts, r.metrics)
	r.pools[addr] = pool
	return pool, nil
}

// Close closes every pool the registry has created. Further Get calls
// fail with ErrClosed.
func (r *PoolRegistry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pools := r.pools
	r.pools = nil
	r.mu.Unlock()

	for _, pool := range pools {
		pool.Close()
	}
	return nil
}
