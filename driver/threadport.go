package driver

import "github.com/google/uuid"

// ThreadPort holds one goroutine's pinning state: the Port it currently
// holds (if any), the pool that Port belongs to, and whether a
// "request" is in progress. Per spec.md §4.5/§5, exactly one goroutine
// may ever touch a given ThreadPort; Go has no safe equivalent of Java
// thread-locals, so — per spec.md §9's design note for ownership-strict
// languages — callers obtain one explicitly from Connector.NewThreadPort
// and thread it through their own call sites, the same way an mgo
// Session is threaded through a goroutine's calls.
type ThreadPort struct {
	connector *Connector

	port         Port
	pool         *PortPool
	unpinnedPool *PortPool // origin pool of the most recent non-pinned acquire, for release/fail

	inRequest bool
	requestID uuid.UUID
}

func newThreadPort(c *Connector) *ThreadPort {
	return &ThreadPort{connector: c}
}

// acquire returns a Port to use for one operation, and the
// ServerAddress it is bound to. If slaveOK and a replica set is
// present and a secondary is selectable, a one-shot Port from that
// secondary's pool is returned (never pinned). Otherwise the current
// primary pool is used, reusing a pinned Port if it still belongs to
// the current primary pool, discarding it first if it belongs to a
// now-stale pool.
func (tp *ThreadPort) acquire(keep bool, slaveOK bool) (Port, ServerAddress, error) {
	c := tp.connector

	if slaveOK && c.replicaSet != nil {
		if addr, ok := c.replicaSet.aSecondary(); ok {
			pool, err := c.registry.Get(addr)
			if err == nil {
				if port, err := pool.Get(); err == nil {
					tp.unpinnedPool = pool
					return port, addr, nil
				}
			}
			// fall through to primary on any secondary-path failure
		}
	}

	primaryAddr, primaryPool := c.currentPrimary()

	if tp.port != nil {
		if tp.pool == primaryPool {
			return tp.port, primaryAddr, nil
		}
		// pinned port belongs to a now-stale pool; return it there.
		tp.pool.Done(tp.port)
		tp.port, tp.pool = nil, nil
	}

	if primaryPool == nil {
		return nil, ServerAddress{}, &InternalError{Message: "no primary pool available"}
	}

	port, err := primaryPool.Get()
	if err != nil {
		return nil, primaryAddr, err
	}

	if keep && tp.inRequest {
		tp.port, tp.pool = port, primaryPool
	} else {
		tp.unpinnedPool = primaryPool
	}
	return port, primaryAddr, nil
}

// release returns port to its pool unless it is the pinned port, in
// which case it stays pinned until requestDone or a failure.
func (tp *ThreadPort) release(port Port) {
	if tp.port != nil && samePort(tp.port, port) {
		return
	}
	if tp.unpinnedPool != nil {
		tp.unpinnedPool.Done(port)
		tp.unpinnedPool = nil
	}
}

// fail fences port: it is returned to its pool and closed, never to be
// reissued, and any pin on it is cleared.
func (tp *ThreadPort) fail(port Port, cause error) {
	if tp.port != nil && samePort(tp.port, port) {
		tp.pool.Error(port, cause)
		tp.port, tp.pool = nil, nil
		return
	}
	if tp.unpinnedPool != nil {
		tp.unpinnedPool.Error(port, cause)
		tp.unpinnedPool = nil
		return
	}
}

// requestStart begins a causally-ordered request region: every call/say
// this goroutine issues until requestDone shares one Port. Idempotent.
func (tp *ThreadPort) requestStart() {
	if tp.inRequest {
		return
	}
	tp.inRequest = true
	tp.requestID = uuid.New()
}

// requestEnsureConnection eagerly pins a Port from the current primary
// pool if a request is active but nothing is pinned yet. acquire pins
// it automatically because tp.inRequest is set.
func (tp *ThreadPort) requestEnsureConnection() error {
	if !tp.inRequest || tp.port != nil {
		return nil
	}
	_, _, err := tp.acquire(true, false)
	return err
}

// requestDone ends the request region, returning the pinned Port (if
// any) to its pool.
func (tp *ThreadPort) requestDone() {
	if tp.port != nil {
		tp.pool.Done(tp.port)
		tp.port, tp.pool = nil, nil
	}
	tp.inRequest = false
}

// samePort compares Ports by identity. Port implementations are
// pointers in practice (a Port owns a live socket); a value-typed Port
// would break the pinning invariant, so this is a deliberate identity
// comparison, not a value comparison.
func samePort(a, b Port) bool { return a == b }
