package driver

import (
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ReplicaSetStatusOptions configures the background refresher.
type ReplicaSetStatusOptions struct {
	// RefreshInterval is the steady-state interval between probe
	// rounds. Default 10s.
	RefreshInterval time.Duration
	// StalenessWindow bounds how old a probe may be before it is
	// discarded rather than trusted as the current primary/secondary
	// set. Default 90s.
	StalenessWindow time.Duration
}

func (o *ReplicaSetStatusOptions) setDefaults() {
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = 10 * time.Second
	}
	if o.StalenessWindow <= 0 {
		o.StalenessWindow = 90 * time.Second
	}
}

// ReplicaSetStatus tracks cluster topology for a replicated cluster: an
// ordered seed list, and a derived view of the current primary and
// reachable secondaries, refreshed by a background task. ensureMaster
// never returns a stale secondary: a node is offered as primary only
// if its most recent probe, within the staleness window, self-reports
// primary.
type ReplicaSetStatus struct {
	prober  Prober
	opts    ReplicaSetStatusOptions
	metrics *Metrics

	mu      sync.RWMutex
	nodes   map[ServerAddress]Node
	primary ServerAddress
	rrIndex int

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewReplicaSetStatus constructs a tracker over a non-empty seed list
// and starts its background refresher.
func NewReplicaSetStatus(seeds []ServerAddress, prober Prober, opts ReplicaSetStatusOptions, metrics *Metrics) (*ReplicaSetStatus, error) {
	if len(seeds) == 0 {
		return nil, &InvalidArgumentError{Message: "replica set seed list is empty"}
	}
	opts.setDefaults()

	rs := &ReplicaSetStatus{
		prober:  prober,
		opts:    opts,
		metrics: metrics,
		nodes:   make(map[ServerAddress]Node, len(seeds)),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, addr := range seeds {
		rs.nodes[addr] = Node{Addr: addr}
	}

	rs.refreshOnce()
	go rs.refreshLoop()
	return rs, nil
}

func (rs *ReplicaSetStatus) refreshLoop() {
	defer close(rs.done)
	ticker := time.NewTicker(rs.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rs.stop:
			return
		case <-ticker.C:
			rs.refreshOnce()
		case <-rs.wake:
			rs.refreshOnce()
		}
	}
}

// refreshOnce probes every currently known node, retrying each probe
// with jittered backoff rather than a single fixed attempt, and
// updates the tracked topology from the results.
func (rs *ReplicaSetStatus) refreshOnce() {
	rs.mu.RLock()
	targets := make([]ServerAddress, 0, len(rs.nodes))
	for addr := range rs.nodes {
		targets = append(targets, addr)
	}
	rs.mu.RUnlock()

	now := time.Now()
	for _, addr := range targets {
		result, err := rs.probeWithBackoff(addr)
		if err != nil {
			rs.metrics.incProbeFailure()
			logger.Debug("driver: probe failed", zap.Stringer("addr", addr), zap.Error(err))
			rs.mu.Lock()
			if n, ok := rs.nodes[addr]; ok {
				n.IsPrimary = false
				rs.nodes[addr] = n
			}
			rs.mu.Unlock()
			continue
		}

		rs.mu.Lock()
		rs.nodes[addr] = Node{Addr: addr, IsPrimary: result.IsPrimary, PingTime: result.PingTime, ProbedAt: now}
		for _, member := range result.Members {
			if _, known := rs.nodes[member]; !known {
				rs.nodes[member] = Node{Addr: member}
			}
		}
		if result.IsPrimary && rs.primary != addr {
			old := rs.primary
			rs.primary = addr
			if !old.IsZero() {
				rs.metrics.incPrimaryFlip()
			}
			logger.Info("driver: primary changed", zap.Stringer("addr", addr))
		} else if !result.IsPrimary && rs.primary == addr {
			rs.primary = ServerAddress{}
		}
		rs.mu.Unlock()
	}
}

func (rs *ReplicaSetStatus) probeWithBackoff(addr ServerAddress) (ProbeResult, error) {
	var result ProbeResult
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	op := func() error {
		r, err := rs.prober.Probe(addr)
		if err != nil {
			return err
		}
		result = r
		return nil
	}
	err := backoff.Retry(op, policy)
	return result, err
}

// ensureMaster forces a refresh if the current primary is unknown or
// stale, then returns the primary node. ok is false if no node is
// currently known to be primary within the staleness window.
func (rs *ReplicaSetStatus) ensureMaster() (Node, bool) {
	if n, ok := rs.currentPrimary(); ok {
		return n, true
	}
	rs.refreshOnce()
	return rs.currentPrimary()
}

func (rs *ReplicaSetStatus) currentPrimary() (Node, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	if rs.primary.IsZero() {
		return Node{}, false
	}
	n, ok := rs.nodes[rs.primary]
	if !ok || !n.IsPrimary || n.stale(rs.opts.StalenessWindow, time.Now()) {
		return Node{}, false
	}
	return n, true
}

// aSecondary returns any secondary believed healthy, round-robin
// across the fair set. ok is false if none qualify.
func (rs *ReplicaSetStatus) aSecondary() (ServerAddress, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	now := time.Now()
	var candidates []ServerAddress
	for addr, n := range rs.nodes {
		if addr == rs.primary {
			continue
		}
		if n.ProbedAt.IsZero() || n.IsPrimary || n.stale(rs.opts.StalenessWindow, now) {
			continue
		}
		candidates = append(candidates, addr)
	}
	if len(candidates) == 0 {
		return ServerAddress{}, false
	}
	// Sorted so that rrIndex advances over a stable ordering — ranging
	// over rs.nodes directly would reshuffle candidates on every call
	// and defeat round-robin fairness entirely.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Host != candidates[j].Host {
			return candidates[i].Host < candidates[j].Host
		}
		return candidates[i].Port < candidates[j].Port
	})
	rs.rrIndex = (rs.rrIndex + 1) % len(candidates)
	return candidates[rs.rrIndex], true
}

// allAddresses returns every address currently known, primary or not.
func (rs *ReplicaSetStatus) allAddresses() []ServerAddress {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	addrs := make([]ServerAddress, 0, len(rs.nodes))
	for addr := range rs.nodes {
		addrs = append(addrs, addr)
	}
	return addrs
}

// notifyPossibleFailover forces the named node to be re-probed on the
// next refresh round rather than trusted until it next ages out,
// called by the Connector when that node answered "not master" or
// failed outright.
func (rs *ReplicaSetStatus) notifyPossibleFailover(addr ServerAddress) {
	rs.mu.Lock()
	if n, ok := rs.nodes[addr]; ok {
		n.ProbedAt = time.Time{}
		rs.nodes[addr] = n
	}
	if rs.primary == addr {
		rs.primary = ServerAddress{}
	}
	rs.mu.Unlock()

	select {
	case rs.wake <- struct{}{}:
	default:
	}
}

// close stops the background refresher and waits for it to exit.
func (rs *ReplicaSetStatus) close() {
	close(rs.stop)
	<-rs.done
}
