package driver

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the optional Prometheus instrumentation for a
// Connector and its pools. A nil *Metrics is valid everywhere and
// every method below no-ops on a nil receiver, so instrumentation is
// opt-in and never required for correctness (SPEC_FULL.md §2.5).
type Metrics struct {
	openPorts     *prometheus.GaugeVec
	inUsePorts    *prometheus.GaugeVec
	primaryFlips  prometheus.Counter
	probeFailures prometheus.Counter
	retries       prometheus.Counter
	networkErrors prometheus.Counter
	duplicateKeys prometheus.Counter
}

// NewMetrics constructs and registers the driver's metrics against
// reg. Pass nil to disable instrumentation entirely.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		openPorts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bdocdriver",
			Name:      "open_ports",
			Help:      "Ports currently open (idle or checked out) per address.",
		}, []string{"addr"}),
		inUsePorts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bdocdriver",
			Name:      "in_use_ports",
			Help:      "Ports currently checked out of the pool per address.",
		}, []string{"addr"}),
		primaryFlips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bdocdriver",
			Name:      "primary_flips_total",
			Help:      "Number of times the replica set's primary changed.",
		}),
		probeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bdocdriver",
			Name:      "probe_failures_total",
			Help:      "Number of failed replica-set member probes.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bdocdriver",
			Name:      "call_retries_total",
			Help:      "Number of call() redispatches after a network or not-master failure.",
		}),
		networkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bdocdriver",
			Name:      "network_errors_total",
			Help:      "Number of I/O failures on say()/call(), including retried and suppressed ones.",
		}),
		duplicateKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bdocdriver",
			Name:      "duplicate_key_errors_total",
			Help:      "Number of say() acknowledgements classified as duplicate-key.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.openPorts, m.inUsePorts, m.primaryFlips, m.probeFailures, m.retries, m.networkErrors, m.duplicateKeys,
	} {
		_ = reg.Register(c) // ignore AlreadyRegisteredError: re-registering the same Connector's metrics is harmless
	}
	return m
}

func (m *Metrics) setOpenPorts(addr ServerAddress, v int) {
	if m == nil {
		return
	}
	m.openPorts.WithLabelValues(addr.String()).Set(float64(v))
}

func (m *Metrics) setInUsePorts(addr ServerAddress, v int) {
	if m == nil {
		return
	}
	m.inUsePorts.WithLabelValues(addr.String()).Set(float64(v))
}

func (m *Metrics) incPrimaryFlip() {
	if m == nil {
		return
	}
	m.primaryFlips.Inc()
}

func (m *Metrics) incProbeFailure() {
	if m == nil {
		return
	}
	m.probeFailures.Inc()
}

func (m *Metrics) incRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) incNetworkError() {
	if m == nil {
		return
	}
	m.networkErrors.Inc()
}

func (m *Metrics) incDuplicateKey() {
	if m == nil {
		return
	}
	m.duplicateKeys.Inc()
}
