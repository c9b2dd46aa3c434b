package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lnworker"

// Outcome labels for bridge operations.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// BridgeMetrics records bridge activity. A nil *BridgeMetrics is valid and
// records nothing.
type BridgeMetrics struct {
	ops          *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	state        *prometheus.GaugeVec
	moduleLoads  *prometheus.CounterVec
	inflight     prometheus.Gauge
	sessionState string
}

func NewBridgeMetrics(reg prometheus.Registerer) (*BridgeMetrics, error) {
	m := &BridgeMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "operations_total",
			Help:      "Bridge operations by name and outcome.",
		}, []string{"op", "outcome", "category"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "operation_duration_seconds",
			Help:      "Time from dispatch to completion of bridge operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"op"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current wallet session state, 0 otherwise.",
		}, []string{"state"}),
		moduleLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "loads_total",
			Help:      "Capability module load attempts by result.",
		}, []string{"result"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "inflight_operations",
			Help:      "Operations dispatched and not yet completed.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.ops, m.latency, m.state, m.moduleLoads, m.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Begin marks an operation in flight and returns the func that completes it.
func (m *BridgeMetrics) Begin(op string) func(outcome, category string) {
	if m == nil {
		return func(string, string) {}
	}
	start := time.Now()
	m.inflight.Inc()
	return func(outcome, category string) {
		m.inflight.Dec()
		m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		m.ops.WithLabelValues(op, outcome, category).Inc()
	}
}

// ModuleLoad records a probe/load result: "probe_hit", "loaded" or "failed".
func (m *BridgeMetrics) ModuleLoad(result string) {
	if m == nil {
		return
	}
	m.moduleLoads.WithLabelValues(result).Inc()
}

// SetSessionState is only called from the bridge actor goroutine.
func (m *BridgeMetrics) SetSessionState(state string) {
	if m == nil {
		return
	}
	if m.sessionState != "" {
		m.state.WithLabelValues(m.sessionState).Set(0)
	}
	m.state.WithLabelValues(state).Set(1)
	m.sessionState = state
}
