package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBridgeMetricsRecordsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewBridgeMetrics(reg)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	done := m.Begin("get_balance")
	if got := testutil.ToFloat64(m.inflight); got != 1 {
		t.Fatalf("expected one inflight op, got %v", got)
	}
	done(OutcomeOK, "")
	m.Begin("get_balance")(OutcomeRejected, "lifecycle")

	if got := testutil.ToFloat64(m.inflight); got != 0 {
		t.Fatalf("expected no inflight ops, got %v", got)
	}
	if got := testutil.ToFloat64(m.ops.WithLabelValues("get_balance", OutcomeOK, "")); got != 1 {
		t.Fatalf("expected one ok op, got %v", got)
	}
	if got := testutil.ToFloat64(m.ops.WithLabelValues("get_balance", OutcomeRejected, "lifecycle")); got != 1 {
		t.Fatalf("expected one rejected op, got %v", got)
	}
}

func TestBridgeMetricsSessionStateIsExclusive(t *testing.T) {
	m, err := NewBridgeMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.SetSessionState("module_ready")
	m.SetSessionState("session_ready")

	if got := testutil.ToFloat64(m.state.WithLabelValues("module_ready")); got != 0 {
		t.Fatalf("expected previous state cleared, got %v", got)
	}
	if got := testutil.ToFloat64(m.state.WithLabelValues("session_ready")); got != 1 {
		t.Fatalf("expected current state set, got %v", got)
	}
}

func TestNilBridgeMetricsIsNoop(t *testing.T) {
	var m *BridgeMetrics
	m.Begin("x")(OutcomeError, "module")
	m.ModuleLoad("loaded")
	m.SetSessionState("failed")
}

func TestBridgeMetricsDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewBridgeMetrics(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewBridgeMetrics(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}
