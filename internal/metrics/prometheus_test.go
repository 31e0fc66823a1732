package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCounters(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.Updates.Inc()
	prom.Metrics.Opportunities.Inc()
	prom.Metrics.TradesExecuted.Inc()
	prom.Metrics.TradesRejected.Inc()

	assertCounter(t, prom.updates, 1)
	assertCounter(t, prom.opportunities, 1)
	assertCounter(t, prom.tradesExecuted, 1)
	assertCounter(t, prom.tradesRejected, 1)
}

func TestPrometheusGauges(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.DailyPnL.Set(-42.5)
	prom.Metrics.TotalExposure.Set(99505)
	prom.Metrics.Drawdown.Set(0.12)

	if got := testutil.ToFloat64(prom.dailyPnL); got != -42.5 {
		t.Fatalf("expected -42.5, got %v", got)
	}
	if got := testutil.ToFloat64(prom.totalExposure); got != 99505.0 {
		t.Fatalf("expected 99505, got %v", got)
	}
	if got := testutil.ToFloat64(prom.drawdown); got != 0.12 {
		t.Fatalf("expected 0.12, got %v", got)
	}
}

func assertCounter(t *testing.T, counter prometheus.Counter, expected float64) {
	t.Helper()
	if got := testutil.ToFloat64(counter); got != expected {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}
