package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "arb_sim_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) {
	p.gauge.Set(v)
}

type Prometheus struct {
	Metrics *Metrics

	registry       *prometheus.Registry
	updates        prometheus.Counter
	opportunities  prometheus.Counter
	tradesExecuted prometheus.Counter
	tradesRejected prometheus.Counter
	dailyPnL       prometheus.Gauge
	totalExposure  prometheus.Gauge
	drawdown       prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	updates := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "updates_total",
		Help:      "Total number of market updates processed.",
	})
	opportunities := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "opportunities_total",
		Help:      "Total number of arbitrage opportunities detected.",
	})
	tradesExecuted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "trades_executed_total",
		Help:      "Total number of approved simulated trades.",
	})
	tradesRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "trades_rejected_total",
		Help:      "Total number of risk-rejected opportunities.",
	})
	dailyPnL := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "daily_pnl_usd",
		Help:      "Realized P&L accumulated today.",
	})
	totalExposure := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "total_exposure_usd",
		Help:      "Absolute dollar exposure across all venue positions.",
	})
	drawdown := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "drawdown_fraction",
		Help:      "Current drawdown from the high-water balance.",
	})

	registry.MustRegister(updates, opportunities, tradesExecuted, tradesRejected,
		dailyPnL, totalExposure, drawdown)

	m := &Metrics{
		Updates:        promCounter{updates},
		Opportunities:  promCounter{opportunities},
		TradesExecuted: promCounter{tradesExecuted},
		TradesRejected: promCounter{tradesRejected},
		DailyPnL:       promGauge{dailyPnL},
		TotalExposure:  promGauge{totalExposure},
		Drawdown:       promGauge{drawdown},
	}

	return &Prometheus{
		Metrics:        m,
		registry:       registry,
		updates:        updates,
		opportunities:  opportunities,
		tradesExecuted: tradesExecuted,
		tradesRejected: tradesRejected,
		dailyPnL:       dailyPnL,
		totalExposure:  totalExposure,
		drawdown:       drawdown,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
