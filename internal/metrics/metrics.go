package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

type Metrics struct {
	Updates        Counter
	Opportunities  Counter
	TradesExecuted Counter
	TradesRejected Counter

	DailyPnL      Gauge
	TotalExposure Gauge
	Drawdown      Gauge
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	c := noopCounter{}
	g := noopGauge{}
	return &Metrics{
		Updates:        c,
		Opportunities:  c,
		TradesExecuted: c,
		TradesRejected: c,
		DailyPnL:       g,
		TotalExposure:  g,
		Drawdown:       g,
	}
}
