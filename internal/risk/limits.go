package risk

// Limits bound what the engine will approve. All six values are
// swappable at runtime through Engine.SetLimits and take effect on the
// next assessment.
type Limits struct {
	MaxPositionPerVenue   float64
	MaxTotalExposure      float64
	MaxSingleTradeSize    float64
	MinProfitAfterFeesBPS float64
	MaxDailyLoss          float64
	MaxDrawdownFraction   float64
}

// Named limit profiles. Conservative carries the tight desk defaults,
// aggressive the liberal simulation settings.
const (
	ProfileConservative = "conservative"
	ProfileAggressive   = "aggressive"
)

func ConservativeLimits() Limits {
	return Limits{
		MaxPositionPerVenue:   1.0,
		MaxTotalExposure:      5.0,
		MaxSingleTradeSize:    0.1,
		MinProfitAfterFeesBPS: 10.0,
		MaxDailyLoss:          1000.0,
		MaxDrawdownFraction:   0.05,
	}
}

func AggressiveLimits() Limits {
	return Limits{
		MaxPositionPerVenue:   5.0,
		MaxTotalExposure:      500000.0,
		MaxSingleTradeSize:    1.0,
		MinProfitAfterFeesBPS: 2.0,
		MaxDailyLoss:          2000.0,
		MaxDrawdownFraction:   0.10,
	}
}

// ProfileLimits resolves a profile name to its limit set.
func ProfileLimits(name string) (Limits, bool) {
	switch name {
	case ProfileConservative:
		return ConservativeLimits(), true
	case ProfileAggressive:
		return AggressiveLimits(), true
	}
	return Limits{}, false
}
