package feed

import "time"

// Profile parameterizes one simulated venue feed. The four built-in
// profiles differ only in these numbers; venue personality (tight and
// fast, wide and laggy) comes entirely from the data.
type Profile struct {
	Venue        string
	BasePrice    float64
	Volatility   float64
	SpreadMean   float64
	SpreadStdDev float64
	Quantity     float64
	MinInterval  time.Duration
	MaxInterval  time.Duration
	// LagMin/LagMax scale the mid price by a uniform factor to mimic a
	// venue that trails the market. Zero values disable the lag.
	LagMin float64
	LagMax float64
	// Seed pins the random stream for reproducible runs. Zero seeds
	// from the global source.
	Seed uint64
}

// DefaultProfiles returns the built-in venue set: binance tight and
// fast, coinbase a touch wider, kraken wide and laggy, bybit volatile
// with a drifting mid.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Venue:        "binance",
			BasePrice:    50000.0,
			Volatility:   0.001,
			SpreadMean:   0.3,
			SpreadStdDev: 0.1,
			Quantity:     150.0,
			MinInterval:  35 * time.Millisecond,
			MaxInterval:  45 * time.Millisecond,
		},
		{
			Venue:        "coinbase",
			BasePrice:    50000.0,
			Volatility:   0.0012,
			SpreadMean:   0.8,
			SpreadStdDev: 0.2,
			Quantity:     120.0,
			MinInterval:  50 * time.Millisecond,
			MaxInterval:  70 * time.Millisecond,
		},
		{
			Venue:        "kraken",
			BasePrice:    50000.0,
			Volatility:   0.0015,
			SpreadMean:   1.2,
			SpreadStdDev: 0.4,
			Quantity:     80.0,
			MinInterval:  70 * time.Millisecond,
			MaxInterval:  150 * time.Millisecond,
		},
		{
			Venue:        "bybit",
			BasePrice:    50000.0,
			Volatility:   0.002,
			SpreadMean:   0.5,
			SpreadStdDev: 0.3,
			Quantity:     200.0,
			MinInterval:  45 * time.Millisecond,
			MaxInterval:  65 * time.Millisecond,
			LagMin:       0.98,
			LagMax:       1.02,
		},
	}
}

// ProfileFor looks up a built-in profile by venue name.
func ProfileFor(venue string) (Profile, bool) {
	for _, p := range DefaultProfiles() {
		if p.Venue == venue {
			return p, true
		}
	}
	return Profile{}, false
}
