package risk

import (
	"math"
	"time"
)

// flatEpsilon is the absolute quantity below which a position counts
// as flat.
const flatEpsilon = 0.001

// Position is the signed inventory held on one venue. Quantity > 0 is
// long, < 0 is short.
type Position struct {
	Venue     string    `json:"venue"`
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	AvgPrice  float64   `json:"avg_price"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Position) applyFill(quantity, price float64, now time.Time) {
	prev := p.Quantity
	if prev == 0 || (prev > 0) == (quantity > 0) {
		// Same direction, or opening from flat. The entry price is the
		// notional-weighted average across fills.
		total := prev*p.AvgPrice + quantity*price
		p.Quantity += quantity
		if math.Abs(p.Quantity) > flatEpsilon {
			p.AvgPrice = total / p.Quantity
		}
	} else {
		p.Quantity += quantity
		switch {
		case math.Abs(p.Quantity) < flatEpsilon:
			p.AvgPrice = 0
		case (p.Quantity > 0) != (prev > 0):
			// A flip abandons the old basis. The residual opens at the
			// flipping fill's price.
			p.AvgPrice = price
		}
	}
	p.UpdatedAt = now
}
