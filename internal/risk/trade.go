package risk

import (
	"time"

	"arb-sim-bot/internal/detect"
)

// Status tracks a trade's lifecycle. The simulator only ever produces
// StatusSimulated; the remaining states exist for a live execution
// path.
type Status string

const (
	StatusSimulated Status = "simulated"
	StatusPending   Status = "pending"
	StatusFilled    Status = "filled"
	StatusFailed    Status = "failed"
)

// defaultFeeRate is the flat per-side taker fee applied to both
// legs' notional unless Settings.FeeRate overrides it.
const defaultFeeRate = 0.001

// Trade is an immutable record of one executed arbitrage pair.
type Trade struct {
	ID        uint64    `json:"id"`
	Time      time.Time `json:"time"`
	Symbol    string    `json:"symbol"`
	BuyVenue  string    `json:"buy_venue"`
	SellVenue string    `json:"sell_venue"`
	Quantity  float64   `json:"quantity"`
	BuyPrice  float64   `json:"buy_price"`
	SellPrice float64   `json:"sell_price"`
	GrossPnL  float64   `json:"gross_pnl"`
	Fees      float64   `json:"fees"`
	NetPnL    float64   `json:"net_pnl"`
	Status    Status    `json:"status"`
}

func newTrade(id uint64, opp detect.Opportunity, quantity, feeRate float64, now time.Time) Trade {
	gross := (opp.SellPrice - opp.BuyPrice) * quantity
	fees := tradeFees(quantity, opp.BuyPrice, opp.SellPrice, feeRate)
	return Trade{
		ID:        id,
		Time:      now,
		Symbol:    opp.Symbol,
		BuyVenue:  opp.BuyVenue,
		SellVenue: opp.SellVenue,
		Quantity:  quantity,
		BuyPrice:  opp.BuyPrice,
		SellPrice: opp.SellPrice,
		GrossPnL:  gross,
		Fees:      fees,
		NetPnL:    gross - fees,
		Status:    StatusSimulated,
	}
}

func tradeFees(quantity, buyPrice, sellPrice, feeRate float64) float64 {
	return (quantity*buyPrice + quantity*sellPrice) * feeRate
}
