package risk

import (
	"fmt"
	"math"
)

// Report is a point-in-time summary of the ledger, suitable for the
// periodic risk log line and the end-of-session summary.
type Report struct {
	TotalExposure     float64
	DailyPnL          float64
	TotalPnL          float64
	CurrentDrawdown   float64
	ActivePositions   int
	TotalTrades       int
	WinRate           float64
	AvgProfitPerTrade float64

	OpportunitiesSeen     uint64
	OpportunitiesTaken    uint64
	OpportunitiesRejected uint64
	TakeRate              float64
}

func (e *Engine) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := Report{
		DailyPnL:              e.dailyPnL,
		TotalPnL:              e.totalPnL,
		TotalTrades:           len(e.trades),
		OpportunitiesSeen:     e.seen.Load(),
		OpportunitiesTaken:    e.taken.Load(),
		OpportunitiesRejected: e.rejected.Load(),
	}

	for _, pos := range e.positions {
		r.TotalExposure += math.Abs(pos.Quantity * pos.AvgPrice)
		if math.Abs(pos.Quantity) > flatEpsilon {
			r.ActivePositions++
		}
	}

	balance := e.highWater + e.totalPnL
	r.CurrentDrawdown = (e.highWater - balance) / e.highWater

	if len(e.trades) > 0 {
		var total float64
		wins := 0
		for _, t := range e.trades {
			total += t.NetPnL
			if t.NetPnL > 0 {
				wins++
			}
		}
		r.WinRate = float64(wins) / float64(len(e.trades))
		r.AvgProfitPerTrade = total / float64(len(e.trades))
	}
	if r.OpportunitiesSeen > 0 {
		r.TakeRate = float64(r.OpportunitiesTaken) / float64(r.OpportunitiesSeen)
	}
	return r
}

func (r Report) String() string {
	return fmt.Sprintf(
		"daily_pnl=%.2f total_pnl=%.2f exposure=%.2f drawdown=%.2f%% positions=%d trades=%d win_rate=%.1f%% seen=%d taken=%d rejected=%d take_rate=%.1f%%",
		r.DailyPnL, r.TotalPnL, r.TotalExposure, r.CurrentDrawdown*100,
		r.ActivePositions, r.TotalTrades, r.WinRate*100,
		r.OpportunitiesSeen, r.OpportunitiesTaken, r.OpportunitiesRejected, r.TakeRate*100)
}
