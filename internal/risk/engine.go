// Package risk sizes and gates trades against the opportunities the
// detector reports. The engine owns the position ledger, realized
// P&L, the trade history, and the high-water balance used for
// drawdown checks; that whole domain mutates under one mutex so an
// assess-then-execute sequence is never interleaved with another
// caller's.
package risk

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"arb-sim-bot/internal/detect"
)

// Policy selects how much of the engine runs per assessment.
type Policy string

const (
	// PolicyStandard runs sizing, fee simulation, daily loss, and
	// drawdown checks.
	PolicyStandard Policy = "standard"
	// PolicyLite applies a flat fee haircut against the profit floor
	// and sizes every trade at the single-trade cap. Daily loss and
	// drawdown are not checked.
	PolicyLite Policy = "lite"
)

// Code enumerates assessment outcomes. The integer values are part of
// the decision record consumed by the dashboard bridge and must not
// be reordered.
type Code int

const (
	Approved Code = iota
	RejectedPositionLimit
	RejectedExposureLimit
	RejectedTradeSize
	RejectedProfitTooLow
	RejectedDailyLoss
	RejectedDrawdown
	// RejectedExchangeLimit is reserved for live venue order limits.
	RejectedExchangeLimit
)

func (c Code) String() string {
	switch c {
	case Approved:
		return "approved"
	case RejectedPositionLimit:
		return "rejected_position_limit"
	case RejectedExposureLimit:
		return "rejected_exposure_limit"
	case RejectedTradeSize:
		return "rejected_trade_size"
	case RejectedProfitTooLow:
		return "rejected_profit_too_low"
	case RejectedDailyLoss:
		return "rejected_daily_loss"
	case RejectedDrawdown:
		return "rejected_drawdown"
	case RejectedExchangeLimit:
		return "rejected_exchange_limit"
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Assessment is the outcome of one opportunity's risk checks.
// Rejections are ordinary business decisions, not errors.
type Assessment struct {
	Code            Code
	Reason          string
	RecommendedSize float64
	ExpectedPnL     float64
	Fees            float64
	NetProfitBPS    float64
}

func (a Assessment) Approved() bool { return a.Code == Approved }

const defaultStartingBalance = 10000.0

const (
	// minViableSize is the smallest trade the engine will recommend.
	minViableSize = 0.001
	// referencePrice converts dollar exposure headroom to asset units.
	referencePrice = 50000.0
	// maxExposureUnits caps the exposure-derived size.
	maxExposureUnits = 10.0
	// defaultLiteFeeBPS is the flat round-trip fee haircut under
	// PolicyLite.
	defaultLiteFeeBPS = 20.0
)

// Settings configure a new engine. The three numeric overrides fall
// back to the simulation defaults when zero.
type Settings struct {
	Limits          Limits
	Policy          Policy
	StartingBalance float64
	FeeRate         float64
	FlatFeeBPS      float64
}

// Engine tracks positions and P&L and decides, per opportunity,
// whether a simulated trade may proceed.
type Engine struct {
	mu          sync.Mutex
	limits      Limits
	policy      Policy
	positions   map[string]*Position
	trades      []Trade
	lastTradeID uint64
	dailyPnL    float64
	totalPnL    float64
	highWater   float64

	startingBalance float64
	feeRate         float64
	liteFeeBPS      float64

	seen     atomic.Uint64
	taken    atomic.Uint64
	rejected atomic.Uint64
}

func NewEngine(settings Settings) *Engine {
	policy := settings.Policy
	if policy == "" {
		policy = PolicyStandard
	}
	balance := settings.StartingBalance
	if balance <= 0 {
		balance = defaultStartingBalance
	}
	feeRate := settings.FeeRate
	if feeRate <= 0 {
		feeRate = defaultFeeRate
	}
	liteFee := settings.FlatFeeBPS
	if liteFee <= 0 {
		liteFee = defaultLiteFeeBPS
	}
	return &Engine{
		limits:          settings.Limits,
		policy:          policy,
		positions:       make(map[string]*Position),
		highWater:       balance,
		startingBalance: balance,
		feeRate:         feeRate,
		liteFeeBPS:      liteFee,
	}
}

// Assess runs the limit checks for one opportunity without touching
// the ledger. Callers that intend to trade on approval should use
// Evaluate instead, which holds the lock across the execute step too.
func (e *Engine) Assess(opp detect.Opportunity) Assessment {
	e.seen.Add(1)
	e.mu.Lock()
	a := e.assessLocked(opp)
	e.mu.Unlock()
	e.countOutcome(a)
	return a
}

// Execute applies an approved trade to the ledger and returns the
// recorded trade.
func (e *Engine) Execute(opp detect.Opportunity, size float64) Trade {
	e.mu.Lock()
	t := e.executeLocked(opp, size)
	e.mu.Unlock()
	return t
}

// Evaluate assesses an opportunity and, when approved, executes it
// under the same lock acquisition. The returned trade is nil on
// rejection.
func (e *Engine) Evaluate(opp detect.Opportunity) (Assessment, *Trade) {
	e.seen.Add(1)
	e.mu.Lock()
	a := e.assessLocked(opp)
	var trade *Trade
	if a.Approved() {
		t := e.executeLocked(opp, a.RecommendedSize)
		trade = &t
	}
	e.mu.Unlock()
	e.countOutcome(a)
	return a, trade
}

func (e *Engine) countOutcome(a Assessment) {
	if a.Approved() {
		e.taken.Add(1)
	} else {
		e.rejected.Add(1)
	}
}

func (e *Engine) assessLocked(opp detect.Opportunity) Assessment {
	if e.policy == PolicyLite {
		return e.assessLiteLocked(opp)
	}

	var a Assessment
	size := math.Min(e.limits.MaxSingleTradeSize,
		math.Min(e.sizeByPositionLocked(opp), e.sizeByExposureLocked()))
	if size < minViableSize {
		a.Code = RejectedTradeSize
		a.Reason = "trade size too small"
		return a
	}

	gross := (opp.SellPrice - opp.BuyPrice) * size
	fees := tradeFees(size, opp.BuyPrice, opp.SellPrice, e.feeRate)
	a.ExpectedPnL = gross
	a.Fees = fees
	if notional := size * opp.BuyPrice; notional > 0 {
		a.NetProfitBPS = (gross - fees) / notional * 10000.0
	}

	if a.NetProfitBPS < e.limits.MinProfitAfterFeesBPS {
		a.Code = RejectedProfitTooLow
		a.Reason = fmt.Sprintf("net profit below threshold (%.2f < %.2f bps)",
			a.NetProfitBPS, e.limits.MinProfitAfterFeesBPS)
		return a
	}
	if e.dailyPnL < -e.limits.MaxDailyLoss {
		a.Code = RejectedDailyLoss
		a.Reason = "daily loss limit exceeded"
		return a
	}
	balance := e.highWater + e.totalPnL
	if drawdown := (e.highWater - balance) / e.highWater; drawdown > e.limits.MaxDrawdownFraction {
		a.Code = RejectedDrawdown
		a.Reason = fmt.Sprintf("drawdown limit exceeded (%.1f%%)", drawdown*100)
		return a
	}

	a.Code = Approved
	a.Reason = "trade approved"
	a.RecommendedSize = size
	return a
}

func (e *Engine) assessLiteLocked(opp detect.Opportunity) Assessment {
	var a Assessment
	a.NetProfitBPS = opp.ProfitBPS - e.liteFeeBPS
	if a.NetProfitBPS < e.limits.MinProfitAfterFeesBPS {
		a.Code = RejectedProfitTooLow
		a.Reason = fmt.Sprintf("net profit below threshold (%.2f < %.2f bps)",
			a.NetProfitBPS, e.limits.MinProfitAfterFeesBPS)
		return a
	}
	size := e.limits.MaxSingleTradeSize
	if size < minViableSize {
		a.Code = RejectedTradeSize
		a.Reason = fmt.Sprintf("recommended trade size too small: %.4f", size)
		return a
	}
	a.Code = Approved
	a.Reason = "trade approved"
	a.RecommendedSize = size
	return a
}

func (e *Engine) executeLocked(opp detect.Opportunity, size float64) Trade {
	e.lastTradeID++
	now := time.Now()
	trade := newTrade(e.lastTradeID, opp, size, e.feeRate, now)

	e.fillLocked(opp.BuyVenue, opp.Symbol, size, opp.BuyPrice, now)
	e.fillLocked(opp.SellVenue, opp.Symbol, -size, opp.SellPrice, now)

	e.dailyPnL += trade.NetPnL
	e.totalPnL += trade.NetPnL
	if balance := e.highWater + e.totalPnL; balance > e.highWater {
		e.highWater = balance
	}

	e.trades = append(e.trades, trade)
	return trade
}

func (e *Engine) fillLocked(venue, symbol string, quantity, price float64, now time.Time) {
	key := positionKey(venue, symbol)
	pos, ok := e.positions[key]
	if !ok {
		pos = &Position{Venue: venue, Symbol: symbol}
		e.positions[key] = pos
	}
	pos.applyFill(quantity, price, now)
}

func positionKey(venue, symbol string) string {
	return venue + "_" + symbol
}

// sizeByPositionLocked returns the per-venue headroom for the pair.
// The buy leg adds to the buy venue's position, the sell leg
// subtracts from the sell venue's.
func (e *Engine) sizeByPositionLocked(opp detect.Opportunity) float64 {
	var buyQty, sellQty float64
	if pos, ok := e.positions[positionKey(opp.BuyVenue, opp.Symbol)]; ok {
		buyQty = pos.Quantity
	}
	if pos, ok := e.positions[positionKey(opp.SellVenue, opp.Symbol)]; ok {
		sellQty = pos.Quantity
	}
	headroom := math.Min(e.limits.MaxPositionPerVenue-buyQty, e.limits.MaxPositionPerVenue+sellQty)
	if headroom <= 0 {
		// A breached limit still admits a minimum-size trade.
		return minViableSize
	}
	return headroom
}

func (e *Engine) sizeByExposureLocked() float64 {
	var exposure float64
	for _, pos := range e.positions {
		exposure += math.Abs(pos.Quantity * pos.AvgPrice)
	}
	size := (e.limits.MaxTotalExposure - exposure) / referencePrice
	if size < minViableSize {
		return minViableSize
	}
	if size > maxExposureUnits {
		return maxExposureUnits
	}
	return size
}

// SetLimits swaps the limit set. The new limits apply from the next
// assessment.
func (e *Engine) SetLimits(l Limits) {
	e.mu.Lock()
	e.limits = l
	e.mu.Unlock()
}

func (e *Engine) Limits() Limits {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.limits
}

func (e *Engine) Policy() Policy { return e.policy }

// ResetDailyPnL zeroes the daily accumulator, typically at a UTC day
// boundary.
func (e *Engine) ResetDailyPnL() {
	e.mu.Lock()
	e.dailyPnL = 0
	e.mu.Unlock()
}

// ResetSession clears the ledger back to a fresh session.
func (e *Engine) ResetSession() {
	e.mu.Lock()
	e.positions = make(map[string]*Position)
	e.trades = nil
	e.lastTradeID = 0
	e.dailyPnL = 0
	e.totalPnL = 0
	e.highWater = e.startingBalance
	e.mu.Unlock()
	e.seen.Store(0)
	e.taken.Store(0)
	e.rejected.Store(0)
}

// Position returns a copy of the inventory held on one venue.
func (e *Engine) Position(venue, symbol string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.positions[positionKey(venue, symbol)]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all tracked positions, ordered by venue
// then symbol.
func (e *Engine) Positions() []Position {
	e.mu.Lock()
	out := make([]Position, 0, len(e.positions))
	for _, pos := range e.positions {
		out = append(out, *pos)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Venue != out[j].Venue {
			return out[i].Venue < out[j].Venue
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Trades returns a copy of the trade history in execution order.
func (e *Engine) Trades() []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// Snapshot captures the ledger for session persistence. Trade history
// is journaled separately and is not part of the snapshot.
type Snapshot struct {
	Positions   []Position `json:"positions"`
	DailyPnL    float64    `json:"daily_pnl"`
	TotalPnL    float64    `json:"total_pnl"`
	HighWater   float64    `json:"high_water"`
	LastTradeID uint64     `json:"last_trade_id"`
	Seen        uint64     `json:"opportunities_seen"`
	Taken       uint64     `json:"opportunities_taken"`
	Rejected    uint64     `json:"opportunities_rejected"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	snap := Snapshot{
		Positions:   make([]Position, 0, len(e.positions)),
		DailyPnL:    e.dailyPnL,
		TotalPnL:    e.totalPnL,
		HighWater:   e.highWater,
		LastTradeID: e.lastTradeID,
	}
	for _, pos := range e.positions {
		snap.Positions = append(snap.Positions, *pos)
	}
	e.mu.Unlock()
	sort.Slice(snap.Positions, func(i, j int) bool {
		if snap.Positions[i].Venue != snap.Positions[j].Venue {
			return snap.Positions[i].Venue < snap.Positions[j].Venue
		}
		return snap.Positions[i].Symbol < snap.Positions[j].Symbol
	})
	snap.Seen = e.seen.Load()
	snap.Taken = e.taken.Load()
	snap.Rejected = e.rejected.Load()
	return snap
}

// Restore loads a previously captured snapshot, replacing the current
// ledger.
func (e *Engine) Restore(snap Snapshot) {
	e.mu.Lock()
	e.positions = make(map[string]*Position, len(snap.Positions))
	for _, pos := range snap.Positions {
		p := pos
		e.positions[positionKey(p.Venue, p.Symbol)] = &p
	}
	e.trades = nil
	e.dailyPnL = snap.DailyPnL
	e.totalPnL = snap.TotalPnL
	e.highWater = snap.HighWater
	if e.highWater <= 0 {
		e.highWater = e.startingBalance
	}
	e.lastTradeID = snap.LastTradeID
	e.mu.Unlock()
	e.seen.Store(snap.Seen)
	e.taken.Store(snap.Taken)
	e.rejected.Store(snap.Rejected)
}
