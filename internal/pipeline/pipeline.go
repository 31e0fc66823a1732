// Package pipeline carries one market update through the three
// stages: order book mutation, cross-venue detection, and risk-gated
// execution. Venue feeds call it synchronously, so everything here is
// on the hot path.
package pipeline

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"arb-sim-bot/internal/book"
	"arb-sim-bot/internal/detect"
	"arb-sim-bot/internal/feed"
	"arb-sim-bot/internal/journal"
	"arb-sim-bot/internal/metrics"
	"arb-sim-bot/internal/risk"
	"arb-sim-bot/internal/stats"
)

// Recorder receives one decision record per detected opportunity.
// The journal writers and the timescale mirror all satisfy it.
type Recorder interface {
	Append(journal.Record) error
}

// TradeSink receives executed trades for mirroring to external storage.
type TradeSink interface {
	EnqueueTrade(risk.Trade)
}

type Config struct {
	Detector  *detect.Detector
	Engine    *risk.Engine
	Tracker   *stats.Tracker
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	Recorders []Recorder
	Trades    TradeSink
}

type Pipeline struct {
	detector  *detect.Detector
	engine    *risk.Engine
	tracker   *stats.Tracker
	metrics   *metrics.Metrics
	log       *zap.Logger
	recorders []Recorder
	trades    TradeSink
	paused    atomic.Bool
}

func New(cfg Config) *Pipeline {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = stats.NewTracker()
	}
	return &Pipeline{
		detector:  cfg.Detector,
		engine:    cfg.Engine,
		tracker:   tracker,
		metrics:   m,
		log:       log,
		recorders: cfg.Recorders,
		trades:    cfg.Trades,
	}
}

// OnUpdate applies one update and runs the detection and risk stages.
// Unknown (symbol, venue) pairs are a silent no-op. Trade prints pass
// through without touching the ladders but still trigger a scan.
func (p *Pipeline) OnUpdate(u feed.Update) {
	b := p.detector.Book(u.Symbol, u.Venue)
	if b == nil {
		return
	}
	switch u.Kind {
	case feed.KindBid:
		b.Apply(book.SideBid, u.Price, u.Quantity, u.Time)
	case feed.KindAsk:
		b.Apply(book.SideAsk, u.Price, u.Quantity, u.Time)
	}
	p.metrics.Updates.Inc()

	if p.paused.Load() {
		p.tracker.RecordUpdate(time.Since(u.Time))
		return
	}

	opps := p.detector.Scan(u.Symbol, u.Time)
	p.tracker.RecordUpdate(time.Since(u.Time))

	for _, opp := range opps {
		p.process(opp)
	}
}

func (p *Pipeline) process(opp detect.Opportunity) {
	p.tracker.RecordOpportunity()
	p.metrics.Opportunities.Inc()

	assessment, trade := p.engine.Evaluate(opp)

	rec := journal.Record{
		DetectedAt:   opp.DetectedAt.UnixNano(),
		Symbol:       opp.Symbol,
		BuyVenue:     opp.BuyVenue,
		SellVenue:    opp.SellVenue,
		BuyPrice:     opp.BuyPrice,
		SellPrice:    opp.SellPrice,
		ProfitBPS:    opp.ProfitBPS,
		NetProfitBPS: assessment.NetProfitBPS,
		LatencyNS:    opp.Latency.Nanoseconds(),
		Decision:     int(assessment.Code),
	}
	for _, r := range p.recorders {
		if err := r.Append(rec); err != nil {
			p.log.Warn("decision record write failed", zap.Error(err))
		}
	}

	if trade != nil {
		p.tracker.RecordTrade()
		p.metrics.TradesExecuted.Inc()
		if p.trades != nil {
			p.trades.EnqueueTrade(*trade)
		}
		p.log.Info("trade executed",
			zap.Uint64("trade_id", trade.ID),
			zap.String("symbol", opp.Symbol),
			zap.String("buy_venue", opp.BuyVenue),
			zap.String("sell_venue", opp.SellVenue),
			zap.Float64("size", trade.Quantity),
			zap.Float64("buy_price", opp.BuyPrice),
			zap.Float64("sell_price", opp.SellPrice),
			zap.Float64("net_pnl", trade.NetPnL),
			zap.Float64("net_profit_bps", assessment.NetProfitBPS),
			zap.Duration("latency", opp.Latency),
		)
		return
	}

	p.metrics.TradesRejected.Inc()
	p.log.Debug("opportunity rejected",
		zap.String("symbol", opp.Symbol),
		zap.String("buy_venue", opp.BuyVenue),
		zap.String("sell_venue", opp.SellVenue),
		zap.Float64("profit_bps", opp.ProfitBPS),
		zap.Float64("net_profit_bps", assessment.NetProfitBPS),
		zap.Stringer("code", assessment.Code),
		zap.String("reason", assessment.Reason),
	)
}

// Pause stops detection and trading. Book updates keep flowing so the
// ladders stay warm for a later resume.
func (p *Pipeline) Pause() { p.paused.Store(true) }

func (p *Pipeline) Resume() { p.paused.Store(false) }

func (p *Pipeline) Paused() bool { return p.paused.Load() }
