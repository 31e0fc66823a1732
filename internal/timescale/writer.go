// Package timescale mirrors decision and trade records into TimescaleDB
// for offline analysis. Writes are asynchronous and lossy under
// backpressure so the hot path never blocks on the database.
package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"arb-sim-bot/internal/config"
	"arb-sim-bot/internal/journal"
	"arb-sim-bot/internal/risk"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type Writer struct {
	db           *sql.DB
	log          *zap.Logger
	schema       string
	decisions    chan journal.Record
	trades       chan risk.Trade
	started      atomic.Bool
	dropDecision atomic.Uint64
	dropTrade    atomic.Uint64
}

// New returns nil (and no error) when the writer is disabled.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:        db,
		log:       log,
		schema:    schema,
		decisions: make(chan journal.Record, queueSize),
		trades:    make(chan risk.Trade, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// Append queues a decision record. It satisfies the pipeline recorder
// interface alongside the CSV and archive writers.
func (w *Writer) Append(rec journal.Record) error {
	w.EnqueueDecision(rec)
	return nil
}

func (w *Writer) EnqueueDecision(rec journal.Record) {
	if w == nil {
		return
	}
	select {
	case w.decisions <- rec:
		return
	default:
		if w.dropDecision.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale decision queue full")
		}
	}
}

func (w *Writer) EnqueueTrade(trade risk.Trade) {
	if w == nil {
		return
	}
	select {
	case w.trades <- trade:
		return
	default:
		if w.dropTrade.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale trade queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-w.decisions:
			w.writeDecision(ctx, rec)
		case trade := <-w.trades:
			w.writeTrade(ctx, trade)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		buy_venue TEXT NOT NULL,
		sell_venue TEXT NOT NULL,
		buy_price DOUBLE PRECISION NOT NULL,
		sell_price DOUBLE PRECISION NOT NULL,
		profit_bps DOUBLE PRECISION NOT NULL,
		net_profit_bps DOUBLE PRECISION NOT NULL,
		latency_ns BIGINT NOT NULL,
		decision INTEGER NOT NULL
	)`, w.table("arb_decisions"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		trade_id BIGINT NOT NULL,
		symbol TEXT NOT NULL,
		buy_venue TEXT NOT NULL,
		sell_venue TEXT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		buy_price DOUBLE PRECISION NOT NULL,
		sell_price DOUBLE PRECISION NOT NULL,
		gross_pnl DOUBLE PRECISION NOT NULL,
		fees DOUBLE PRECISION NOT NULL,
		net_pnl DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL
	)`, w.table("arb_trades"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("arb_decisions"))); err != nil && w.log != nil {
		w.log.Warn("timescale arb_decisions hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("arb_trades"))); err != nil && w.log != nil {
		w.log.Warn("timescale arb_trades hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeDecision(ctx context.Context, rec journal.Record) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, buy_venue, sell_venue, buy_price, sell_price,
		profit_bps, net_profit_bps, latency_ns, decision
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
	)`, w.table("arb_decisions"))
	if _, err := w.db.ExecContext(ctx, query,
		time.Unix(0, rec.DetectedAt),
		rec.Symbol,
		rec.BuyVenue,
		rec.SellVenue,
		rec.BuyPrice,
		rec.SellPrice,
		rec.ProfitBPS,
		rec.NetProfitBPS,
		rec.LatencyNS,
		rec.Decision,
	); err != nil && w.log != nil {
		w.log.Warn("timescale decision insert failed", zap.Error(err))
	}
}

func (w *Writer) writeTrade(ctx context.Context, trade risk.Trade) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, trade_id, symbol, buy_venue, sell_venue, quantity,
		buy_price, sell_price, gross_pnl, fees, net_pnl, status
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
	)`, w.table("arb_trades"))
	if _, err := w.db.ExecContext(ctx, query,
		trade.Time,
		int64(trade.ID),
		trade.Symbol,
		trade.BuyVenue,
		trade.SellVenue,
		trade.Quantity,
		trade.BuyPrice,
		trade.SellPrice,
		trade.GrossPnL,
		trade.Fees,
		trade.NetPnL,
		string(trade.Status),
	); err != nil && w.log != nil {
		w.log.Warn("timescale trade insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
