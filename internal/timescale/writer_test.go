package timescale

import (
	"context"
	"testing"

	"arb-sim-bot/internal/config"
	"arb-sim-bot/internal/journal"
	"arb-sim-bot/internal/risk"
)

func TestNilWriterIsNoOp(t *testing.T) {
	var w *Writer
	w.Start(context.Background())
	w.EnqueueDecision(journal.Record{Symbol: "BTC-USD"})
	w.EnqueueTrade(risk.Trade{Symbol: "BTC-USD"})
	if err := w.Append(journal.Record{}); err != nil {
		t.Fatalf("append on nil writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close on nil writer: %v", err)
	}
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	w := &Writer{
		decisions: make(chan journal.Record, 1),
		trades:    make(chan risk.Trade, 1),
	}
	w.EnqueueDecision(journal.Record{Decision: 0})
	w.EnqueueDecision(journal.Record{Decision: 4})
	if got := w.dropDecision.Load(); got != 1 {
		t.Fatalf("expected 1 dropped decision, got %d", got)
	}
	w.EnqueueTrade(risk.Trade{ID: 1})
	w.EnqueueTrade(risk.Trade{ID: 2})
	w.EnqueueTrade(risk.Trade{ID: 3})
	if got := w.dropTrade.Load(); got != 2 {
		t.Fatalf("expected 2 dropped trades, got %d", got)
	}
	queued := <-w.decisions
	if queued.Decision != 0 {
		t.Fatalf("expected first decision to survive, got %d", queued.Decision)
	}
}

func TestNewDisabledReturnsNil(t *testing.T) {
	w, err := New(config.TimescaleConfig{Enabled: false, DSN: "postgres://ignored"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != nil {
		t.Fatalf("expected nil writer when disabled")
	}
}

func TestNewEnabledRequiresDSN(t *testing.T) {
	if _, err := New(config.TimescaleConfig{Enabled: true, DSN: "   "}, nil); err == nil {
		t.Fatalf("expected error for missing dsn")
	}
}
