package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"arb-sim-bot/internal/config"
	"arb-sim-bot/internal/risk"
	"arb-sim-bot/internal/state"
	"arb-sim-bot/internal/state/sqlite"

	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	metricsOff := false
	resumeOff := false
	return &config.Config{
		Metrics: config.MetricsConfig{Enabled: &metricsOff},
		Engine: config.EngineConfig{
			Symbol:           "BTCUSDT",
			StatsInterval:    100 * time.Millisecond,
			SnapshotInterval: 100 * time.Millisecond,
			RunDuration:      400 * time.Millisecond,
			SummaryPath:      filepath.Join(dir, "session_summary.txt"),
			Resume:           &resumeOff,
		},
		Detector: config.DetectorConfig{MinProfitBPS: 5},
		Risk:     config.RiskConfig{Profile: "aggressive", Policy: "standard"},
		Venues: []config.VenueConfig{
			{Name: "binance", Seed: 11},
			{Name: "coinbase", Seed: 22},
		},
		Journal: config.JournalConfig{
			CSVPath:     filepath.Join(dir, "opportunities.csv"),
			ArchivePath: filepath.Join(dir, "opportunities.msgpack"),
		},
		State: config.StateConfig{SQLitePath: filepath.Join(dir, "bot.db")},
	}
}

func TestNewWiresComponents(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.close()

	if a.sessionID == "" {
		t.Fatal("expected a session id")
	}
	if len(a.feeds) != 2 {
		t.Fatalf("expected 2 feeds, got %d", len(a.feeds))
	}
	venues := a.detector.Venues("BTCUSDT")
	if len(venues) != 2 || venues[0] != "binance" || venues[1] != "coinbase" {
		t.Fatalf("unexpected registered venues: %v", venues)
	}
	if got := a.engine.Limits(); got != risk.AggressiveLimits() {
		t.Fatalf("unexpected limits: %+v", got)
	}
	if a.timescale != nil {
		t.Fatal("expected no timescale writer when disabled")
	}
	if a.prom != nil {
		t.Fatal("expected no prometheus registry when metrics disabled")
	}

	data, err := os.ReadFile(cfg.Journal.CSVPath)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	header := strings.SplitN(string(data), "\n", 2)[0]
	if !strings.HasPrefix(header, "timestamp,symbol,buy_exchange,sell_exchange") {
		t.Fatalf("unexpected journal header %q", header)
	}
}

func TestNewRejectsUnknownVenue(t *testing.T) {
	cfg := testConfig(t)
	cfg.Venues = []config.VenueConfig{{Name: "nyse"}}
	if _, err := New(cfg, zap.NewNop()); err == nil || !strings.Contains(err.Error(), "unknown venue") {
		t.Fatalf("expected unknown venue error, got %v", err)
	}
}

func TestNewRejectsUnknownProfile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Risk.Profile = "reckless"
	if _, err := New(cfg, zap.NewNop()); err == nil || !strings.Contains(err.Error(), "unknown risk profile") {
		t.Fatalf("expected unknown profile error, got %v", err)
	}
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Risk.Policy = "turbo"
	if _, err := New(cfg, zap.NewNop()); err == nil || !strings.Contains(err.Error(), "unknown risk policy") {
		t.Fatalf("expected unknown policy error, got %v", err)
	}
}

func TestResolveLimitsAppliesOverrides(t *testing.T) {
	limits, err := resolveLimits(config.RiskConfig{
		Profile:             "conservative",
		MaxDailyLoss:        123,
		MaxDrawdownFraction: 0.5,
	})
	if err != nil {
		t.Fatalf("resolveLimits: %v", err)
	}
	want := risk.ConservativeLimits()
	want.MaxDailyLoss = 123
	want.MaxDrawdownFraction = 0.5
	if limits != want {
		t.Fatalf("expected %+v, got %+v", want, limits)
	}
}

func TestResolvePolicyDefaultsToStandard(t *testing.T) {
	policy, err := resolvePolicy("")
	if err != nil {
		t.Fatalf("resolvePolicy: %v", err)
	}
	if policy != risk.PolicyStandard {
		t.Fatalf("expected standard policy, got %q", policy)
	}
	if policy, _ = resolvePolicy("lite"); policy != risk.PolicyLite {
		t.Fatalf("expected lite policy, got %q", policy)
	}
}

func TestResolveVenueProfileAppliesOverrides(t *testing.T) {
	profile, err := resolveVenueProfile(config.VenueConfig{
		Name:        "kraken",
		Seed:        9,
		BasePrice:   30000,
		Quantity:    10,
		MinInterval: 5 * time.Millisecond,
		MaxInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("resolveVenueProfile: %v", err)
	}
	if profile.BasePrice != 30000 || profile.Quantity != 10 || profile.Seed != 9 {
		t.Fatalf("expected overrides applied, got %+v", profile)
	}
	if profile.MinInterval != 5*time.Millisecond || profile.MaxInterval != 10*time.Millisecond {
		t.Fatalf("expected interval overrides, got %+v", profile)
	}
	if profile.Volatility != 0.0015 || profile.SpreadMean != 1.2 {
		t.Fatalf("expected untouched fields to keep profile values, got %+v", profile)
	}
}

func TestRunCompletesAndSnapshots(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	summary := a.tracker.Summary()
	if summary.Updates == 0 {
		t.Fatal("expected feed updates during the run")
	}

	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()
	snap, ok, err := state.LoadSessionSnapshot(context.Background(), store)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected a session snapshot after the run")
	}
	if snap.SessionID != a.sessionID {
		t.Fatalf("expected session %q, got %q", a.sessionID, snap.SessionID)
	}
	if snap.Symbol != "BTCUSDT" {
		t.Fatalf("expected symbol BTCUSDT, got %q", snap.Symbol)
	}

	data, err := os.ReadFile(cfg.Engine.SummaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "Session: "+a.sessionID) {
		t.Fatalf("expected the session id in the summary, got:\n%s", text)
	}
	if !strings.Contains(text, "Trades Executed:") {
		t.Fatalf("expected trade counts in the summary, got:\n%s", text)
	}
}

func TestRunResumesPriorSession(t *testing.T) {
	cfg := testConfig(t)
	resume := true
	cfg.Engine.Resume = &resume

	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	prior := state.SessionSnapshot{
		SessionID: "prior-session",
		SavedAtMS: time.Now().UnixMilli(),
		Symbol:    "BTCUSDT",
		Risk: risk.Snapshot{
			TotalPnL:    42.5,
			HighWater:   10000,
			LastTradeID: 9,
		},
	}
	if err := state.SaveSessionSnapshot(context.Background(), store, prior); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	a, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if a.sessionID != "prior-session" {
		t.Fatalf("expected resumed session id, got %q", a.sessionID)
	}
	if snap := a.engine.Snapshot(); snap.LastTradeID < 9 {
		t.Fatalf("expected trade ids to continue from 9, got %d", snap.LastTradeID)
	}
}

func TestRunIgnoresSnapshotForOtherSymbol(t *testing.T) {
	cfg := testConfig(t)
	resume := true
	cfg.Engine.Resume = &resume

	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	prior := state.SessionSnapshot{
		SessionID: "prior-session",
		Symbol:    "ETHUSDT",
		Risk:      risk.Snapshot{HighWater: 10000},
	}
	if err := state.SaveSessionSnapshot(context.Background(), store, prior); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	a, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.sessionID == "prior-session" {
		t.Fatal("expected a fresh session id for a different symbol")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.RunDuration = 0

	a, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
