package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"arb-sim-bot/internal/alerts"
	"arb-sim-bot/internal/bridge"
	"arb-sim-bot/internal/config"
	"arb-sim-bot/internal/detect"
	"arb-sim-bot/internal/feed"
	"arb-sim-bot/internal/journal"
	"arb-sim-bot/internal/metrics"
	"arb-sim-bot/internal/pipeline"
	"arb-sim-bot/internal/risk"
	"arb-sim-bot/internal/state"
	"arb-sim-bot/internal/state/sqlite"
	"arb-sim-bot/internal/stats"
	"arb-sim-bot/internal/timescale"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	store     state.Store
	sessionID string

	detector  *detect.Detector
	engine    *risk.Engine
	tracker   *stats.Tracker
	metrics   *metrics.Metrics
	prom      *metrics.Prometheus
	journal   *journal.Writer
	archive   *journal.ArchiveWriter
	timescale *timescale.Writer
	alerts    *alerts.Telegram
	pipeline  *pipeline.Pipeline
	bridge    *bridge.Server
	feeds     []*feed.Simulator

	baseLimits risk.Limits

	opsMu            sync.RWMutex
	riskOverride     *risk.Limits
	dailyLossAlerted bool
	drawdownAlerted  bool
	operatorWarned   bool
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	limits, err := resolveLimits(cfg.Risk)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	policy, err := resolvePolicy(cfg.Risk.Policy)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	engine := risk.NewEngine(risk.Settings{
		Limits:          limits,
		Policy:          policy,
		StartingBalance: cfg.Risk.StartingBalance,
		FeeRate:         cfg.Risk.FeeRate,
		FlatFeeBPS:      cfg.Risk.FlatFeeBPS,
	})

	detector := detect.New()
	detector.SetMinProfitBPS(cfg.Detector.MinProfitBPS)

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.EnabledValue() {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	if dir := filepath.Dir(cfg.Journal.CSVPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	journalWriter, err := journal.Open(cfg.Journal.CSVPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	var archive *journal.ArchiveWriter
	if cfg.Journal.ArchivePath != "" {
		if dir := filepath.Dir(cfg.Journal.ArchivePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				_ = journalWriter.Close()
				_ = store.Close()
				return nil, err
			}
		}
		archive, err = journal.OpenArchive(cfg.Journal.ArchivePath)
		if err != nil {
			_ = journalWriter.Close()
			_ = store.Close()
			return nil, err
		}
	}

	tsWriter, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = archive.Close()
		_ = journalWriter.Close()
		_ = store.Close()
		return nil, err
	}

	recorders := []pipeline.Recorder{journalWriter}
	if archive != nil {
		recorders = append(recorders, archive)
	}
	var tradeSink pipeline.TradeSink
	if tsWriter != nil {
		recorders = append(recorders, tsWriter)
		tradeSink = tsWriter
	}

	tracker := stats.NewTracker()
	pipe := pipeline.New(pipeline.Config{
		Detector:  detector,
		Engine:    engine,
		Tracker:   tracker,
		Metrics:   m,
		Log:       log,
		Recorders: recorders,
		Trades:    tradeSink,
	})

	feeds := make([]*feed.Simulator, 0, len(cfg.Venues))
	for _, venue := range cfg.Venues {
		profile, err := resolveVenueProfile(venue)
		if err != nil {
			_ = tsWriter.Close()
			_ = archive.Close()
			_ = journalWriter.Close()
			_ = store.Close()
			return nil, err
		}
		detector.Register(cfg.Engine.Symbol, venue.Name)
		feeds = append(feeds, feed.NewSimulator(profile, cfg.Engine.Symbol, pipe.OnUpdate))
	}

	a := &App{
		cfg:        cfg,
		log:        log,
		store:      store,
		sessionID:  uuid.NewString(),
		detector:   detector,
		engine:     engine,
		tracker:    tracker,
		metrics:    m,
		prom:       prom,
		journal:    journalWriter,
		archive:    archive,
		timescale:  tsWriter,
		alerts:     alerts.NewTelegram(cfg.Telegram, log),
		pipeline:   pipe,
		feeds:      feeds,
		baseLimits: limits,
	}
	if cfg.Bridge.Enabled {
		a.bridge = bridge.NewServer(cfg.Bridge, log)
	}
	return a, nil
}

func resolveLimits(cfg config.RiskConfig) (risk.Limits, error) {
	limits, ok := risk.ProfileLimits(cfg.Profile)
	if !ok {
		return risk.Limits{}, fmt.Errorf("unknown risk profile %q", cfg.Profile)
	}
	if cfg.MaxPositionPerVenue > 0 {
		limits.MaxPositionPerVenue = cfg.MaxPositionPerVenue
	}
	if cfg.MaxTotalExposure > 0 {
		limits.MaxTotalExposure = cfg.MaxTotalExposure
	}
	if cfg.MaxSingleTradeSize > 0 {
		limits.MaxSingleTradeSize = cfg.MaxSingleTradeSize
	}
	if cfg.MinProfitAfterFeesBPS > 0 {
		limits.MinProfitAfterFeesBPS = cfg.MinProfitAfterFeesBPS
	}
	if cfg.MaxDailyLoss > 0 {
		limits.MaxDailyLoss = cfg.MaxDailyLoss
	}
	if cfg.MaxDrawdownFraction > 0 {
		limits.MaxDrawdownFraction = cfg.MaxDrawdownFraction
	}
	return limits, nil
}

func resolvePolicy(name string) (risk.Policy, error) {
	switch risk.Policy(name) {
	case risk.PolicyStandard:
		return risk.PolicyStandard, nil
	case risk.PolicyLite:
		return risk.PolicyLite, nil
	case "":
		return risk.PolicyStandard, nil
	default:
		return "", fmt.Errorf("unknown risk policy %q", name)
	}
}

func resolveVenueProfile(v config.VenueConfig) (feed.Profile, error) {
	profile, ok := feed.ProfileFor(v.Name)
	if !ok {
		return feed.Profile{}, fmt.Errorf("unknown venue %q", v.Name)
	}
	profile.Seed = v.Seed
	if v.BasePrice > 0 {
		profile.BasePrice = v.BasePrice
	}
	if v.Volatility > 0 {
		profile.Volatility = v.Volatility
	}
	if v.SpreadMean > 0 {
		profile.SpreadMean = v.SpreadMean
	}
	if v.SpreadStdDev > 0 {
		profile.SpreadStdDev = v.SpreadStdDev
	}
	if v.Quantity > 0 {
		profile.Quantity = v.Quantity
	}
	if v.MinInterval > 0 && v.MaxInterval > 0 {
		profile.MinInterval = v.MinInterval
		profile.MaxInterval = v.MaxInterval
	}
	if v.LagMin > 0 && v.LagMax > 0 {
		profile.LagMin = v.LagMin
		profile.LagMax = v.LagMax
	}
	return profile, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if a.cfg.Engine.ResumeValue() {
		a.resumeSession(ctx)
	}

	runCtx := ctx
	if a.cfg.Engine.RunDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.cfg.Engine.RunDuration)
		defer cancel()
	}

	a.timescale.Start(runCtx)
	a.startOperator(runCtx)

	a.log.Info("starting arbitrage simulation",
		zap.String("session_id", a.sessionID),
		zap.String("symbol", a.cfg.Engine.Symbol),
		zap.Int("venues", len(a.feeds)),
		zap.Float64("min_profit_bps", a.detector.MinProfitBPS()),
		zap.String("risk_profile", a.cfg.Risk.Profile),
		zap.String("risk_policy", string(a.engine.Policy())),
	)

	g, gctx := errgroup.WithContext(runCtx)
	for _, sim := range a.feeds {
		g.Go(func() error { return sim.Run(gctx) })
	}
	g.Go(func() error { return a.statsLoop(gctx) })
	g.Go(func() error { return a.snapshotLoop(gctx) })
	if a.prom != nil {
		g.Go(func() error { return a.serveMetrics(gctx) })
	}
	if a.bridge != nil {
		g.Go(func() error { return a.bridge.Run(gctx) })
	}

	err := g.Wait()
	a.shutdown(context.Background())
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (a *App) resumeSession(ctx context.Context) {
	snap, ok, err := state.LoadSessionSnapshot(ctx, a.store)
	if err != nil {
		a.log.Warn("session snapshot load failed", zap.Error(err))
		return
	}
	if !ok {
		a.log.Info("no prior session snapshot, starting fresh")
		return
	}
	if snap.Symbol != a.cfg.Engine.Symbol {
		a.log.Warn("discarding session snapshot for different symbol",
			zap.String("snapshot_symbol", snap.Symbol),
			zap.String("symbol", a.cfg.Engine.Symbol),
		)
		if err := state.DeleteSessionSnapshot(ctx, a.store); err != nil {
			a.log.Warn("stale snapshot delete failed", zap.Error(err))
		}
		return
	}
	a.engine.Restore(snap.Risk)
	if snap.SessionID != "" {
		a.sessionID = snap.SessionID
	}
	a.log.Info("session resumed",
		zap.String("session_id", a.sessionID),
		zap.Time("saved_at", time.UnixMilli(snap.SavedAtMS).UTC()),
		zap.Int("positions", len(snap.Risk.Positions)),
		zap.Float64("total_pnl", snap.Risk.TotalPnL),
		zap.Uint64("last_trade_id", snap.Risk.LastTradeID),
	)
}

func (a *App) statsLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Engine.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.reportStats(ctx)
		}
	}
}

func (a *App) reportStats(ctx context.Context) {
	summary := a.tracker.Summary()
	report := a.engine.Report()
	a.log.Info("pipeline stats",
		zap.Duration("runtime", summary.Runtime),
		zap.Uint64("updates", summary.Updates),
		zap.Float64("updates_per_sec", summary.UpdatesPerSec),
		zap.Duration("avg_latency", summary.AvgLatency),
		zap.Duration("min_latency", summary.MinLatency),
		zap.Duration("max_latency", summary.MaxLatency),
		zap.Uint64("opportunities", summary.Opportunities),
		zap.Uint64("trades", summary.Trades),
		zap.Float64("execution_rate", summary.ExecutionRate),
	)
	a.log.Info("risk summary",
		zap.Float64("total_exposure", report.TotalExposure),
		zap.Float64("daily_pnl", report.DailyPnL),
		zap.Float64("total_pnl", report.TotalPnL),
		zap.Float64("drawdown", report.CurrentDrawdown),
		zap.Int("active_positions", report.ActivePositions),
		zap.Int("total_trades", report.TotalTrades),
		zap.Float64("win_rate", report.WinRate),
		zap.Float64("take_rate", report.TakeRate),
	)
	a.metrics.DailyPnL.Set(report.DailyPnL)
	a.metrics.TotalExposure.Set(report.TotalExposure)
	a.metrics.Drawdown.Set(report.CurrentDrawdown)
	a.checkRiskAlerts(ctx, report)
}

// checkRiskAlerts fires each breach alert once per session. The daily
// loss alert re-arms when the daily counter is reset.
func (a *App) checkRiskAlerts(ctx context.Context, report risk.Report) {
	limits := a.engine.Limits()
	a.opsMu.Lock()
	dailyHit := limits.MaxDailyLoss > 0 && report.DailyPnL <= -limits.MaxDailyLoss && !a.dailyLossAlerted
	if dailyHit {
		a.dailyLossAlerted = true
	}
	drawdownHit := limits.MaxDrawdownFraction > 0 && report.CurrentDrawdown >= limits.MaxDrawdownFraction && !a.drawdownAlerted
	if drawdownHit {
		a.drawdownAlerted = true
	}
	a.opsMu.Unlock()

	if dailyHit {
		a.log.Warn("daily loss limit reached",
			zap.Float64("daily_pnl", report.DailyPnL),
			zap.Float64("limit", limits.MaxDailyLoss),
		)
		if err := a.alerts.Send(ctx, fmt.Sprintf("Daily loss limit reached: %.2f (limit %.2f)", report.DailyPnL, limits.MaxDailyLoss)); err != nil {
			a.log.Warn("alert send failed", zap.Error(err))
		}
	}
	if drawdownHit {
		a.log.Warn("drawdown limit reached",
			zap.Float64("drawdown", report.CurrentDrawdown),
			zap.Float64("limit", limits.MaxDrawdownFraction),
		)
		if err := a.alerts.Send(ctx, fmt.Sprintf("Drawdown limit reached: %.1f%% (limit %.1f%%)", report.CurrentDrawdown*100, limits.MaxDrawdownFraction*100)); err != nil {
			a.log.Warn("alert send failed", zap.Error(err))
		}
	}
}

func (a *App) snapshotLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Engine.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.saveSnapshot(ctx)
		}
	}
}

func (a *App) saveSnapshot(ctx context.Context) {
	snap := state.SessionSnapshot{
		SessionID: a.sessionID,
		SavedAtMS: time.Now().UTC().UnixMilli(),
		Symbol:    a.cfg.Engine.Symbol,
		Risk:      a.engine.Snapshot(),
	}
	if err := state.SaveSessionSnapshot(ctx, a.store, snap); err != nil {
		a.log.Warn("session snapshot save failed", zap.Error(err))
	}
}

func (a *App) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.prom.Handler())
	server := &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	a.log.Info("metrics server listening",
		zap.String("address", a.cfg.Metrics.Address),
		zap.String("path", a.cfg.Metrics.Path),
	)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	a.saveSnapshot(ctx)

	summary := a.tracker.Summary()
	report := a.engine.Report()
	a.log.Info("session complete",
		zap.String("session_id", a.sessionID),
		zap.Duration("runtime", summary.Runtime),
		zap.Uint64("updates", summary.Updates),
		zap.Uint64("opportunities", summary.Opportunities),
		zap.Uint64("trades", summary.Trades),
		zap.Float64("execution_rate", summary.ExecutionRate),
		zap.Float64("total_pnl", report.TotalPnL),
		zap.Float64("win_rate", report.WinRate),
	)
	if a.alerts.Enabled() {
		msg := fmt.Sprintf("Session %s done: %d updates, %d opportunities, %d trades, total P&L %.2f",
			a.sessionID, summary.Updates, summary.Opportunities, summary.Trades, report.TotalPnL)
		if err := a.alerts.Send(ctx, msg); err != nil {
			a.log.Warn("alert send failed", zap.Error(err))
		}
	}
	if path := a.cfg.Engine.SummaryPath; path != "" {
		if err := writeSessionSummary(path, a.sessionID, a.cfg.Engine.Symbol, summary, report); err != nil {
			a.log.Warn("session summary write failed", zap.Error(err))
		} else {
			a.log.Info("session summary written", zap.String("path", path))
		}
	}
}

func writeSessionSummary(path, sessionID, symbol string, summary stats.Summary, report risk.Report) error {
	var b strings.Builder
	b.WriteString("Arbitrage Simulation Session Summary\n")
	b.WriteString("====================================\n")
	fmt.Fprintf(&b, "Session: %s\n", sessionID)
	fmt.Fprintf(&b, "Symbol: %s\n", symbol)
	fmt.Fprintf(&b, "Runtime: %.1fs\n", summary.Runtime.Seconds())
	fmt.Fprintf(&b, "Updates Processed: %d (%.1f/s)\n", summary.Updates, summary.UpdatesPerSec)
	fmt.Fprintf(&b, "Opportunities Found: %d\n", summary.Opportunities)
	fmt.Fprintf(&b, "Trades Executed: %d\n", summary.Trades)
	fmt.Fprintf(&b, "Take Rate: %.1f%%\n", report.TakeRate*100)
	fmt.Fprintf(&b, "Win Rate: %.1f%%\n", report.WinRate*100)
	fmt.Fprintf(&b, "Daily P&L: $%.2f\n", report.DailyPnL)
	fmt.Fprintf(&b, "Total P&L: $%.2f\n", report.TotalPnL)
	fmt.Fprintf(&b, "Total Exposure: $%.2f\n", report.TotalExposure)
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func (a *App) close() {
	if err := a.journal.Close(); err != nil {
		a.log.Warn("journal close failed", zap.Error(err))
	}
	if err := a.archive.Close(); err != nil {
		a.log.Warn("archive close failed", zap.Error(err))
	}
	if err := a.timescale.Close(); err != nil {
		a.log.Warn("timescale close failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("state store close failed", zap.Error(err))
	}
}
