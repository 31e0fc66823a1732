package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"arb-sim-bot/internal/alerts"
	"arb-sim-bot/internal/risk"

	"go.uber.org/zap"
)

// operatorOffsetKey stores the last processed Telegram update id so a
// restart does not replay old commands.
const operatorOffsetKey = "telegram:operator:last_update_id"

type operatorMeta struct {
	UpdateID int64
	UserID   int64
	Username string
	ChatID   int64
	Raw      string
}

type operatorAuditEvent struct {
	UpdateID     int64        `json:"update_id"`
	Time         time.Time    `json:"time"`
	Action       string       `json:"action"`
	Command      string       `json:"command"`
	UserID       int64        `json:"user_id"`
	Username     string       `json:"username,omitempty"`
	ChatID       int64        `json:"chat_id"`
	PausedBefore bool         `json:"paused_before"`
	PausedAfter  bool         `json:"paused_after"`
	RiskBefore   *risk.Limits `json:"risk_before,omitempty"`
	RiskAfter    *risk.Limits `json:"risk_after,omitempty"`
}

func (a *App) startOperator(ctx context.Context) {
	if a.cfg == nil || a.alerts == nil || a.log == nil {
		return
	}
	if !a.cfg.Telegram.OperatorEnabled {
		return
	}
	if !a.alerts.Enabled() {
		a.log.Warn("telegram operator enabled but telegram alerts are not configured")
		return
	}
	go a.operatorLoop(ctx)
}

func (a *App) operatorLoop(ctx context.Context) {
	a.log.Info("telegram operator loop started",
		zap.Duration("poll_interval", a.cfg.Telegram.OperatorPollInterval),
		zap.Int("allowed_user_ids", len(a.cfg.Telegram.OperatorAllowedUserIDs)),
	)
	offset := a.loadOperatorOffset(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := a.alerts.GetUpdates(ctx, offset, a.cfg.Telegram.OperatorPollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logOperatorError("telegram operator poll failed", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.cfg.Telegram.OperatorPollInterval):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			a.handleOperatorUpdate(ctx, update)
		}
		if len(updates) > 0 {
			a.saveOperatorOffset(ctx, offset)
		}
	}
}

func (a *App) handleOperatorUpdate(ctx context.Context, update alerts.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}
	text := strings.TrimSpace(update.Message.Text)
	if text == "" || !strings.HasPrefix(text, "/") {
		return
	}
	meta := operatorMeta{
		UpdateID: update.UpdateID,
		UserID:   update.Message.From.ID,
		Username: update.Message.From.Username,
		ChatID:   update.Message.Chat.ID,
		Raw:      text,
	}
	if !a.operatorAllowed(meta.UserID) {
		a.log.Warn("telegram operator command from unauthorized user",
			zap.Int64("user_id", meta.UserID),
			zap.String("username", meta.Username),
			zap.String("command", text),
		)
		return
	}

	command, args := parseOperatorCommand(text)
	response, err := a.handleOperatorCommand(ctx, command, args, meta)
	if err != nil {
		a.logOperatorError("telegram operator command failed", err,
			zap.String("command", text),
			zap.Int64("user_id", meta.UserID),
		)
		response = "error: " + err.Error()
	}
	if response == "" {
		return
	}
	if err := a.alerts.Send(ctx, response); err != nil {
		a.logOperatorError("telegram operator reply failed", err)
	}
}

func (a *App) operatorAllowed(userID int64) bool {
	allowed := a.cfg.Telegram.OperatorAllowedUserIDs
	if len(allowed) == 0 {
		return true
	}
	for _, id := range allowed {
		if id == userID {
			return true
		}
	}
	return false
}

func parseOperatorCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	command := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}
	return strings.ToLower(command), fields[1:]
}

func (a *App) handleOperatorCommand(ctx context.Context, command string, args []string, meta operatorMeta) (string, error) {
	switch command {
	case "status":
		return a.operatorStatus(), nil
	case "pause":
		before, after := a.setPaused(true)
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID:     meta.UpdateID,
			Time:         time.Now().UTC(),
			Action:       "pause",
			Command:      meta.Raw,
			UserID:       meta.UserID,
			Username:     meta.Username,
			ChatID:       meta.ChatID,
			PausedBefore: before,
			PausedAfter:  after,
		})
		if before {
			return "trading already paused", nil
		}
		return "trading paused", nil
	case "resume":
		before, after := a.setPaused(false)
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID:     meta.UpdateID,
			Time:         time.Now().UTC(),
			Action:       "resume",
			Command:      meta.Raw,
			UserID:       meta.UserID,
			Username:     meta.Username,
			ChatID:       meta.ChatID,
			PausedBefore: before,
			PausedAfter:  after,
		})
		if !before {
			return "trading already active", nil
		}
		return "trading resumed", nil
	case "risk":
		return a.handleRiskCommand(ctx, args, meta)
	case "reset":
		return a.handleResetCommand(ctx, args, meta)
	case "help", "start":
		return operatorHelpText(), nil
	default:
		return "unknown command\n" + operatorHelpText(), nil
	}
}

func (a *App) handleRiskCommand(ctx context.Context, args []string, meta operatorMeta) (string, error) {
	if len(args) == 0 {
		return a.riskStatus(), nil
	}
	switch strings.ToLower(args[0]) {
	case "show":
		return a.riskStatus(), nil
	case "reset":
		before := a.engine.Limits()
		a.clearRiskOverride()
		after := a.engine.Limits()
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID:   meta.UpdateID,
			Time:       time.Now().UTC(),
			Action:     "risk_reset",
			Command:    meta.Raw,
			UserID:     meta.UserID,
			Username:   meta.Username,
			ChatID:     meta.ChatID,
			RiskBefore: &before,
			RiskAfter:  &after,
		})
		return "risk override cleared\n" + a.riskStatus(), nil
	case "set":
		overrides, err := parseRiskOverrides(args[1:])
		if err != nil {
			return "", err
		}
		if len(overrides) == 0 {
			return "", errors.New("no risk overrides given, expected key=value pairs")
		}
		before := a.engine.Limits()
		next, err := applyRiskOverrides(before, overrides)
		if err != nil {
			return "", err
		}
		if next == a.baseLimits {
			a.clearRiskOverride()
		} else {
			a.setRiskOverride(next)
		}
		after := a.engine.Limits()
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID:   meta.UpdateID,
			Time:       time.Now().UTC(),
			Action:     "risk_set",
			Command:    meta.Raw,
			UserID:     meta.UserID,
			Username:   meta.Username,
			ChatID:     meta.ChatID,
			RiskBefore: &before,
			RiskAfter:  &after,
		})
		return "risk override updated\n" + a.riskStatus(), nil
	default:
		return "", fmt.Errorf("unknown risk subcommand %q, use show, set, or reset", args[0])
	}
}

func (a *App) handleResetCommand(ctx context.Context, args []string, meta operatorMeta) (string, error) {
	if len(args) == 0 || !strings.EqualFold(args[0], "daily") {
		return "", errors.New("unknown reset target, use /reset daily")
	}
	a.engine.ResetDailyPnL()
	a.opsMu.Lock()
	a.dailyLossAlerted = false
	a.opsMu.Unlock()
	a.auditOperatorEvent(ctx, operatorAuditEvent{
		UpdateID: meta.UpdateID,
		Time:     time.Now().UTC(),
		Action:   "reset_daily",
		Command:  meta.Raw,
		UserID:   meta.UserID,
		Username: meta.Username,
		ChatID:   meta.ChatID,
	})
	return "daily pnl reset", nil
}

func parseRiskOverrides(args []string) (map[string]string, error) {
	overrides := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid risk override %q, expected key=value", arg)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			return nil, fmt.Errorf("invalid risk override %q, expected key=value", arg)
		}
		overrides[key] = value
	}
	return overrides, nil
}

func applyRiskOverrides(base risk.Limits, overrides map[string]string) (risk.Limits, error) {
	next := base
	for key, raw := range overrides {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return risk.Limits{}, fmt.Errorf("invalid value for %s: %q", key, raw)
		}
		switch key {
		case "max_position_per_venue":
			next.MaxPositionPerVenue = value
		case "max_total_exposure":
			next.MaxTotalExposure = value
		case "max_single_trade_size":
			next.MaxSingleTradeSize = value
		case "min_profit_after_fees_bps":
			next.MinProfitAfterFeesBPS = value
		case "max_daily_loss":
			next.MaxDailyLoss = value
		case "max_drawdown_fraction":
			next.MaxDrawdownFraction = value
		default:
			return risk.Limits{}, fmt.Errorf("unknown risk key %q", key)
		}
	}
	if err := validateRiskOverride(next); err != nil {
		return risk.Limits{}, err
	}
	return next, nil
}

func validateRiskOverride(l risk.Limits) error {
	if l.MaxPositionPerVenue < 0 {
		return errors.New("max_position_per_venue must be >= 0")
	}
	if l.MaxTotalExposure < 0 {
		return errors.New("max_total_exposure must be >= 0")
	}
	if l.MaxSingleTradeSize < 0 {
		return errors.New("max_single_trade_size must be >= 0")
	}
	if l.MinProfitAfterFeesBPS < 0 {
		return errors.New("min_profit_after_fees_bps must be >= 0")
	}
	if l.MaxDailyLoss < 0 {
		return errors.New("max_daily_loss must be >= 0")
	}
	if l.MaxDrawdownFraction < 0 || l.MaxDrawdownFraction > 1 {
		return errors.New("max_drawdown_fraction must be between 0 and 1")
	}
	return nil
}

func (a *App) isPaused() bool {
	return a.pipeline.Paused()
}

func (a *App) setPaused(paused bool) (before, after bool) {
	before = a.pipeline.Paused()
	if paused {
		a.pipeline.Pause()
	} else {
		a.pipeline.Resume()
	}
	return before, a.pipeline.Paused()
}

func (a *App) riskOverrideActive() bool {
	a.opsMu.RLock()
	defer a.opsMu.RUnlock()
	return a.riskOverride != nil
}

func (a *App) riskOverrideSnapshot() *risk.Limits {
	a.opsMu.RLock()
	defer a.opsMu.RUnlock()
	if a.riskOverride == nil {
		return nil
	}
	override := *a.riskOverride
	return &override
}

func (a *App) setRiskOverride(limits risk.Limits) {
	a.opsMu.Lock()
	a.riskOverride = &limits
	a.opsMu.Unlock()
	a.engine.SetLimits(limits)
	a.log.Info("risk override applied", zap.String("limits", formatLimits(limits)))
}

func (a *App) clearRiskOverride() {
	a.opsMu.Lock()
	active := a.riskOverride != nil
	a.riskOverride = nil
	a.opsMu.Unlock()
	a.engine.SetLimits(a.baseLimits)
	if active {
		a.log.Info("risk override cleared")
	}
}

func (a *App) operatorStatus() string {
	summary := a.tracker.Summary()
	report := a.engine.Report()
	lines := []string{
		fmt.Sprintf("session: %s", a.sessionID),
		fmt.Sprintf("symbol: %s", a.cfg.Engine.Symbol),
		fmt.Sprintf("paused: %t", a.isPaused()),
		fmt.Sprintf("policy: %s", a.engine.Policy()),
		fmt.Sprintf("updates: %d (%.0f/s)", summary.Updates, summary.UpdatesPerSec),
		fmt.Sprintf("opportunities: %d", summary.Opportunities),
		fmt.Sprintf("trades: %d", summary.Trades),
		fmt.Sprintf("daily_pnl: %.2f", report.DailyPnL),
		fmt.Sprintf("total_pnl: %.2f", report.TotalPnL),
		fmt.Sprintf("exposure: %.2f", report.TotalExposure),
		fmt.Sprintf("drawdown: %.2f%%", report.CurrentDrawdown*100),
		fmt.Sprintf("risk_override_active: %t", a.riskOverrideActive()),
	}
	return strings.Join(lines, "\n")
}

func (a *App) riskStatus() string {
	lines := []string{"effective " + formatLimits(a.engine.Limits())}
	if override := a.riskOverrideSnapshot(); override != nil {
		lines = append(lines, "override "+formatLimits(*override))
	} else {
		lines = append(lines, "override: none")
	}
	lines = append(lines, "configured "+formatLimits(a.baseLimits))
	return strings.Join(lines, "\n")
}

func formatLimits(l risk.Limits) string {
	return fmt.Sprintf(
		"limits: max_position_per_venue=%g max_total_exposure=%g max_single_trade_size=%g min_profit_after_fees_bps=%g max_daily_loss=%g max_drawdown_fraction=%g",
		l.MaxPositionPerVenue, l.MaxTotalExposure, l.MaxSingleTradeSize,
		l.MinProfitAfterFeesBPS, l.MaxDailyLoss, l.MaxDrawdownFraction,
	)
}

func operatorHelpText() string {
	return strings.Join([]string{
		"commands:",
		"/status - session, pipeline, and risk summary",
		"/pause - stop evaluating opportunities",
		"/resume - resume evaluating opportunities",
		"/risk show - show effective risk limits",
		"/risk set key=value ... - override risk limits",
		"/risk reset - restore configured risk limits",
		"/reset daily - zero the daily pnl counter",
		"/help - this message",
		"",
		"risk keys: max_position_per_venue, max_total_exposure,",
		"max_single_trade_size, min_profit_after_fees_bps,",
		"max_daily_loss, max_drawdown_fraction",
	}, "\n")
}

func (a *App) loadOperatorOffset(ctx context.Context) int64 {
	if a.store == nil {
		return 0
	}
	raw, ok, err := a.store.Get(ctx, operatorOffsetKey)
	if err != nil {
		a.logOperatorError("telegram operator offset load failed", err)
		return 0
	}
	if !ok {
		return 0
	}
	offset, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		a.logOperatorError("telegram operator offset parse failed", err, zap.String("raw", raw))
		return 0
	}
	return offset
}

func (a *App) saveOperatorOffset(ctx context.Context, offset int64) {
	if a.store == nil {
		return
	}
	if err := a.store.Set(ctx, operatorOffsetKey, strconv.FormatInt(offset, 10)); err != nil {
		a.logOperatorError("telegram operator offset save failed", err)
	}
}

func (a *App) auditOperatorEvent(ctx context.Context, event operatorAuditEvent) {
	a.log.Info("telegram operator action",
		zap.String("action", event.Action),
		zap.String("command", event.Command),
		zap.Int64("user_id", event.UserID),
		zap.String("username", event.Username),
	)
	if a.store == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		a.logOperatorError("telegram operator audit encode failed", err)
		return
	}
	key := fmt.Sprintf("ops:audit:%d:%d", event.Time.UnixNano(), event.UpdateID)
	if err := a.store.Set(ctx, key, string(payload)); err != nil {
		a.logOperatorError("telegram operator audit save failed", err)
	}
}

// logOperatorError logs the first operator failure at warn and the rest
// at debug so a misconfigured bot does not flood the log.
func (a *App) logOperatorError(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	a.opsMu.Lock()
	warned := a.operatorWarned
	a.operatorWarned = true
	a.opsMu.Unlock()
	if warned {
		a.log.Debug(msg, fields...)
		return
	}
	a.log.Warn(msg, fields...)
}
