package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Engine    EngineConfig    `yaml:"engine"`
	Detector  DetectorConfig  `yaml:"detector"`
	Risk      RiskConfig      `yaml:"risk"`
	Venues    []VenueConfig   `yaml:"venues"`
	Journal   JournalConfig   `yaml:"journal"`
	State     StateConfig     `yaml:"state"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	if m.Enabled == nil {
		return true
	}
	return *m.Enabled
}

type EngineConfig struct {
	Symbol           string        `yaml:"symbol"`
	StatsInterval    time.Duration `yaml:"stats_interval"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	RunDuration      time.Duration `yaml:"run_duration"`
	SummaryPath      string        `yaml:"summary_path"`
	Resume           *bool         `yaml:"resume"`
}

func (e EngineConfig) ResumeValue() bool {
	if e.Resume == nil {
		return true
	}
	return *e.Resume
}

type DetectorConfig struct {
	MinProfitBPS float64 `yaml:"min_profit_bps"`
}

type RiskConfig struct {
	Profile               string  `yaml:"profile"`
	Policy                string  `yaml:"policy"`
	StartingBalance       float64 `yaml:"starting_balance"`
	FeeRate               float64 `yaml:"fee_rate"`
	FlatFeeBPS            float64 `yaml:"flat_fee_bps"`
	MaxPositionPerVenue   float64 `yaml:"max_position_per_venue"`
	MaxTotalExposure      float64 `yaml:"max_total_exposure"`
	MaxSingleTradeSize    float64 `yaml:"max_single_trade_size"`
	MinProfitAfterFeesBPS float64 `yaml:"min_profit_after_fees_bps"`
	MaxDailyLoss          float64 `yaml:"max_daily_loss"`
	MaxDrawdownFraction   float64 `yaml:"max_drawdown_fraction"`
}

// VenueConfig selects a built-in venue profile by name. The override
// fields customize it; zero values inherit the profile's numbers.
type VenueConfig struct {
	Name         string        `yaml:"name"`
	Seed         uint64        `yaml:"seed"`
	BasePrice    float64       `yaml:"base_price"`
	Volatility   float64       `yaml:"volatility"`
	SpreadMean   float64       `yaml:"spread_mean"`
	SpreadStdDev float64       `yaml:"spread_stddev"`
	Quantity     float64       `yaml:"quantity"`
	MinInterval  time.Duration `yaml:"min_interval"`
	MaxInterval  time.Duration `yaml:"max_interval"`
	LagMin       float64       `yaml:"lag_min"`
	LagMax       float64       `yaml:"lag_max"`
}

type JournalConfig struct {
	CSVPath     string `yaml:"csv_path"`
	ArchivePath string `yaml:"archive_path"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type BridgeConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Listen       string        `yaml:"listen"`
	CSVPath      string        `yaml:"csv_path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type TelegramConfig struct {
	Enabled                bool          `yaml:"enabled"`
	Token                  string        `yaml:"token"`
	ChatID                 string        `yaml:"chat_id"`
	OperatorEnabled        bool          `yaml:"operator_enabled"`
	OperatorPollInterval   time.Duration `yaml:"operator_poll_interval"`
	OperatorAllowedUserIDs []int64       `yaml:"operator_allowed_user_ids"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File != "" {
		if cfg.Log.MaxSizeMB == 0 {
			cfg.Log.MaxSizeMB = 100
		}
		if cfg.Log.MaxBackups == 0 {
			cfg.Log.MaxBackups = 3
		}
		if cfg.Log.MaxAgeDays == 0 {
			cfg.Log.MaxAgeDays = 7
		}
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Engine.Symbol == "" {
		cfg.Engine.Symbol = "BTCUSDT"
	}
	if cfg.Engine.StatsInterval == 0 {
		cfg.Engine.StatsInterval = 10 * time.Second
	}
	if cfg.Engine.SnapshotInterval == 0 {
		cfg.Engine.SnapshotInterval = 30 * time.Second
	}
	if cfg.Engine.SummaryPath == "" {
		cfg.Engine.SummaryPath = "session_summary.txt"
	}
	if cfg.Engine.Resume == nil {
		resume := true
		cfg.Engine.Resume = &resume
	}
	if cfg.Detector.MinProfitBPS == 0 {
		cfg.Detector.MinProfitBPS = 5.0
	}
	if cfg.Risk.Profile == "" {
		cfg.Risk.Profile = "aggressive"
	}
	if cfg.Risk.Policy == "" {
		cfg.Risk.Policy = "standard"
	}
	if len(cfg.Venues) == 0 {
		cfg.Venues = []VenueConfig{
			{Name: "binance"},
			{Name: "coinbase"},
			{Name: "kraken"},
			{Name: "bybit"},
		}
	}
	if cfg.Journal.CSVPath == "" {
		cfg.Journal.CSVPath = "arbitrage_opportunities.csv"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/arb-sim-bot.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
	if cfg.Bridge.Listen == "" {
		cfg.Bridge.Listen = ":8080"
	}
	if cfg.Bridge.CSVPath == "" {
		cfg.Bridge.CSVPath = cfg.Journal.CSVPath
	}
	if cfg.Bridge.PollInterval == 0 {
		cfg.Bridge.PollInterval = 500 * time.Millisecond
	}
	if cfg.Telegram.OperatorPollInterval == 0 {
		cfg.Telegram.OperatorPollInterval = 3 * time.Second
	}
}

func validate(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	if strings.TrimSpace(cfg.Engine.Symbol) == "" {
		return errors.New("engine.symbol is required")
	}
	if cfg.Engine.StatsInterval < 0 {
		return errors.New("engine.stats_interval must be >= 0")
	}
	if cfg.Engine.SnapshotInterval < 0 {
		return errors.New("engine.snapshot_interval must be >= 0")
	}
	if cfg.Engine.RunDuration < 0 {
		return errors.New("engine.run_duration must be >= 0")
	}
	if cfg.Detector.MinProfitBPS < 0 {
		return errors.New("detector.min_profit_bps must be >= 0")
	}
	if cfg.Risk.StartingBalance < 0 {
		return errors.New("risk.starting_balance must be >= 0")
	}
	if cfg.Risk.FeeRate < 0 || cfg.Risk.FeeRate >= 1 {
		return errors.New("risk.fee_rate must be within [0, 1)")
	}
	if cfg.Risk.FlatFeeBPS < 0 {
		return errors.New("risk.flat_fee_bps must be >= 0")
	}
	if cfg.Risk.MaxPositionPerVenue < 0 ||
		cfg.Risk.MaxTotalExposure < 0 ||
		cfg.Risk.MaxSingleTradeSize < 0 ||
		cfg.Risk.MinProfitAfterFeesBPS < 0 ||
		cfg.Risk.MaxDailyLoss < 0 {
		return errors.New("risk overrides must be >= 0")
	}
	if cfg.Risk.MaxDrawdownFraction < 0 || cfg.Risk.MaxDrawdownFraction > 1 {
		return errors.New("risk.max_drawdown_fraction must be within [0, 1]")
	}
	for _, venue := range cfg.Venues {
		if strings.TrimSpace(venue.Name) == "" {
			return errors.New("venues entries require a name")
		}
		if venue.BasePrice < 0 || venue.Volatility < 0 || venue.SpreadMean < 0 ||
			venue.SpreadStdDev < 0 || venue.Quantity < 0 {
			return fmt.Errorf("venue %s: overrides must be >= 0", venue.Name)
		}
		if venue.MinInterval < 0 || venue.MaxInterval < 0 {
			return fmt.Errorf("venue %s: intervals must be >= 0", venue.Name)
		}
		if (venue.MinInterval > 0) != (venue.MaxInterval > 0) {
			return fmt.Errorf("venue %s: min_interval and max_interval must be set together", venue.Name)
		}
		if venue.MinInterval > venue.MaxInterval {
			return fmt.Errorf("venue %s: min_interval exceeds max_interval", venue.Name)
		}
		if venue.LagMin < 0 || venue.LagMax < 0 {
			return fmt.Errorf("venue %s: lag factors must be >= 0", venue.Name)
		}
		if (venue.LagMin > 0) != (venue.LagMax > 0) {
			return fmt.Errorf("venue %s: lag_min and lag_max must be set together", venue.Name)
		}
		if venue.LagMin > venue.LagMax {
			return fmt.Errorf("venue %s: lag_min exceeds lag_max", venue.Name)
		}
	}
	if strings.TrimSpace(cfg.Journal.CSVPath) == "" {
		return errors.New("journal.csv_path is required")
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if cfg.Bridge.PollInterval < 0 {
		return errors.New("bridge.poll_interval must be >= 0")
	}
	if cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" || strings.TrimSpace(cfg.Telegram.ChatID) == "" {
			return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
		}
	}
	return nil
}
