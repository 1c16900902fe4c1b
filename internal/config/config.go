// Package config defines the top-level configuration for the trading core
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ORBCORE_* environment variables.
type Config struct {
	Contract   ContractConfig   `toml:"contract"`
	Session    SessionConfig    `toml:"session"`
	Risk       RiskConfig       `toml:"risk"`
	Engine     EngineConfig     `toml:"engine"`
	Strategies []StrategySlot   `toml:"strategies"`
	Execution  ExecutionConfig  `toml:"execution"`
	Feed       FeedConfig       `toml:"feed"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ContractConfig identifies the traded instrument.
type ContractConfig struct {
	Symbol     string  `toml:"symbol"`
	Multiplier float64 `toml:"multiplier"`
	TickSize   float64 `toml:"tick_size"`
}

// SessionConfig describes the regular trading session in exchange-local time.
type SessionConfig struct {
	Open      string   `toml:"open"`
	Close     string   `toml:"close"`
	Timezone  string   `toml:"timezone"`
	CloseLead duration `toml:"close_lead"`
}

// RiskConfig holds the loss ceilings enforced by the risk governor.
type RiskConfig struct {
	MaxRiskPerTrade float64 `toml:"max_risk_per_trade"`
	MaxDailyLoss    float64 `toml:"max_daily_loss"`
	MaxOverallLoss  float64 `toml:"max_overall_loss"`
}

// EngineConfig tunes the serialized event loop and its aggregates.
type EngineConfig struct {
	QueueSize   int                 `toml:"queue_size"`
	CandleDepth int                 `toml:"candle_depth"`
	Windows     map[string]int      `toml:"windows"`
	Intervals   map[string]duration `toml:"intervals"`
}

// StrategySlot configures one strategy instance bound to one position slot.
type StrategySlot struct {
	Slot      string         `toml:"slot"`
	Kind      string         `toml:"kind"`
	Quantity  int            `toml:"quantity"`
	StopTicks int            `toml:"stop_ticks"`
	Params    map[string]any `toml:"params"`
}

// ExecutionConfig tunes the broker bridge.
type ExecutionConfig struct {
	Timeout duration `toml:"timeout"`
}

// FeedConfig selects and parameterizes the tick source.
type FeedConfig struct {
	// Source selects the feed: "ws", "bus", or "replay".
	Source string `toml:"source"`
	// WSURL is the websocket endpoint for the ws source.
	WSURL string `toml:"ws_url"`
	// Channel is the Redis pub/sub channel for the bus source.
	Channel string `toml:"channel"`
	// ReplayPath is the JSONL tick file for the replay source.
	ReplayPath string `toml:"replay_path"`
	// ReplayPaced replays ticks at their recorded spacing instead of
	// as fast as possible.
	ReplayPaced bool `toml:"replay_paced"`
}

// PostgresConfig holds PostgreSQL connection parameters for the audit trail
// and fill journal.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the signal bus and
// status cache.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	AuditChannel string `toml:"audit_channel"`
	// OrdersChannel and FillsChannel carry execution traffic between the
	// core and the broker adapter in live mode.
	OrdersChannel string `toml:"orders_channel"`
	FillsChannel  string `toml:"fills_channel"`
}

// S3Config holds S3-compatible object storage parameters for session
// archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. The
// session window and aggregate sizing match a US equity index futures day
// session.
func Defaults() Config {
	return Config{
		Contract: ContractConfig{
			Symbol:     "MES",
			Multiplier: 5.0,
			TickSize:   0.25,
		},
		Session: SessionConfig{
			Open:      "09:30",
			Close:     "16:00",
			Timezone:  "America/New_York",
			CloseLead: duration{5 * time.Minute},
		},
		Risk: RiskConfig{
			MaxRiskPerTrade: 250.0,
			MaxDailyLoss:    500.0,
			MaxOverallLoss:  1500.0,
		},
		Engine: EngineConfig{
			QueueSize:   1024,
			CandleDepth: 64,
			Windows: map[string]int{
				"ma300": 300,
				"ma350": 350,
				"ma400": 400,
			},
			Intervals: map[string]duration{
				"1m":  {time.Minute},
				"5m":  {5 * time.Minute},
				"15m": {15 * time.Minute},
			},
		},
		Strategies: []StrategySlot{
			{Slot: "s1", Kind: "opening_candle", Quantity: 1, StopTicks: 40},
			{Slot: "s2", Kind: "vwap_trend", Quantity: 1, StopTicks: 40},
			// The band breakout runs twice the base size of the other two.
			{Slot: "s3", Kind: "concretum_bands", Quantity: 2, StopTicks: 40},
		},
		Execution: ExecutionConfig{
			Timeout: duration{5 * time.Second},
		},
		Feed: FeedConfig{
			Source:  "ws",
			Channel: "orbcore:ticks",
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "orbcore",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:       false,
			Addr:          "localhost:6379",
			DB:            0,
			PoolSize:      20,
			MaxRetries:    3,
			AuditChannel:  "orbcore:audit",
			OrdersChannel: "orbcore:orders",
			FillsChannel:  "orbcore:fills",
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "orbcore-data",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"risk_halted", "force_flatten", "execution_timeout"},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"live":   true,
	"paper":  true,
	"replay": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validFeedSources enumerates the accepted values for Feed.Source.
var validFeedSources = map[string]bool{
	"ws":     true,
	"bus":    true,
	"replay": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: live, paper, replay)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Contract
	if c.Contract.Symbol == "" {
		errs = append(errs, "contract: symbol must not be empty")
	}
	if c.Contract.Multiplier <= 0 {
		errs = append(errs, "contract: multiplier must be > 0")
	}
	if c.Contract.TickSize <= 0 {
		errs = append(errs, "contract: tick_size must be > 0")
	}

	// Session
	if c.Session.Open == "" || c.Session.Close == "" {
		errs = append(errs, "session: open and close must be set (HH:MM)")
	}
	if c.Session.Timezone == "" {
		errs = append(errs, "session: timezone must not be empty")
	}
	if c.Session.CloseLead.Duration < 0 {
		errs = append(errs, "session: close_lead must not be negative")
	}

	// Risk
	if c.Risk.MaxRiskPerTrade <= 0 {
		errs = append(errs, "risk: max_risk_per_trade must be > 0")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		errs = append(errs, "risk: max_daily_loss must be > 0")
	}
	if c.Risk.MaxOverallLoss <= 0 {
		errs = append(errs, "risk: max_overall_loss must be > 0")
	}

	// Engine
	if c.Engine.QueueSize < 1 {
		errs = append(errs, "engine: queue_size must be >= 1")
	}
	if len(c.Engine.Windows) == 0 {
		errs = append(errs, "engine: at least one moving-average window is required")
	}
	for name, size := range c.Engine.Windows {
		if size < 1 {
			errs = append(errs, fmt.Sprintf("engine: window %q size must be >= 1", name))
		}
	}
	if len(c.Engine.Intervals) == 0 {
		errs = append(errs, "engine: at least one candle interval is required")
	}
	for name, iv := range c.Engine.Intervals {
		if iv.Duration <= 0 {
			errs = append(errs, fmt.Sprintf("engine: interval %q must be positive", name))
		}
	}

	// Strategies
	if len(c.Strategies) == 0 {
		errs = append(errs, "strategies: at least one slot must be configured")
	}
	slots := make(map[string]bool, len(c.Strategies))
	for i, s := range c.Strategies {
		if s.Slot == "" {
			errs = append(errs, fmt.Sprintf("strategies[%d]: slot must not be empty", i))
		} else if slots[s.Slot] {
			errs = append(errs, fmt.Sprintf("strategies[%d]: duplicate slot %q", i, s.Slot))
		}
		slots[s.Slot] = true
		if s.Kind == "" {
			errs = append(errs, fmt.Sprintf("strategies[%d]: kind must not be empty", i))
		}
		if s.Quantity < 1 {
			errs = append(errs, fmt.Sprintf("strategies[%d]: quantity must be >= 1", i))
		}
		if s.StopTicks < 1 {
			errs = append(errs, fmt.Sprintf("strategies[%d]: stop_ticks must be >= 1", i))
		}
	}

	// Execution
	if c.Execution.Timeout.Duration <= 0 {
		errs = append(errs, "execution: timeout must be positive")
	}

	// Feed
	if !validFeedSources[strings.ToLower(c.Feed.Source)] {
		errs = append(errs, fmt.Sprintf("feed: unknown source %q (valid: ws, bus, replay)", c.Feed.Source))
	}
	switch strings.ToLower(c.Feed.Source) {
	case "ws":
		if c.Feed.WSURL == "" {
			errs = append(errs, "feed: ws_url is required for the ws source")
		}
	case "bus":
		if c.Feed.Channel == "" {
			errs = append(errs, "feed: channel is required for the bus source")
		}
		if !c.Redis.Enabled {
			errs = append(errs, "feed: bus source requires redis to be enabled")
		}
	case "replay":
		if c.Feed.ReplayPath == "" {
			errs = append(errs, "feed: replay_path is required for the replay source")
		}
	}
	if c.Mode == "replay" && strings.ToLower(c.Feed.Source) != "replay" {
		errs = append(errs, "feed: replay mode requires the replay source")
	}
	if strings.ToLower(c.Mode) == "live" {
		if !c.Redis.Enabled {
			errs = append(errs, "redis: live mode requires redis for the broker adapter channels")
		}
		if c.Redis.OrdersChannel == "" || c.Redis.FillsChannel == "" {
			errs = append(errs, "redis: orders_channel and fills_channel must be set for live mode")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.AuditChannel == "" {
			errs = append(errs, "redis: audit_channel must not be empty")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if !c.Redis.Enabled {
			errs = append(errs, "s3: session archiving requires redis to be enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
