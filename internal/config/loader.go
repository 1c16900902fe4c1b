package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ORBCORE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ORBCORE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Contract ──
	setStr(&cfg.Contract.Symbol, "ORBCORE_CONTRACT_SYMBOL")
	setFloat64(&cfg.Contract.Multiplier, "ORBCORE_CONTRACT_MULTIPLIER")
	setFloat64(&cfg.Contract.TickSize, "ORBCORE_CONTRACT_TICK_SIZE")

	// ── Session ──
	setStr(&cfg.Session.Open, "ORBCORE_SESSION_OPEN")
	setStr(&cfg.Session.Close, "ORBCORE_SESSION_CLOSE")
	setStr(&cfg.Session.Timezone, "ORBCORE_SESSION_TIMEZONE")
	setDuration(&cfg.Session.CloseLead, "ORBCORE_SESSION_CLOSE_LEAD")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxRiskPerTrade, "ORBCORE_RISK_MAX_RISK_PER_TRADE")
	setFloat64(&cfg.Risk.MaxDailyLoss, "ORBCORE_RISK_MAX_DAILY_LOSS")
	setFloat64(&cfg.Risk.MaxOverallLoss, "ORBCORE_RISK_MAX_OVERALL_LOSS")

	// ── Engine ──
	setInt(&cfg.Engine.QueueSize, "ORBCORE_ENGINE_QUEUE_SIZE")
	setInt(&cfg.Engine.CandleDepth, "ORBCORE_ENGINE_CANDLE_DEPTH")

	// ── Execution ──
	setDuration(&cfg.Execution.Timeout, "ORBCORE_EXECUTION_TIMEOUT")

	// ── Feed ──
	setStr(&cfg.Feed.Source, "ORBCORE_FEED_SOURCE")
	setStr(&cfg.Feed.WSURL, "ORBCORE_FEED_WS_URL")
	setStr(&cfg.Feed.Channel, "ORBCORE_FEED_CHANNEL")
	setStr(&cfg.Feed.ReplayPath, "ORBCORE_FEED_REPLAY_PATH")
	setBool(&cfg.Feed.ReplayPaced, "ORBCORE_FEED_REPLAY_PACED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ORBCORE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ORBCORE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ORBCORE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ORBCORE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ORBCORE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ORBCORE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ORBCORE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ORBCORE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ORBCORE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ORBCORE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ORBCORE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ORBCORE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ORBCORE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORBCORE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORBCORE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORBCORE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORBCORE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ORBCORE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.AuditChannel, "ORBCORE_REDIS_AUDIT_CHANNEL")
	setStr(&cfg.Redis.OrdersChannel, "ORBCORE_REDIS_ORDERS_CHANNEL")
	setStr(&cfg.Redis.FillsChannel, "ORBCORE_REDIS_FILLS_CHANNEL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ORBCORE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ORBCORE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ORBCORE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ORBCORE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ORBCORE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ORBCORE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ORBCORE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ORBCORE_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ORBCORE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ORBCORE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ORBCORE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ORBCORE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ORBCORE_MODE")
	setStr(&cfg.LogLevel, "ORBCORE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
