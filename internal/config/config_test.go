package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Feed.WSURL = "wss://feed.example.com/ticks"
	return cfg
}

func TestDefaultsValidateWithFeedEndpoint(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())

	// The ws source without an endpoint is the one hole in the defaults.
	bare := Defaults()
	err := bare.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws_url")
}

func TestDefaultSlotSizing(t *testing.T) {
	cfg := Defaults()
	require.Len(t, cfg.Strategies, 3)

	byKind := make(map[string]StrategySlot, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		byKind[s.Kind] = s
	}
	assert.Equal(t, 1, byKind["opening_candle"].Quantity)
	assert.Equal(t, 1, byKind["vwap_trend"].Quantity)
	// The band breakout carries twice the base risk.
	assert.Equal(t, 2, byKind["concretum_bands"].Quantity)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	cfg.Contract.Symbol = ""
	cfg.Risk.MaxDailyLoss = 0
	cfg.Engine.QueueSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "unknown mode")
	assert.Contains(t, msg, "symbol")
	assert.Contains(t, msg, "max_daily_loss")
	assert.Contains(t, msg, "queue_size")
}

func TestValidateRejectsDuplicateSlots(t *testing.T) {
	cfg := validConfig()
	cfg.Strategies = []StrategySlot{
		{Slot: "s1", Kind: "opening_candle", Quantity: 1, StopTicks: 40},
		{Slot: "s1", Kind: "vwap_trend", Quantity: 1, StopTicks: 40},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate slot")
}

func TestValidateFeedSourceCrossChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Feed.Source = "bus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires redis")

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Feed.Source = "replay"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay_path")
}

func TestValidateReplayModeRequiresReplaySource(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "replay"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay mode requires the replay source")

	cfg.Feed.Source = "replay"
	cfg.Feed.ReplayPath = "/data/ticks.jsonl"
	assert.NoError(t, cfg.Validate())
}

func TestValidateLiveModeRequiresBrokerChannels(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "live"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live mode requires redis")

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())

	cfg.Redis.OrdersChannel = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders_channel")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := strings.Join([]string{
		`mode = "replay"`,
		``,
		`[contract]`,
		`symbol = "NQ"`,
		`multiplier = 20.0`,
		``,
		`[session]`,
		`close_lead = "10m"`,
		``,
		`[feed]`,
		`source = "replay"`,
		`replay_path = "/data/ticks.jsonl"`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "replay", cfg.Mode)
	assert.Equal(t, "NQ", cfg.Contract.Symbol)
	assert.Equal(t, 20.0, cfg.Contract.Multiplier)
	assert.Equal(t, 10*time.Minute, cfg.Session.CloseLead.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, 0.25, cfg.Contract.TickSize)
	assert.Equal(t, "09:30", cfg.Session.Open)
	assert.Len(t, cfg.Strategies, 3)

	assert.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "paper"`), 0o644))

	t.Setenv("ORBCORE_MODE", "live")
	t.Setenv("ORBCORE_RISK_MAX_DAILY_LOSS", "750")
	t.Setenv("ORBCORE_REDIS_ENABLED", "true")
	t.Setenv("ORBCORE_EXECUTION_TIMEOUT", "2s")
	t.Setenv("ORBCORE_NOTIFY_EVENTS", "risk_halted, force_flatten")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "live", cfg.Mode)
	assert.Equal(t, 750.0, cfg.Risk.MaxDailyLoss)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Execution.Timeout.Duration)
	assert.Equal(t, []string{"risk_halted", "force_flatten"}, cfg.Notify.Events)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestDurationTextRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
