package strategy

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrange/orbcore/internal/domain"
)

var testSpec = domain.ContractSpec{Symbol: "MES", Multiplier: 5.0, TickSize: 0.25}

var (
	testDay    = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	testOpenAt = testDay.Add(9*time.Hour + 30*time.Minute)
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func slotConfig(slot, kind string, params map[string]any) Config {
	return Config{Slot: slot, Kind: kind, Quantity: 1, StopTicks: 40, Params: params}
}

func bar(open, close float64, start time.Time) domain.Candle {
	high, low := open, close
	if close > open {
		high = close
		low = open
	}
	return domain.Candle{Open: open, High: high, Low: low, Close: close, Volume: 10, Start: start}
}

func baseContext(price float64) Context {
	return Context{
		Tick:          domain.PriceTick{Symbol: "MES", Price: price, Volume: 1, Timestamp: testOpenAt.Add(6 * time.Minute)},
		Session:       domain.SessionAggregates{Date: testDay, OpenPrice: price, LastPrice: price},
		Averages:      map[string]domain.Average{},
		Candles:       map[string][]domain.Candle{},
		SessionOpenAt: testOpenAt,
	}
}

func longPosition(slot string) *domain.Position {
	return &domain.Position{Slot: slot, Side: domain.SideLong, Quantity: 1, EntryPrice: 5000, StopLossPrice: 4990}
}

// --- opening candle direction ---

func newOpeningCandle(t *testing.T) Strategy {
	t.Helper()
	s, err := NewOpeningCandleDirection(slotConfig("s1", KindOpeningCandle, nil), testSpec, testLogger())
	require.NoError(t, err)
	return s
}

func TestOpeningCandleEntersLongOnBullishOpen(t *testing.T) {
	s := newOpeningCandle(t)

	ctx := baseContext(5010)
	ctx.Candles["5m"] = []domain.Candle{bar(5000, 5008, testOpenAt)}
	ctx.Averages["ma350"] = domain.Average{Value: 5004, Count: 350, Full: true}

	intent := s.Evaluate(ctx)
	require.NotNil(t, intent)
	assert.Equal(t, domain.IntentEnter, intent.Kind)
	assert.Equal(t, domain.SideLong, intent.Side)
	assert.Equal(t, "s1", intent.Slot)
	assert.Equal(t, 1, intent.Quantity)
	assert.Equal(t, 5010.0, intent.ReferencePrice)
	// 40 ticks of 0.25 below the entry.
	assert.InDelta(t, 5000.0, intent.StopLossPrice, 1e-9)
}

func TestOpeningCandleEntersShortOnBearishOpen(t *testing.T) {
	s := newOpeningCandle(t)

	ctx := baseContext(4990)
	ctx.Candles["5m"] = []domain.Candle{bar(5000, 4992, testOpenAt)}
	ctx.Averages["ma350"] = domain.Average{Value: 4996, Count: 350, Full: true}

	intent := s.Evaluate(ctx)
	require.NotNil(t, intent)
	assert.Equal(t, domain.SideShort, intent.Side)
	assert.InDelta(t, 5000.0, intent.StopLossPrice, 1e-9)
}

func TestOpeningCandleActsOncePerSession(t *testing.T) {
	s := newOpeningCandle(t)

	ctx := baseContext(5010)
	ctx.Candles["5m"] = []domain.Candle{bar(5000, 5008, testOpenAt)}
	ctx.Averages["ma350"] = domain.Average{Value: 5004, Count: 350, Full: true}

	require.NotNil(t, s.Evaluate(ctx))
	assert.Nil(t, s.Evaluate(ctx))

	// The next trading day is a fresh signal.
	next := ctx
	next.Session.Date = testDay.AddDate(0, 0, 1)
	next.SessionOpenAt = next.Session.Date.Add(9*time.Hour + 30*time.Minute)
	next.Candles = map[string][]domain.Candle{
		"5m": {bar(5000, 5008, next.SessionOpenAt)},
	}
	assert.NotNil(t, s.Evaluate(next))
}

func TestOpeningCandleIgnoresNonOpeningBar(t *testing.T) {
	s := newOpeningCandle(t)

	ctx := baseContext(5010)
	// First completed bar starts after the session open: a late start.
	ctx.Candles["5m"] = []domain.Candle{bar(5000, 5008, testOpenAt.Add(5*time.Minute))}
	ctx.Averages["ma350"] = domain.Average{Value: 5004, Count: 350, Full: true}

	assert.Nil(t, s.Evaluate(ctx))
}

func TestOpeningCandleWaitsForFullAverage(t *testing.T) {
	s := newOpeningCandle(t)

	ctx := baseContext(5010)
	ctx.Candles["5m"] = []domain.Candle{bar(5000, 5008, testOpenAt)}
	ctx.Averages["ma350"] = domain.Average{Value: 5004, Count: 200, Full: false}

	assert.Nil(t, s.Evaluate(ctx))
}

func TestOpeningCandleRequiresTrendAgreement(t *testing.T) {
	s := newOpeningCandle(t)

	// Bullish bar closing below the average: no signal.
	ctx := baseContext(5010)
	ctx.Candles["5m"] = []domain.Candle{bar(5000, 5008, testOpenAt)}
	ctx.Averages["ma350"] = domain.Average{Value: 5020, Count: 350, Full: true}

	assert.Nil(t, s.Evaluate(ctx))
}

func TestOpeningCandleExitsAtMarketClose(t *testing.T) {
	s := newOpeningCandle(t)

	ctx := baseContext(5010)
	ctx.CloseImminent = true
	assert.Nil(t, s.Evaluate(ctx))

	ctx.Position = longPosition("s1")
	intent := s.Evaluate(ctx)
	require.NotNil(t, intent)
	assert.Equal(t, domain.IntentExit, intent.Kind)
}

// --- vwap trend following ---

func newVWAPTrend(t *testing.T) Strategy {
	t.Helper()
	s, err := NewVWAPTrendFollowing(slotConfig("s2", KindVWAPTrend, nil), testSpec, testLogger())
	require.NoError(t, err)
	return s
}

func TestVWAPTrendEntersWithTrend(t *testing.T) {
	s := newVWAPTrend(t)

	ctx := baseContext(5012)
	ctx.Session.VWAP = 5005
	ctx.Candles["15m"] = []domain.Candle{bar(5002, 5010, testOpenAt)}
	ctx.Averages["ma300"] = domain.Average{Value: 5001, Count: 300, Full: true}

	intent := s.Evaluate(ctx)
	require.NotNil(t, intent)
	assert.Equal(t, domain.SideLong, intent.Side)
	assert.Equal(t, "s2", intent.Slot)
}

func TestVWAPTrendEntersShortBelowVWAPAndTrend(t *testing.T) {
	s := newVWAPTrend(t)

	ctx := baseContext(4990)
	ctx.Session.VWAP = 5000
	ctx.Candles["15m"] = []domain.Candle{bar(5000, 4992, testOpenAt)}
	ctx.Averages["ma300"] = domain.Average{Value: 4995, Count: 300, Full: true}

	intent := s.Evaluate(ctx)
	require.NotNil(t, intent)
	assert.Equal(t, domain.SideShort, intent.Side)
}

func TestVWAPTrendActsOncePerBar(t *testing.T) {
	s := newVWAPTrend(t)

	ctx := baseContext(5012)
	ctx.Session.VWAP = 5005
	ctx.Candles["15m"] = []domain.Candle{bar(5002, 5010, testOpenAt)}
	ctx.Averages["ma300"] = domain.Average{Value: 5001, Count: 300, Full: true}

	require.NotNil(t, s.Evaluate(ctx))
	// Same completed bar again: nothing new to act on.
	assert.Nil(t, s.Evaluate(ctx))

	ctx.Candles["15m"] = append(ctx.Candles["15m"], bar(5010, 5014, testOpenAt.Add(15*time.Minute)))
	assert.NotNil(t, s.Evaluate(ctx))
}

func TestVWAPTrendTrailingStopCutsLosers(t *testing.T) {
	s := newVWAPTrend(t)

	ctx := baseContext(4998)
	ctx.Session.VWAP = 5000
	ctx.Position = longPosition("s2")
	ctx.Candles["15m"] = []domain.Candle{bar(5002, 4998, testOpenAt)}

	intent := s.Evaluate(ctx)
	require.NotNil(t, intent)
	assert.Equal(t, domain.IntentExit, intent.Kind)
	assert.Equal(t, "vwap trailing stop", intent.Reason)
}

func TestVWAPTrendHoldsWinnersAboveVWAP(t *testing.T) {
	s := newVWAPTrend(t)

	ctx := baseContext(5010)
	ctx.Session.VWAP = 5000
	ctx.Position = longPosition("s2")
	ctx.Candles["15m"] = []domain.Candle{bar(5002, 5010, testOpenAt)}

	assert.Nil(t, s.Evaluate(ctx))
}

func TestVWAPTrendWaitsForVWAP(t *testing.T) {
	s := newVWAPTrend(t)

	// No traded volume yet: VWAP is zero and entries stay off.
	ctx := baseContext(5012)
	ctx.Candles["15m"] = []domain.Candle{bar(5002, 5010, testOpenAt)}
	ctx.Averages["ma300"] = domain.Average{Value: 5001, Count: 300, Full: true}

	assert.Nil(t, s.Evaluate(ctx))
}

// --- concretum bands breakout ---

func newConcretum(t *testing.T, params map[string]any) Strategy {
	t.Helper()
	s, err := NewConcretumBandsBreakout(slotConfig("s3", KindConcretumBands, params), testSpec, testLogger())
	require.NoError(t, err)
	return s
}

func TestConcretumBandsLongBreakout(t *testing.T) {
	s := newConcretum(t, map[string]any{"min_factor": 0.01})

	// Session open 100: bands at 99 and 101 with the floored factor.
	ctx := baseContext(101.6)
	ctx.Session.OpenPrice = 100
	ctx.Candles["1m"] = []domain.Candle{
		bar(100, 100.4, testOpenAt),
		bar(100.4, 101.5, testOpenAt.Add(time.Minute)),
	}
	ctx.Averages["ma400"] = domain.Average{Value: 100.2, Count: 400, Full: true}

	intent := s.Evaluate(ctx)
	require.NotNil(t, intent)
	assert.Equal(t, domain.SideLong, intent.Side)
	assert.Equal(t, "upper band breakout", intent.Reason)
}

func TestConcretumBandsShortBreakout(t *testing.T) {
	s := newConcretum(t, map[string]any{"min_factor": 0.01})

	ctx := baseContext(98.4)
	ctx.Session.OpenPrice = 100
	ctx.Candles["1m"] = []domain.Candle{
		bar(100, 99.6, testOpenAt),
		bar(99.6, 98.5, testOpenAt.Add(time.Minute)),
	}
	ctx.Averages["ma400"] = domain.Average{Value: 99.8, Count: 400, Full: true}

	intent := s.Evaluate(ctx)
	require.NotNil(t, intent)
	assert.Equal(t, domain.SideShort, intent.Side)
	assert.Equal(t, "lower band breakout", intent.Reason)
}

func TestConcretumBandsNeedsTwoBars(t *testing.T) {
	s := newConcretum(t, map[string]any{"min_factor": 0.01})

	ctx := baseContext(101.6)
	ctx.Session.OpenPrice = 100
	ctx.Candles["1m"] = []domain.Candle{bar(100, 101.5, testOpenAt)}
	ctx.Averages["ma400"] = domain.Average{Value: 100.2, Count: 400, Full: true}

	assert.Nil(t, s.Evaluate(ctx))
}

func TestConcretumBandsNoSignalInsideBands(t *testing.T) {
	s := newConcretum(t, map[string]any{"min_factor": 0.01})

	ctx := baseContext(100.3)
	ctx.Session.OpenPrice = 100
	ctx.Candles["1m"] = []domain.Candle{
		bar(100, 100.1, testOpenAt),
		bar(100.1, 100.3, testOpenAt.Add(time.Minute)),
	}
	ctx.Averages["ma400"] = domain.Average{Value: 100.0, Count: 400, Full: true}

	assert.Nil(t, s.Evaluate(ctx))
}

func TestConcretumBandsActsOncePerBar(t *testing.T) {
	s := newConcretum(t, map[string]any{"min_factor": 0.01})

	ctx := baseContext(101.6)
	ctx.Session.OpenPrice = 100
	ctx.Candles["1m"] = []domain.Candle{
		bar(100, 100.4, testOpenAt),
		bar(100.4, 101.5, testOpenAt.Add(time.Minute)),
	}
	ctx.Averages["ma400"] = domain.Average{Value: 100.2, Count: 400, Full: true}

	require.NotNil(t, s.Evaluate(ctx))
	assert.Nil(t, s.Evaluate(ctx))
}

func TestConcretumBandsTrailingStop(t *testing.T) {
	s := newConcretum(t, map[string]any{"min_factor": 0.01})

	ctx := baseContext(99.5)
	ctx.Session.OpenPrice = 100
	ctx.Session.VWAP = 100
	ctx.Position = longPosition("s3")
	ctx.Candles["1m"] = []domain.Candle{
		bar(100, 100.4, testOpenAt),
		bar(100.4, 99.5, testOpenAt.Add(time.Minute)),
	}

	intent := s.Evaluate(ctx)
	require.NotNil(t, intent)
	assert.Equal(t, domain.IntentExit, intent.Kind)
}

func TestConcretumBandsVolatilityFactorWidensBands(t *testing.T) {
	s := newConcretum(t, map[string]any{"min_factor": 0.0001, "band_scale": 1.0})

	// Volatile session: returns of roughly ±1% push the factor well past
	// the floor, so a close just above open*1.001 is still inside the bands.
	ctx := baseContext(100.2)
	ctx.Session.OpenPrice = 100
	ctx.Candles["1m"] = []domain.Candle{
		bar(100, 101, testOpenAt),
		bar(101, 100, testOpenAt.Add(time.Minute)),
		bar(100, 101, testOpenAt.Add(2*time.Minute)),
		bar(101, 100.2, testOpenAt.Add(3*time.Minute)),
	}
	ctx.Averages["ma400"] = domain.Average{Value: 99.0, Count: 400, Full: true}

	assert.Nil(t, s.Evaluate(ctx))
}

// --- registry ---

func TestRegistryBuildsBuiltinKinds(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{KindConcretumBands, KindOpeningCandle, KindVWAPTrend}, r.Kinds())

	for _, kind := range r.Kinds() {
		s, err := r.Build(slotConfig("s1", kind, nil), testSpec, testLogger())
		require.NoError(t, err)
		assert.Equal(t, kind, s.Name())
	}
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build(slotConfig("s1", "momentum", nil), testSpec, testLogger())
	assert.Error(t, err)
}

func TestRegistryValidatesSlotConfig(t *testing.T) {
	r := NewRegistry()

	cfg := slotConfig("", KindVWAPTrend, nil)
	_, err := r.Build(cfg, testSpec, testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)

	cfg = slotConfig("s1", KindVWAPTrend, nil)
	cfg.Quantity = 0
	_, err = r.Build(cfg, testSpec, testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)

	cfg = slotConfig("s1", KindVWAPTrend, nil)
	cfg.StopTicks = 0
	_, err = r.Build(cfg, testSpec, testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)
}
