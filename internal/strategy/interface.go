// Package strategy defines the evaluation contract for trading strategies
// and the three opening-range-breakout variants the engine ships with.
package strategy

import (
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// Context is the read-only snapshot a strategy evaluates against. Everything
// in it is a copy; mutating it has no effect on the engine.
type Context struct {
	Tick          domain.PriceTick
	Session       domain.SessionAggregates
	Averages      map[string]domain.Average
	Position      *domain.Position
	Candles       map[string][]domain.Candle
	SessionOpenAt time.Time
	CloseImminent bool
}

// Average looks up a named moving-average window, returning a zero value when
// the window is not configured.
func (c Context) Average(name string) domain.Average {
	return c.Averages[name]
}

// Series returns the completed candles for a named interval series.
func (c Context) Series(name string) []domain.Candle {
	return c.Candles[name]
}

// Strategy is the contract every variant conforms to. Evaluate must be a
// pure function of the supplied snapshot; the only state a strategy may keep
// is its own private indicator bookkeeping (e.g. the last candle it acted
// on). It returns nil when there is nothing to do.
type Strategy interface {
	Name() string
	Evaluate(ctx Context) *domain.Intent
}

// Config holds per-slot strategy configuration.
type Config struct {
	Slot      string
	Kind      string
	Quantity  int
	StopTicks int
	Params    map[string]any
}

// floatParam reads a float parameter with a default.
func (c Config) floatParam(key string, def float64) float64 {
	if v, ok := c.Params[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return def
}

// enter builds an entry intent at the reference price with the slot's
// configured stop distance.
func enter(cfg Config, spec domain.ContractSpec, side domain.Side, price float64, reason string) *domain.Intent {
	stopDistance := float64(cfg.StopTicks) * spec.TickSize
	stop := price - side.Sign()*stopDistance
	return &domain.Intent{
		Slot:           cfg.Slot,
		Kind:           domain.IntentEnter,
		Side:           side,
		Quantity:       cfg.Quantity,
		ReferencePrice: price,
		StopLossPrice:  stop,
		Reason:         reason,
	}
}

// exit builds an exit intent for the slot's open position.
func exit(cfg Config, pos domain.Position, price float64, reason string) *domain.Intent {
	return &domain.Intent{
		Slot:           cfg.Slot,
		Kind:           domain.IntentExit,
		Side:           pos.Side,
		Quantity:       pos.Quantity,
		ReferencePrice: price,
		Reason:         reason,
	}
}

// vwapStop implements the shared VWAP trailing stop: a long is cut when the
// close drops below VWAP, a short when it rises above.
func vwapStop(pos domain.Position, close, vwap float64) bool {
	if vwap <= 0 {
		return false
	}
	switch pos.Side {
	case domain.SideLong:
		return close < vwap
	case domain.SideShort:
		return close > vwap
	}
	return false
}
