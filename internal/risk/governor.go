// Package risk is the safety core: every intent and every loss threshold is
// gated here, and only here.
package risk

import (
	"log/slog"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// Reason enumerates why an intent was denied.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonHalted       Reason = "halted"
	ReasonPerTradeRisk Reason = "per_trade_risk"
	ReasonDailyLoss    Reason = "daily_loss"
	ReasonOverallLoss  Reason = "overall_loss"
	ReasonInvalid      Reason = "invalid_intent"
)

// Decision is the governor's verdict on a single intent.
type Decision struct {
	Approved bool
	Reason   Reason
	Detail   string
}

// Flattener closes every open position; implemented by the position manager.
type Flattener interface {
	CloseAll(exitPrice float64, ts time.Time, reason domain.CloseReason) []domain.Fill
}

// Governor owns RiskState and the configured loss ceilings. Once a ceiling
// is crossed it latches Halted, flattens everything, and rejects all further
// entries until an explicit administrative reset. It is not safe for
// concurrent use; the engine's serialized loop is its only caller.
type Governor struct {
	limits     domain.RiskLimits
	state      domain.RiskState
	multiplier float64
	flattener  Flattener
	onFlatten  func(fills []domain.Fill, price float64, ts time.Time)
	logger     *slog.Logger
}

// NewGovernor creates a Governor in the Normal state. onFlatten receives the
// fills produced by a forced flatten so the caller can account for them; it
// may be nil.
func NewGovernor(
	limits domain.RiskLimits,
	multiplier float64,
	flattener Flattener,
	onFlatten func(fills []domain.Fill, price float64, ts time.Time),
	logger *slog.Logger,
) *Governor {
	return &Governor{
		limits:     limits,
		state:      domain.RiskStateNormal,
		multiplier: multiplier,
		flattener:  flattener,
		onFlatten:  onFlatten,
		logger:     logger.With(slog.String("component", "risk_governor")),
	}
}

// State returns the current risk state.
func (g *Governor) State() domain.RiskState { return g.state }

// Limits returns the active limits.
func (g *Governor) Limits() domain.RiskLimits { return g.limits }

// UpdateLimits replaces the limits wholesale. The engine only calls this
// between ticks, so a review never sees a half-applied change.
func (g *Governor) UpdateLimits(limits domain.RiskLimits) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	g.limits = limits
	g.logger.Info("risk limits updated",
		slog.Float64("max_risk_per_trade", limits.MaxRiskPerTrade),
		slog.Float64("max_daily_loss", limits.MaxDailyLoss),
		slog.Float64("max_overall_loss", limits.MaxOverallLoss),
	)
	return nil
}

// Reset is the administrative unlatch. Nothing else clears Halted.
func (g *Governor) Reset() {
	if g.state == domain.RiskStateHalted {
		g.logger.Warn("risk state reset to normal by administrative command")
	}
	g.state = domain.RiskStateNormal
}

// Review gates a single intent against the active limits. Exits are always
// approved: they can only reduce exposure. Crossing a loss ceiling halts and
// flattens as a side effect, so no later intent in the same batch can pass.
func (g *Governor) Review(intent domain.Intent, dailyPnL, overallPnL, price float64, ts time.Time) Decision {
	if intent.Kind == domain.IntentExit {
		return Decision{Approved: true}
	}
	if err := intent.Validate(); err != nil {
		return Decision{Reason: ReasonInvalid, Detail: err.Error()}
	}
	if g.state == domain.RiskStateHalted {
		return Decision{Reason: ReasonHalted}
	}
	if reason := g.breach(dailyPnL, overallPnL); reason != ReasonNone {
		g.halt(reason, price, ts)
		return Decision{Reason: reason}
	}

	tradeRisk := float64(intent.Quantity) * intent.PerContractRisk(g.multiplier)
	if tradeRisk > g.limits.MaxRiskPerTrade {
		g.logger.Warn("intent rejected: per-trade risk",
			slog.String("slot", intent.Slot),
			slog.Float64("trade_risk", tradeRisk),
			slog.Float64("max", g.limits.MaxRiskPerTrade),
		)
		return Decision{Reason: ReasonPerTradeRisk}
	}

	return Decision{Approved: true}
}

// EnforceLimits checks the loss ceilings outside of any intent, so a
// threshold crossed by a stop-out or a mark-to-market move halts trading on
// the very tick it happens. It returns true when the governor is halted
// after the check.
func (g *Governor) EnforceLimits(dailyPnL, overallPnL, price float64, ts time.Time) bool {
	if g.state == domain.RiskStateHalted {
		return true
	}
	if reason := g.breach(dailyPnL, overallPnL); reason != ReasonNone {
		g.halt(reason, price, ts)
		return true
	}
	return false
}

// ForceFlattenAll closes every open position at the given reference price
// and returns the number closed. It never fails.
func (g *Governor) ForceFlattenAll(price float64, ts time.Time) int {
	fills := g.flattener.CloseAll(price, ts, domain.CloseReasonRiskFlatten)
	if g.onFlatten != nil {
		g.onFlatten(fills, price, ts)
	}
	return len(fills)
}

func (g *Governor) breach(dailyPnL, overallPnL float64) Reason {
	if dailyPnL <= -g.limits.MaxDailyLoss {
		return ReasonDailyLoss
	}
	if overallPnL <= -g.limits.MaxOverallLoss {
		return ReasonOverallLoss
	}
	return ReasonNone
}

func (g *Governor) halt(reason Reason, price float64, ts time.Time) {
	g.state = domain.RiskStateHalted
	g.logger.Error("risk limit breached, halting and flattening",
		slog.String("reason", string(reason)),
	)
	closed := g.ForceFlattenAll(price, ts)
	g.logger.Warn("forced flatten complete", slog.Int("closed", closed))
}
