package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openrange/orbcore/internal/domain"
	"github.com/openrange/orbcore/internal/strategy"
)

// handleTick is the core sequence: session boundary → aggregation → limit
// enforcement → stop-loss monitoring → strategy evaluation → risk review →
// execution dispatch.
func (e *Engine) handleTick(tick domain.PriceTick) {
	ts := tick.Timestamp

	// Session boundary accounting happens regardless of control state, and
	// exactly once per trading day: the stored session date only changes
	// here, so a second tick at the same boundary instant is a no-op.
	day := e.calendar.TradingDay(ts)
	if agg := e.session.Aggregates(); agg.Date.IsZero() || !agg.Date.Equal(day) {
		closed := e.session.OnSessionBoundary(day)
		e.candles.Reset()
		if !closed.Date.IsZero() {
			e.emit(domain.AuditSessionClosed, map[string]any{
				"date":         closed.Date.Format(time.DateOnly),
				"symbol":       e.spec.Symbol,
				"aggregates":   closed,
				"realized_pnl": closed.DailyRealizedPnL,
				"trades":       closed.TotalTrades,
			}, ts)
		}
		e.emit(domain.AuditSessionOpened, map[string]any{
			"date":   day.Format(time.DateOnly),
			"symbol": e.spec.Symbol,
		}, ts)
	}

	if e.control == domain.ControlStopped {
		e.lastTick = tick
		return
	}

	e.session.OnTick(tick.Price, tick.Volume, ts)
	e.candles.Apply(tick)
	e.lastTick = tick

	// Loss ceilings are enforced on every tick, not just on intents: a
	// mark-to-market move alone can cross them.
	e.enforceLimits(tick.Price, ts)

	// Stop-loss monitoring runs in Running and Paused: a protective close is
	// independent of strategy and command input.
	for _, slot := range e.positions.StopBreaches(tick.Price) {
		fill, err := e.positions.Close(slot, tick.Price, ts, domain.CloseReasonStopLoss)
		if err != nil {
			// Slot was flattened between the scan and the close.
			continue
		}
		e.recordFill(fill)
		e.dispatchCloseRequest(fill, tick.Price, ts)
	}

	// A stop-out may itself cross a ceiling.
	e.enforceLimits(tick.Price, ts)

	if e.control != domain.ControlRunning {
		return
	}
	if e.governor.State() == domain.RiskStateHalted {
		return
	}

	sctx := e.strategyContext(tick)
	for _, ss := range e.strategies {
		if _, inflight := e.pending[ss.Slot]; inflight {
			// An approved entry is awaiting its fill; the slot stays quiet
			// so it can never hold two positions.
			continue
		}
		c := sctx
		if pos, ok := e.positions.Get(ss.Slot); ok {
			p := pos
			c.Position = &p
		}
		intent := ss.Strategy.Evaluate(c)
		if intent == nil {
			continue
		}
		intent.ID = uuid.NewString()
		intent.CreatedAt = ts
		e.handleIntent(*intent, tick, ts)
		if e.governor.State() == domain.RiskStateHalted {
			// No intent later in the batch may pass once a ceiling crossed.
			return
		}
	}
}

// strategyContext builds the read-only snapshot shared by every slot this
// tick. Position is filled in per slot.
func (e *Engine) strategyContext(tick domain.PriceTick) strategy.Context {
	return strategy.Context{
		Tick:          tick,
		Session:       e.session.Aggregates(),
		Averages:      e.session.Averages(),
		Candles:       e.candles.Snapshot(),
		SessionOpenAt: e.calendar.SessionOpen(tick.Timestamp),
		CloseImminent: e.calendar.CloseImminent(tick.Timestamp),
	}
}

// handleIntent routes one strategy intent through the governor and into the
// position manager or the execution collaborator.
func (e *Engine) handleIntent(intent domain.Intent, tick domain.PriceTick, ts time.Time) {
	if intent.Kind == domain.IntentExit {
		fill, err := e.positions.Close(intent.Slot, tick.Price, ts, domain.CloseReasonStrategy)
		if err != nil {
			e.logger.Debug("exit intent for flat slot ignored",
				slog.String("slot", intent.Slot),
			)
			return
		}
		e.recordFill(fill)
		e.dispatchCloseRequest(fill, tick.Price, ts)
		e.enforceLimits(tick.Price, ts)
		return
	}

	daily, overall := e.pnl(tick.Price)
	wasHalted := e.governor.State() == domain.RiskStateHalted
	decision := e.governor.Review(intent, daily, overall, tick.Price, ts)
	e.noteHalt(wasHalted, ts)
	if !decision.Approved {
		e.emit(domain.AuditIntentRejected, map[string]any{
			"slot":   intent.Slot,
			"reason": string(decision.Reason),
			"detail": decision.Detail,
		}, ts)
		return
	}

	e.emit(domain.AuditIntentApproved, map[string]any{
		"slot":            intent.Slot,
		"side":            string(intent.Side),
		"quantity":        intent.Quantity,
		"reference_price": intent.ReferencePrice,
		"stop_loss":       intent.StopLossPrice,
		"why":             intent.Reason,
	}, ts)

	if e.executor == nil {
		// Fail-closed: without a broker collaborator no position is created.
		e.logger.Warn("approved intent dropped: no executor wired",
			slog.String("slot", intent.Slot),
		)
		return
	}

	// Park the intent and fire-and-record; the position is created when the
	// fill re-enters the queue.
	e.pending[intent.Slot] = intent
	req := domain.ExecutionRequest{Intent: intent, SubmittedAt: ts}
	if err := e.executor.Dispatch(e.runCtx(), req); err != nil {
		delete(e.pending, intent.Slot)
		e.logger.Error("execution dispatch failed",
			slog.String("slot", intent.Slot),
			slog.String("error", err.Error()),
		)
		e.emit(domain.AuditExecutionTimeout, map[string]any{
			"slot":  intent.Slot,
			"error": err.Error(),
		}, ts)
	}
}

// dispatchCloseRequest mirrors an already-applied close to the broker
// collaborator. State has settled; the broker side is fire-and-record.
func (e *Engine) dispatchCloseRequest(fill domain.Fill, price float64, ts time.Time) {
	if e.executor == nil {
		return
	}
	intent := domain.Intent{
		ID:             uuid.NewString(),
		Slot:           fill.Slot,
		Kind:           domain.IntentExit,
		Side:           fill.Side,
		Quantity:       fill.Quantity,
		ReferencePrice: price,
		Reason:         string(fill.Reason),
		CreatedAt:      ts,
	}
	if err := e.executor.Dispatch(e.runCtx(), domain.ExecutionRequest{Intent: intent, SubmittedAt: ts}); err != nil {
		e.logger.Error("close request dispatch failed",
			slog.String("slot", fill.Slot),
			slog.String("error", err.Error()),
		)
	}
}

// handleExecutionResult settles a broker answer for a pending entry.
// Results for exits and unknown intents are ignored; closes settle locally.
func (e *Engine) handleExecutionResult(res domain.ExecutionResult) {
	intent, ok := e.pending[res.Slot]
	if !ok || intent.ID != res.IntentID {
		e.logger.Debug("execution result without pending intent",
			slog.String("slot", res.Slot),
			slog.String("intent_id", res.IntentID),
		)
		return
	}
	delete(e.pending, res.Slot)

	if !res.Filled {
		// Fail-closed: unfilled or timed out means no position.
		e.emit(domain.AuditExecutionTimeout, map[string]any{
			"slot":  res.Slot,
			"error": res.Error,
		}, res.Timestamp)
		return
	}

	if e.governor.State() == domain.RiskStateHalted || e.control != domain.ControlRunning {
		// The world changed while the order was in flight; opening now would
		// bypass the halt or a stop command.
		e.emit(domain.AuditIntentRejected, map[string]any{
			"slot":   res.Slot,
			"reason": "stale_fill",
		}, res.Timestamp)
		return
	}

	pos, err := e.positions.Open(intent, res.FillPrice, res.Timestamp)
	if err != nil {
		e.logger.Error("fill for occupied slot",
			slog.String("slot", res.Slot),
			slog.String("error", err.Error()),
		)
		return
	}
	e.emit(domain.AuditPositionOpened, map[string]any{
		"slot":        pos.Slot,
		"side":        string(pos.Side),
		"quantity":    pos.Quantity,
		"entry_price": pos.EntryPrice,
		"stop_loss":   pos.StopLossPrice,
	}, res.Timestamp)
}

// enforceLimits runs the governor's ceiling check and audits a fresh halt.
func (e *Engine) enforceLimits(price float64, ts time.Time) {
	wasHalted := e.governor.State() == domain.RiskStateHalted
	daily, overall := e.pnl(price)
	e.governor.EnforceLimits(daily, overall, price, ts)
	e.noteHalt(wasHalted, ts)
}

// noteHalt audits the Normal → Halted transition exactly once.
func (e *Engine) noteHalt(wasHalted bool, ts time.Time) {
	if !wasHalted && e.governor.State() == domain.RiskStateHalted {
		limits := e.governor.Limits()
		e.emit(domain.AuditRiskHalted, map[string]any{
			"max_daily_loss":   limits.MaxDailyLoss,
			"max_overall_loss": limits.MaxOverallLoss,
		}, ts)
	}
}
