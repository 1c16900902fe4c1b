package engine

import (
	"fmt"
	"log/slog"

	"github.com/openrange/orbcore/internal/domain"
)

// handleCommand applies one control-surface command inside the serialized
// loop. Lifecycle violations come back as explicit errors; nothing here
// panics or retries.
func (e *Engine) handleCommand(cmd domain.Command) (Result, error) {
	now := e.now()

	switch cmd.Kind {
	case domain.CommandStart:
		if e.control != domain.ControlStopped {
			return Result{}, fmt.Errorf("engine: start from %s: %w", e.control, domain.ErrNotRunnable)
		}
		e.setControl(domain.ControlRunning)
		return Result{}, nil

	case domain.CommandStop:
		if e.control == domain.ControlStopped {
			return Result{}, fmt.Errorf("engine: stop from %s: %w", e.control, domain.ErrNotRunnable)
		}
		// Stop disables trading but keeps positions; closing them is an
		// explicit close_all.
		e.setControl(domain.ControlStopped)
		return Result{}, nil

	case domain.CommandPause:
		if e.control != domain.ControlRunning {
			return Result{}, fmt.Errorf("engine: pause from %s: %w", e.control, domain.ErrNotRunnable)
		}
		e.setControl(domain.ControlPaused)
		return Result{}, nil

	case domain.CommandResume:
		if e.control != domain.ControlPaused {
			return Result{}, fmt.Errorf("engine: resume from %s: %w", e.control, domain.ErrNotRunnable)
		}
		e.setControl(domain.ControlRunning)
		return Result{}, nil

	case domain.CommandCloseAll:
		if e.positions.Count() == 0 {
			return Result{}, nil
		}
		price, ok := e.markPrice()
		if !ok {
			return Result{}, fmt.Errorf("engine: close_all: %w", domain.ErrNoMarketData)
		}
		fills := e.positions.CloseAll(price, now, domain.CloseReasonManual)
		for _, fill := range fills {
			e.recordFill(fill)
			e.dispatchCloseRequest(fill, price, now)
		}
		return Result{Closed: len(fills)}, nil

	case domain.CommandClosePosition:
		if !e.slots[cmd.Slot] {
			return Result{}, fmt.Errorf("engine: close_position %q: %w", cmd.Slot, domain.ErrUnknownSlot)
		}
		if _, held := e.positions.Get(cmd.Slot); !held {
			return Result{}, fmt.Errorf("engine: close_position %q: %w", cmd.Slot, domain.ErrNoPosition)
		}
		price, ok := e.markPrice()
		if !ok {
			return Result{}, fmt.Errorf("engine: close_position %q: %w", cmd.Slot, domain.ErrNoMarketData)
		}
		fill, err := e.positions.Close(cmd.Slot, price, now, domain.CloseReasonManual)
		if err != nil {
			return Result{}, err
		}
		e.recordFill(fill)
		e.dispatchCloseRequest(fill, price, now)
		return Result{Closed: 1}, nil

	case domain.CommandUpdateRisk:
		if err := e.governor.UpdateLimits(*cmd.Limits); err != nil {
			return Result{}, err
		}
		e.emit(domain.AuditLimitsUpdated, map[string]any{
			"max_risk_per_trade": cmd.Limits.MaxRiskPerTrade,
			"max_daily_loss":     cmd.Limits.MaxDailyLoss,
			"max_overall_loss":   cmd.Limits.MaxOverallLoss,
		}, now)
		return Result{}, nil

	case domain.CommandResetRisk:
		e.governor.Reset()
		e.emit(domain.AuditRiskReset, nil, now)
		return Result{}, nil

	default:
		return Result{}, fmt.Errorf("engine: command %q: %w", cmd.Kind, domain.ErrValidation)
	}
}

// setControl applies a control transition and audits it.
func (e *Engine) setControl(next domain.ControlState) {
	prev := e.control
	e.control = next
	e.logger.Info("control state changed",
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	)
	e.emit(domain.AuditControlState, map[string]any{
		"from": string(prev),
		"to":   string(next),
	}, e.now())
}
