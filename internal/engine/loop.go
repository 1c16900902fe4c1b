package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openrange/orbcore/internal/domain"
)

// event is the unit passed through the serialized queue. Exactly one field
// is set.
type event struct {
	tick *domain.PriceTick
	exec *domain.ExecutionResult
	cmd  *cmdRequest
	snap *snapRequest
}

// Result reports what a command did.
type Result struct {
	Closed int
}

type cmdReply struct {
	res Result
	err error
}

type cmdRequest struct {
	cmd   domain.Command
	reply chan cmdReply
}

type snapRequest struct {
	reply chan domain.StatusSnapshot
}

// runCtx is the context cross-component dispatches run under: the loop's
// context once Run has started, background before that (direct-call tests).
func (e *Engine) runCtx() context.Context {
	if e.loopCtx != nil {
		return e.loopCtx
	}
	return context.Background()
}

// Run consumes the serialized queue until the context is cancelled. All
// mutable state is touched only from this loop.
func (e *Engine) Run(ctx context.Context) error {
	e.loopCtx = ctx
	e.logger.Info("engine loop started",
		slog.String("symbol", e.spec.Symbol),
		slog.Int("slots", len(e.strategies)),
	)
	defer e.logger.Info("engine loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.queue:
			e.apply(ev)
		}
	}
}

// apply dispatches one dequeued event. Every cross-component call a single
// event triggers completes before the next event is dequeued.
func (e *Engine) apply(ev event) {
	switch {
	case ev.tick != nil:
		e.handleTick(*ev.tick)
	case ev.exec != nil:
		e.handleExecutionResult(*ev.exec)
	case ev.cmd != nil:
		res, err := e.handleCommand(ev.cmd.cmd)
		ev.cmd.reply <- cmdReply{res: res, err: err}
	case ev.snap != nil:
		ev.snap.reply <- e.snapshot()
	}
}

// SubmitTick enqueues a price tick without blocking. Producers that outrun
// the queue get ErrQueueFull and should drop or back off; ticks are
// replaceable, commands are not.
func (e *Engine) SubmitTick(tick domain.PriceTick) error {
	if !tick.Valid() {
		return fmt.Errorf("engine: tick: %w", domain.ErrValidation)
	}
	select {
	case e.queue <- event{tick: &tick}:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// SubmitExecutionResult re-injects a broker result into the queue. The
// executor collaborator calls this from its own goroutines.
func (e *Engine) SubmitExecutionResult(res domain.ExecutionResult) error {
	select {
	case e.queue <- event{exec: &res}:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Do submits a command and waits for its result. Commands share the tick
// queue, so a command is never applied between a risk check and the mutation
// it guards.
func (e *Engine) Do(ctx context.Context, cmd domain.Command) (Result, error) {
	if err := cmd.Validate(); err != nil {
		return Result{}, fmt.Errorf("engine: command %s: %w", cmd.Kind, err)
	}
	req := &cmdRequest{cmd: cmd, reply: make(chan cmdReply, 1)}
	select {
	case e.queue <- event{cmd: req}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case reply := <-req.reply:
		return reply.res, reply.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Snapshot returns a consistent status view, serialized through the queue so
// it never observes a half-applied tick.
func (e *Engine) Snapshot(ctx context.Context) (domain.StatusSnapshot, error) {
	req := &snapRequest{reply: make(chan domain.StatusSnapshot, 1)}
	select {
	case e.queue <- event{snap: req}:
	case <-ctx.Done():
		return domain.StatusSnapshot{}, ctx.Err()
	}
	select {
	case snap := <-req.reply:
		return snap, nil
	case <-ctx.Done():
		return domain.StatusSnapshot{}, ctx.Err()
	}
}

// Start transitions Stopped → Running.
func (e *Engine) Start(ctx context.Context) error {
	_, err := e.Do(ctx, domain.Command{Kind: domain.CommandStart})
	return err
}

// Stop disables trading. Open positions are kept; closing them requires an
// explicit CloseAll.
func (e *Engine) Stop(ctx context.Context) error {
	_, err := e.Do(ctx, domain.Command{Kind: domain.CommandStop})
	return err
}

// Pause suspends intent generation while market-data aggregation continues.
func (e *Engine) Pause(ctx context.Context) error {
	_, err := e.Do(ctx, domain.Command{Kind: domain.CommandPause})
	return err
}

// Resume transitions Paused → Running.
func (e *Engine) Resume(ctx context.Context) error {
	_, err := e.Do(ctx, domain.Command{Kind: domain.CommandResume})
	return err
}

// CloseAll closes every open position and returns how many were closed.
func (e *Engine) CloseAll(ctx context.Context) (int, error) {
	res, err := e.Do(ctx, domain.Command{Kind: domain.CommandCloseAll})
	return res.Closed, err
}

// ClosePosition closes one slot's position.
func (e *Engine) ClosePosition(ctx context.Context, slot string) error {
	_, err := e.Do(ctx, domain.Command{Kind: domain.CommandClosePosition, Slot: slot})
	return err
}

// UpdateRisk atomically replaces the risk limits between ticks.
func (e *Engine) UpdateRisk(ctx context.Context, limits domain.RiskLimits) error {
	_, err := e.Do(ctx, domain.Command{Kind: domain.CommandUpdateRisk, Limits: &limits})
	return err
}

// ResetRisk is the administrative unlatch for a halted governor.
func (e *Engine) ResetRisk(ctx context.Context) error {
	_, err := e.Do(ctx, domain.Command{Kind: domain.CommandResetRisk})
	return err
}
