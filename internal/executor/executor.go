// Package executor bridges the engine to the external broker collaborator.
// The engine never blocks on a broker: every dispatch returns promptly and
// the result re-enters the engine's serialized queue via the deliver
// callback.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// Deliver re-injects an execution result into the engine queue. It is
// typically Engine.SubmitExecutionResult.
type Deliver func(res domain.ExecutionResult) error

// Broker is the synchronous broker-facing call the Bridge wraps. Execute
// must honor context cancellation.
type Broker interface {
	Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error)
}

// Paper confirms every entry immediately at its reference price. It is the
// executor for replay and paper modes and for tests.
type Paper struct {
	deliver Deliver
	logger  *slog.Logger
}

// NewPaper creates a Paper executor delivering into the given callback.
func NewPaper(deliver Deliver, logger *slog.Logger) *Paper {
	return &Paper{
		deliver: deliver,
		logger:  logger.With(slog.String("component", "paper_executor")),
	}
}

// Dispatch fills entries at the reference price. Exits are fire-and-record:
// the engine has already settled them, so there is nothing to confirm.
func (p *Paper) Dispatch(_ context.Context, req domain.ExecutionRequest) error {
	if req.Intent.Kind == domain.IntentExit {
		return nil
	}
	res := domain.ExecutionResult{
		IntentID:  req.Intent.ID,
		Slot:      req.Intent.Slot,
		Filled:    true,
		FillPrice: req.Intent.ReferencePrice,
		Timestamp: req.SubmittedAt,
	}
	if err := p.deliver(res); err != nil {
		p.logger.Warn("paper fill delivery failed",
			slog.String("slot", req.Intent.Slot),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// Bridge dispatches requests to a real Broker on its own goroutines with a
// confirmation timeout. A timed-out or failed call comes back as a non-fill,
// so the engine stays fail-closed.
type Bridge struct {
	broker  Broker
	deliver Deliver
	timeout time.Duration
	logger  *slog.Logger
}

// NewBridge wraps broker with the given confirmation timeout.
func NewBridge(broker Broker, deliver Deliver, timeout time.Duration, logger *slog.Logger) *Bridge {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Bridge{
		broker:  broker,
		deliver: deliver,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "execution_bridge")),
	}
}

// Dispatch fires the broker call asynchronously and returns immediately.
func (b *Bridge) Dispatch(_ context.Context, req domain.ExecutionRequest) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		res, err := b.broker.Execute(ctx, req)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				msg = domain.ErrExecutionTimeout.Error()
			}
			res = domain.ExecutionResult{
				IntentID:  req.Intent.ID,
				Slot:      req.Intent.Slot,
				Filled:    false,
				Error:     msg,
				Timestamp: time.Now().UTC(),
			}
		}
		if derr := b.deliverWithRetry(res); derr != nil {
			b.logger.Error("execution result delivery failed",
				slog.String("slot", req.Intent.Slot),
				slog.String("error", derr.Error()),
			)
		}
	}()
	return nil
}

// deliverWithRetry pushes the result into the engine queue, backing off
// while the queue is full. A dropped result would leave the pending intent
// parked on its slot forever, so a full queue is retried for up to the
// bridge timeout before giving up.
func (b *Bridge) deliverWithRetry(res domain.ExecutionResult) error {
	deadline := time.Now().Add(b.timeout)
	for {
		err := b.deliver(res)
		if err == nil || !errors.Is(err, domain.ErrQueueFull) {
			return err
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Millisecond)
	}
}
