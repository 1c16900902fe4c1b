package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openrange/orbcore/internal/domain"
)

// BusBroker talks to an out-of-process broker adapter over the signal bus:
// it publishes execution requests on the orders channel and waits for the
// matching confirmation on the fills channel. The adapter owns the actual
// venue session; this core never holds broker credentials.
type BusBroker struct {
	bus           domain.SignalBus
	ordersChannel string
	fillsChannel  string
	logger        *slog.Logger
}

// NewBusBroker wires the broker to its bus channels.
func NewBusBroker(bus domain.SignalBus, ordersChannel, fillsChannel string, logger *slog.Logger) *BusBroker {
	return &BusBroker{
		bus:           bus,
		ordersChannel: ordersChannel,
		fillsChannel:  fillsChannel,
		logger:        logger.With(slog.String("component", "bus_broker")),
	}
}

// Execute publishes the request and blocks until the adapter confirms the
// intent or ctx expires. The subscription is opened before publishing so a
// fast confirmation cannot be missed.
func (b *BusBroker) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	msgs, err := b.bus.Subscribe(ctx, b.fillsChannel)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("bus broker: subscribe %s: %w", b.fillsChannel, err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("bus broker: marshal request: %w", err)
	}
	if err := b.bus.Publish(ctx, b.ordersChannel, payload); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("bus broker: publish %s: %w", b.ordersChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return domain.ExecutionResult{}, ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				return domain.ExecutionResult{}, fmt.Errorf("bus broker: fills channel closed")
			}
			var res domain.ExecutionResult
			if err := json.Unmarshal(raw, &res); err != nil {
				b.logger.Warn("dropping malformed fill message",
					slog.String("error", err.Error()),
				)
				continue
			}
			if res.IntentID != req.Intent.ID {
				continue
			}
			return res, nil
		}
	}
}
