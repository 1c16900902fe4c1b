package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/openrange/orbcore/internal/domain"
)

// BusFeed subscribes to a signal-bus channel carrying normalized JSON ticks,
// for deployments where a separate ingest process owns the exchange
// connection and republishes over the bus.
type BusFeed struct {
	bus     domain.SignalBus
	channel string
	symbol  string
	submit  SubmitFunc
	logger  *slog.Logger
}

// NewBusFeed creates a feed reading from the given bus channel.
func NewBusFeed(bus domain.SignalBus, channel, symbol string, submit SubmitFunc, logger *slog.Logger) *BusFeed {
	return &BusFeed{
		bus:     bus,
		channel: channel,
		symbol:  symbol,
		submit:  submit,
		logger:  logger.With(slog.String("component", "bus_feed")),
	}
}

// Run consumes the subscription until the context is cancelled.
func (f *BusFeed) Run(ctx context.Context) error {
	ch, err := f.bus.Subscribe(ctx, f.channel)
	if err != nil {
		return err
	}
	f.logger.Info("bus feed subscribed", slog.String("channel", f.channel))
	defer f.logger.Info("bus feed stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var tick domain.PriceTick
			if err := json.Unmarshal(data, &tick); err != nil {
				f.logger.Debug("malformed bus tick dropped", slog.String("error", err.Error()))
				continue
			}
			if f.symbol != "" && tick.Symbol != f.symbol {
				continue
			}
			if err := f.submit(tick); err != nil {
				f.logger.Debug("bus tick rejected", slog.String("error", err.Error()))
			}
		}
	}
}
