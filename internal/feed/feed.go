// Package feed contains the price-feed adapters. The core is agnostic to
// where ticks come from: a live websocket, a replay file, or a bus
// subscription all push the same normalized PriceTick into the engine.
package feed

import (
	"context"

	"github.com/openrange/orbcore/internal/domain"
)

// SubmitFunc pushes one tick into the engine's serialized queue. It is
// typically Engine.SubmitTick. ErrQueueFull means the consumer is behind;
// adapters drop the tick and keep going.
type SubmitFunc func(tick domain.PriceTick) error

// Feed is a tick source. Run blocks until the context is cancelled or the
// source is exhausted.
type Feed interface {
	Run(ctx context.Context) error
}
