package domain

import (
	"context"
	"io"
	"time"
)

// AuditStore persists the engine's audit stream. Like the fill journal it
// is queried by trading day, the unit session reviews work in.
type AuditStore interface {
	Append(ctx context.Context, ev AuditEvent) error
	ListByDay(ctx context.Context, day time.Time) ([]AuditEvent, error)
}

// FillStore persists settled fills, the engine's trade journal.
type FillStore interface {
	Record(ctx context.Context, fill Fill) error
	ListByDay(ctx context.Context, day time.Time) ([]Fill, error)
}

// BlobWriter writes opaque objects to blob storage (session archives).
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// SignalBus provides pub/sub messaging between the core and its
// collaborators: inbound tick channels and outbound audit/status channels.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
