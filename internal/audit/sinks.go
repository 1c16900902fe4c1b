// Package audit provides the sinks the engine's audit stream fans out to:
// structured logs, the signal bus, and the persistent audit store.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openrange/orbcore/internal/domain"
)

// LogSink writes every audit event to the structured log. It never fails.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "audit"))}
}

// Emit logs the event.
func (s *LogSink) Emit(ctx context.Context, ev domain.AuditEvent) error {
	s.logger.InfoContext(ctx, "audit event",
		slog.String("kind", string(ev.Kind)),
		slog.String("id", ev.ID),
		slog.Time("at", ev.Timestamp),
		slog.Any("payload", ev.Payload),
	)
	return nil
}

// Multi fans one event out to several sinks. A failing sink does not stop
// delivery to the rest; failures are collected into one combined error.
type Multi struct {
	sinks []domain.AuditSink
}

// NewMulti creates a fan-out sink.
func NewMulti(sinks ...domain.AuditSink) *Multi {
	return &Multi{sinks: sinks}
}

// Emit delivers to every sink.
func (m *Multi) Emit(ctx context.Context, ev domain.AuditEvent) error {
	var errs []string
	for _, s := range m.sinks {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("audit: %s", strings.Join(errs, "; "))
	}
	return nil
}

// BusSink publishes audit events as JSON to a signal-bus channel for
// external observers (dashboards, archivers, alerting).
type BusSink struct {
	bus     domain.SignalBus
	channel string
}

// NewBusSink creates a BusSink publishing to the given channel.
func NewBusSink(bus domain.SignalBus, channel string) *BusSink {
	return &BusSink{bus: bus, channel: channel}
}

// Emit marshals and publishes the event.
func (s *BusSink) Emit(ctx context.Context, ev domain.AuditEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: marshal event %s: %w", ev.ID, err)
	}
	if err := s.bus.Publish(ctx, s.channel, payload); err != nil {
		return fmt.Errorf("audit: publish event %s: %w", ev.ID, err)
	}
	return nil
}

// StoreSink persists audit events through the audit store collaborator.
type StoreSink struct {
	store domain.AuditStore
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(store domain.AuditStore) *StoreSink {
	return &StoreSink{store: store}
}

// Emit writes the event to the store.
func (s *StoreSink) Emit(ctx context.Context, ev domain.AuditEvent) error {
	return s.store.Append(ctx, ev)
}
