// Package pipeline contains background collaborators that consume the
// engine's audit stream without touching its event queue.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// SessionArchive is the JSON document written to blob storage when a trading
// day closes: the day's final aggregates plus every settled fill.
type SessionArchive struct {
	Symbol     string                   `json:"symbol"`
	Date       string                   `json:"date"`
	Aggregates domain.SessionAggregates `json:"aggregates"`
	Fills      []domain.Fill            `json:"fills"`
	ArchivedAt time.Time                `json:"archived_at"`
}

// SessionArchiver listens on the audit bus for session_closed events and
// writes one archive object per trading day to blob storage under
// sessions/<symbol>/<date>.json.
type SessionArchiver struct {
	bus     domain.SignalBus
	channel string
	writer  domain.BlobWriter
	fills   domain.FillStore
	symbol  string
	logger  *slog.Logger
}

// NewSessionArchiver wires the archiver to its bus channel and stores. The
// fills store may be nil, in which case archives carry aggregates only.
func NewSessionArchiver(bus domain.SignalBus, channel string, writer domain.BlobWriter, fills domain.FillStore, symbol string, logger *slog.Logger) *SessionArchiver {
	return &SessionArchiver{
		bus:     bus,
		channel: channel,
		writer:  writer,
		fills:   fills,
		symbol:  symbol,
		logger:  logger.With(slog.String("component", "session_archiver")),
	}
}

// Run consumes the audit channel until the context is cancelled. Archive
// failures are logged and do not stop the loop; the audit trail in Postgres
// remains the source of truth.
func (a *SessionArchiver) Run(ctx context.Context) error {
	msgs, err := a.bus.Subscribe(ctx, a.channel)
	if err != nil {
		return fmt.Errorf("pipeline: subscribe %s: %w", a.channel, err)
	}
	a.logger.Info("session archiver started", slog.String("channel", a.channel))

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("session archiver stopped")
			return ctx.Err()
		case payload, ok := <-msgs:
			if !ok {
				a.logger.Info("audit channel closed")
				return nil
			}
			var ev domain.AuditEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				a.logger.Warn("dropping malformed audit event", slog.String("error", err.Error()))
				continue
			}
			if ev.Kind != domain.AuditSessionClosed {
				continue
			}
			if err := a.archive(ctx, ev); err != nil {
				a.logger.Error("session archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *SessionArchiver) archive(ctx context.Context, ev domain.AuditEvent) error {
	var aggs domain.SessionAggregates
	raw, err := json.Marshal(ev.Payload["aggregates"])
	if err == nil {
		// Best effort; a payload without aggregates still gets archived.
		_ = json.Unmarshal(raw, &aggs)
	}
	day := aggs.Date
	if day.IsZero() {
		day = ev.Timestamp
	}

	doc := SessionArchive{
		Symbol:     a.symbol,
		Date:       day.Format("2006-01-02"),
		Aggregates: aggs,
		ArchivedAt: time.Now().UTC(),
	}
	if a.fills != nil {
		fills, err := a.fills.ListByDay(ctx, day)
		if err != nil {
			return fmt.Errorf("pipeline: list fills for %s: %w", doc.Date, err)
		}
		doc.Fills = fills
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("pipeline: marshal session archive: %w", err)
	}

	key := fmt.Sprintf("sessions/%s/%s.json", a.symbol, doc.Date)
	if err := a.writer.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return fmt.Errorf("pipeline: write session archive %s: %w", key, err)
	}

	a.logger.Info("session archived",
		slog.String("key", key),
		slog.Int("fills", len(doc.Fills)),
		slog.Float64("daily_pnl", aggs.DailyRealizedPnL),
	)
	return nil
}
