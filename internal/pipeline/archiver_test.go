package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrange/orbcore/internal/domain"
)

type chanBus struct {
	msgs chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.msgs <- payload
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.msgs, nil
}

type memWriter struct {
	keys   []string
	bodies [][]byte
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.keys = append(w.keys, path)
	w.bodies = append(w.bodies, body)
	return nil
}

type stubFills struct {
	fills []domain.Fill
	day   time.Time
}

func (s *stubFills) Record(context.Context, domain.Fill) error { return nil }

func (s *stubFills) ListByDay(_ context.Context, day time.Time) ([]domain.Fill, error) {
	s.day = day
	return s.fills, nil
}

func closedEvent(t *testing.T, date time.Time, pnl float64) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.AuditEvent{
		ID:   "ev-1",
		Kind: domain.AuditSessionClosed,
		Payload: map[string]any{
			"date":   date.Format(time.DateOnly),
			"symbol": "MES",
			"aggregates": domain.SessionAggregates{
				Date:             date,
				DailyRealizedPnL: pnl,
				TotalTrades:      2,
			},
			"realized_pnl": pnl,
			"trades":       2,
		},
		Timestamp: date.Add(16 * time.Hour),
	})
	require.NoError(t, err)
	return payload
}

func TestArchiverWritesSessionDocument(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bus := &chanBus{msgs: make(chan []byte, 4)}
	writer := &memWriter{}
	fills := &stubFills{fills: []domain.Fill{
		{Slot: "s1", Side: domain.SideLong, Quantity: 1, RealizedPnL: 50, Reason: domain.CloseReasonStrategy},
		{Slot: "s2", Side: domain.SideShort, Quantity: 1, RealizedPnL: 25, Reason: domain.CloseReasonManual},
	}}
	a := NewSessionArchiver(bus, "orbcore:audit", writer, fills, "MES", slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, a.archive(context.Background(), mustEvent(t, closedEvent(t, day, 75))))

	require.Len(t, writer.keys, 1)
	assert.Equal(t, "sessions/MES/2026-03-02.json", writer.keys[0])
	assert.True(t, fills.day.Equal(day))

	var doc SessionArchive
	require.NoError(t, json.Unmarshal(writer.bodies[0], &doc))
	assert.Equal(t, "MES", doc.Symbol)
	assert.Equal(t, "2026-03-02", doc.Date)
	assert.InDelta(t, 75.0, doc.Aggregates.DailyRealizedPnL, 1e-9)
	assert.Len(t, doc.Fills, 2)
}

func TestArchiverWithoutFillStore(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bus := &chanBus{msgs: make(chan []byte, 4)}
	writer := &memWriter{}
	a := NewSessionArchiver(bus, "orbcore:audit", writer, nil, "MES", slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, a.archive(context.Background(), mustEvent(t, closedEvent(t, day, 75))))

	var doc SessionArchive
	require.NoError(t, json.Unmarshal(writer.bodies[0], &doc))
	assert.Empty(t, doc.Fills)
}

func TestArchiverRunFiltersAndStops(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bus := &chanBus{msgs: make(chan []byte, 8)}
	writer := &memWriter{}
	a := NewSessionArchiver(bus, "orbcore:audit", writer, nil, "MES", slog.New(slog.NewTextHandler(io.Discard, nil)))

	other, err := json.Marshal(domain.AuditEvent{Kind: domain.AuditPositionClosed})
	require.NoError(t, err)
	bus.msgs <- []byte("not json")
	bus.msgs <- other
	bus.msgs <- closedEvent(t, day, 75)
	close(bus.msgs)

	// A closed channel ends the run cleanly.
	require.NoError(t, a.Run(context.Background()))
	require.Len(t, writer.keys, 1)
	assert.Equal(t, "sessions/MES/2026-03-02.json", writer.keys[0])
}

func TestArchiverRunHonorsCancellation(t *testing.T) {
	bus := &chanBus{msgs: make(chan []byte)}
	a := NewSessionArchiver(bus, "orbcore:audit", &memWriter{}, nil, "MES", slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Run(ctx), context.Canceled)
}

func mustEvent(t *testing.T, payload []byte) domain.AuditEvent {
	t.Helper()
	var ev domain.AuditEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	return ev
}
