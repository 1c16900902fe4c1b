package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openrange/orbcore/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append persists one audit event; the payload is stored as JSONB.
func (s *AuditStore) Append(ctx context.Context, ev domain.AuditEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit payload: %w", err)
	}
	const query = `INSERT INTO audit_log (event_id, kind, payload, at) VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, query, ev.ID, string(ev.Kind), payload, ev.Timestamp); err != nil {
		return fmt.Errorf("postgres: append audit event %s: %w", ev.Kind, err)
	}
	return nil
}

// ListByDay returns the audit events of the calendar day containing day, in
// emission order, matching the fill journal's day window.
func (s *AuditStore) ListByDay(ctx context.Context, day time.Time) ([]domain.AuditEvent, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	const query = `
		SELECT event_id, kind, payload, at
		FROM audit_log
		WHERE at >= $1 AND at < $2
		ORDER BY at ASC, id ASC`
	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var ev domain.AuditEvent
		var kind string
		var payload []byte
		if err := rows.Scan(&ev.ID, &kind, &payload, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan audit event: %w", err)
		}
		ev.Kind = domain.AuditKind(kind)
		if payload != nil {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal audit payload: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit events rows: %w", err)
	}
	return events, nil
}
