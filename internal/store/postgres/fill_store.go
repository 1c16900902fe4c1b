package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openrange/orbcore/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Record persists a settled fill.
func (s *FillStore) Record(ctx context.Context, fill domain.Fill) error {
	const query = `
		INSERT INTO fills (slot, side, quantity, entry_price, exit_price, realized_pnl, reason, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, query,
		fill.Slot, string(fill.Side), fill.Quantity,
		fill.EntryPrice, fill.ExitPrice, fill.RealizedPnL,
		string(fill.Reason), fill.OpenedAt, fill.ClosedAt)
	if err != nil {
		return fmt.Errorf("postgres: record fill for slot %s: %w", fill.Slot, err)
	}
	return nil
}

// ListByDay returns the fills closed during the calendar day containing day,
// in close order.
func (s *FillStore) ListByDay(ctx context.Context, day time.Time) ([]domain.Fill, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	const query = `
		SELECT slot, side, quantity, entry_price, exit_price, realized_pnl, reason, opened_at, closed_at
		FROM fills
		WHERE closed_at >= $1 AND closed_at < $2
		ORDER BY closed_at ASC`
	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side, reason string
		if err := rows.Scan(&f.Slot, &side, &f.Quantity, &f.EntryPrice, &f.ExitPrice,
			&f.RealizedPnL, &reason, &f.OpenedAt, &f.ClosedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.Side = domain.Side(side)
		f.Reason = domain.CloseReason(reason)
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list fills rows: %w", err)
	}
	return fills, nil
}
