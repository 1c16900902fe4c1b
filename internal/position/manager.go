// Package position owns the set of open positions, one per strategy slot,
// and all realized/unrealized PnL arithmetic.
package position

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// Manager is the exclusive owner of open positions. It is not safe for
// concurrent use; the engine's serialized loop is its only caller.
type Manager struct {
	positions  map[string]*domain.Position
	multiplier float64
	logger     *slog.Logger
}

// NewManager creates a Manager for an instrument with the given contract
// multiplier.
func NewManager(multiplier float64, logger *slog.Logger) *Manager {
	return &Manager{
		positions:  make(map[string]*domain.Position),
		multiplier: multiplier,
		logger:     logger.With(slog.String("component", "position_manager")),
	}
}

// Open creates a position for the intent's slot at the given fill price.
// It fails with ErrSlotOccupied when the slot already holds a position.
func (m *Manager) Open(intent domain.Intent, fillPrice float64, ts time.Time) (domain.Position, error) {
	if _, ok := m.positions[intent.Slot]; ok {
		return domain.Position{}, fmt.Errorf("position: open %s: %w", intent.Slot, domain.ErrSlotOccupied)
	}

	pos := domain.Position{
		Slot:          intent.Slot,
		Side:          intent.Side,
		Quantity:      intent.Quantity,
		EntryPrice:    fillPrice,
		StopLossPrice: intent.StopLossPrice,
		OpenedAt:      ts,
	}
	m.positions[intent.Slot] = &pos

	m.logger.Info("position opened",
		slog.String("slot", pos.Slot),
		slog.String("side", string(pos.Side)),
		slog.Int("quantity", pos.Quantity),
		slog.Float64("entry_price", pos.EntryPrice),
		slog.Float64("stop_loss", pos.StopLossPrice),
	)
	return pos, nil
}

// Close removes the slot's position at the given exit price and returns the
// settled fill. It fails with ErrNoPosition when the slot is flat.
func (m *Manager) Close(slot string, exitPrice float64, ts time.Time, reason domain.CloseReason) (domain.Fill, error) {
	pos, ok := m.positions[slot]
	if !ok {
		return domain.Fill{}, fmt.Errorf("position: close %s: %w", slot, domain.ErrNoPosition)
	}
	delete(m.positions, slot)

	fill := domain.Fill{
		Slot:        pos.Slot,
		Side:        pos.Side,
		Quantity:    pos.Quantity,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		RealizedPnL: (exitPrice - pos.EntryPrice) * pos.Side.Sign() * float64(pos.Quantity) * m.multiplier,
		Reason:      reason,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    ts,
	}

	m.logger.Info("position closed",
		slog.String("slot", fill.Slot),
		slog.String("reason", string(reason)),
		slog.Float64("exit_price", fill.ExitPrice),
		slog.Float64("realized_pnl", fill.RealizedPnL),
	)
	return fill, nil
}

// CloseAll closes every open position at the given exit price, in slot
// order. Calling it with nothing open returns an empty slice and no error.
func (m *Manager) CloseAll(exitPrice float64, ts time.Time, reason domain.CloseReason) []domain.Fill {
	slots := m.Slots()
	fills := make([]domain.Fill, 0, len(slots))
	for _, slot := range slots {
		fill, err := m.Close(slot, exitPrice, ts, reason)
		if err != nil {
			// Cannot happen for slots just listed, but never drop it silently.
			m.logger.Error("close all: slot vanished mid-iteration",
				slog.String("slot", slot),
				slog.String("error", err.Error()),
			)
			continue
		}
		fills = append(fills, fill)
	}
	return fills
}

// MarkToMarket sums unrealized PnL across open positions at the given price.
// Read-only.
func (m *Manager) MarkToMarket(price float64) float64 {
	var total float64
	for _, pos := range m.positions {
		total += pos.UnrealizedPnL(price, m.multiplier)
	}
	return total
}

// StopBreaches returns the slots whose stop-loss level the given price has
// crossed, in slot order. Read-only; the engine performs the closes.
func (m *Manager) StopBreaches(price float64) []string {
	var breached []string
	for slot, pos := range m.positions {
		if pos.StopBreached(price) {
			breached = append(breached, slot)
		}
	}
	sort.Strings(breached)
	return breached
}

// Get returns the slot's open position, if any.
func (m *Manager) Get(slot string) (domain.Position, bool) {
	pos, ok := m.positions[slot]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Slots returns the slots with open positions in sorted order.
func (m *Manager) Slots() []string {
	slots := make([]string, 0, len(m.positions))
	for slot := range m.positions {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

// Positions returns a copy of every open position in slot order.
func (m *Manager) Positions() []domain.Position {
	slots := m.Slots()
	out := make([]domain.Position, 0, len(slots))
	for _, slot := range slots {
		out = append(out, *m.positions[slot])
	}
	return out
}

// Open positions count.
func (m *Manager) Count() int { return len(m.positions) }
