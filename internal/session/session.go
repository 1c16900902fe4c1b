// Package session owns the per-trading-day aggregates: VWAP, session open,
// cumulative volume, moving-average windows, realized PnL, and trade count.
package session

import (
	"log/slog"
	"sort"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// window is a fixed-size FIFO of recent prices with a running sum, so pushes
// and average reads are O(1).
type window struct {
	size  int
	buf   []float64
	head  int
	count int
	sum   float64
}

func newWindow(size int) *window {
	return &window{size: size, buf: make([]float64, size)}
}

func (w *window) push(v float64) {
	if w.count == w.size {
		w.sum -= w.buf[w.head]
	} else {
		w.count++
	}
	w.buf[w.head] = v
	w.sum += v
	w.head = (w.head + 1) % w.size
}

func (w *window) average() domain.Average {
	avg := domain.Average{Count: w.count, Full: w.count == w.size}
	if w.count > 0 {
		avg.Value = w.sum / float64(w.count)
	}
	return avg
}

func (w *window) reset() {
	w.head = 0
	w.count = 0
	w.sum = 0
}

// State tracks one instrument's session aggregates. It is not safe for
// concurrent use; the engine's serialized loop is its only caller.
type State struct {
	agg     domain.SessionAggregates
	windows map[string]*window
	logger  *slog.Logger
}

// New creates session state with the given named moving-average window
// lengths (number of samples, not a duration).
func New(windows map[string]int, logger *slog.Logger) *State {
	ws := make(map[string]*window, len(windows))
	for name, size := range windows {
		if size <= 0 {
			size = 1
		}
		ws[name] = newWindow(size)
	}
	return &State{
		windows: ws,
		logger:  logger.With(slog.String("component", "session")),
	}
}

// OnTick folds a price observation into the aggregates. A zero-volume tick
// updates the last price and the moving-average windows but leaves VWAP
// untouched, since it adds nothing to cumulative volume.
func (s *State) OnTick(price, volume float64, ts time.Time) {
	if s.agg.OpenPrice == 0 {
		s.agg.OpenPrice = price
	}
	s.agg.LastPrice = price
	s.agg.LastTickAt = ts

	if volume > 0 {
		s.agg.CumulativeVolume += volume
		s.agg.CumulativePriceVolume += price * volume
		s.agg.VWAP = s.agg.CumulativePriceVolume / s.agg.CumulativeVolume
	}

	for _, w := range s.windows {
		w.push(price)
	}
}

// OnFill records a settled trade's realized PnL.
func (s *State) OnFill(realizedPnL float64) {
	s.agg.DailyRealizedPnL += realizedPnL
	s.agg.TotalTrades++
}

// OnSessionBoundary resets all aggregates for a new trading day and returns
// the closed day's aggregates for archival. The new day's open price is set
// by the first tick that follows.
func (s *State) OnSessionBoundary(day time.Time) domain.SessionAggregates {
	closed := s.agg
	s.agg = domain.SessionAggregates{Date: day}
	for _, w := range s.windows {
		w.reset()
	}
	if !closed.Date.IsZero() {
		s.logger.Info("session rolled",
			slog.Time("closed", closed.Date),
			slog.Time("opened", day),
			slog.Float64("realized_pnl", closed.DailyRealizedPnL),
			slog.Int("trades", closed.TotalTrades),
		)
	}
	return closed
}

// Aggregates returns a copy of the current aggregates.
func (s *State) Aggregates() domain.SessionAggregates {
	return s.agg
}

// Averages returns the current value of every moving-average window.
func (s *State) Averages() map[string]domain.Average {
	out := make(map[string]domain.Average, len(s.windows))
	for name, w := range s.windows {
		out[name] = w.average()
	}
	return out
}

// WindowNames returns the configured window names in sorted order.
func (s *State) WindowNames() []string {
	names := make([]string, 0, len(s.windows))
	for n := range s.windows {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
