package market

import (
	"sort"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// defaultDepth is how many completed candles each series retains.
const defaultDepth = 64

// Series aggregates ticks into fixed-interval candles and keeps a bounded
// history of completed bars. The bar currently being built is not visible to
// readers until a tick lands in the next bucket.
type Series struct {
	interval time.Duration
	depth    int
	done     []domain.Candle
	current  *domain.Candle
}

// NewSeries creates a candle series for the given interval, retaining up to
// depth completed candles (defaultDepth when depth <= 0).
func NewSeries(interval time.Duration, depth int) *Series {
	if depth <= 0 {
		depth = defaultDepth
	}
	return &Series{interval: interval, depth: depth}
}

// Interval returns the bar width of the series.
func (s *Series) Interval() time.Duration { return s.interval }

// Apply folds a tick into the series. When the tick starts a new bucket the
// previous bar is completed and returned; otherwise Apply returns nil.
func (s *Series) Apply(tick domain.PriceTick) *domain.Candle {
	start := tick.Timestamp.Truncate(s.interval)

	if s.current == nil {
		s.current = &domain.Candle{
			Open:   tick.Price,
			High:   tick.Price,
			Low:    tick.Price,
			Close:  tick.Price,
			Volume: tick.Volume,
			Start:  start,
		}
		return nil
	}

	if start.After(s.current.Start) {
		completed := *s.current
		s.done = append(s.done, completed)
		if overflow := len(s.done) - s.depth; overflow > 0 {
			s.done = append([]domain.Candle(nil), s.done[overflow:]...)
		}
		s.current = &domain.Candle{
			Open:   tick.Price,
			High:   tick.Price,
			Low:    tick.Price,
			Close:  tick.Price,
			Volume: tick.Volume,
			Start:  start,
		}
		return &completed
	}

	s.current.Close = tick.Price
	if tick.Price > s.current.High {
		s.current.High = tick.Price
	}
	if tick.Price < s.current.Low {
		s.current.Low = tick.Price
	}
	s.current.Volume += tick.Volume
	return nil
}

// Completed returns a copy of the completed candles, oldest first.
func (s *Series) Completed() []domain.Candle {
	if len(s.done) == 0 {
		return nil
	}
	out := make([]domain.Candle, len(s.done))
	copy(out, s.done)
	return out
}

// Reset discards all state at a session boundary.
func (s *Series) Reset() {
	s.done = nil
	s.current = nil
}

// Aggregator maintains several named candle series fed from one tick stream.
type Aggregator struct {
	series map[string]*Series
}

// NewAggregator builds an Aggregator with one series per named interval.
func NewAggregator(intervals map[string]time.Duration, depth int) *Aggregator {
	series := make(map[string]*Series, len(intervals))
	for name, iv := range intervals {
		series[name] = NewSeries(iv, depth)
	}
	return &Aggregator{series: series}
}

// Apply feeds a tick to every series.
func (a *Aggregator) Apply(tick domain.PriceTick) {
	for _, s := range a.series {
		s.Apply(tick)
	}
}

// Candles returns the completed candles for the named series.
func (a *Aggregator) Candles(name string) []domain.Candle {
	s, ok := a.series[name]
	if !ok {
		return nil
	}
	return s.Completed()
}

// Snapshot returns completed candles for every series, keyed by name.
func (a *Aggregator) Snapshot() map[string][]domain.Candle {
	out := make(map[string][]domain.Candle, len(a.series))
	for name, s := range a.series {
		out[name] = s.Completed()
	}
	return out
}

// Names returns the configured series names in sorted order.
func (a *Aggregator) Names() []string {
	names := make([]string, 0, len(a.series))
	for n := range a.series {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset clears every series at a session boundary.
func (a *Aggregator) Reset() {
	for _, s := range a.series {
		s.Reset()
	}
}
