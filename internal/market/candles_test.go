package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrange/orbcore/internal/domain"
)

func tick(price, volume float64, at time.Time) domain.PriceTick {
	return domain.PriceTick{Symbol: "MES", Price: price, Volume: volume, Timestamp: at}
}

func TestSeriesFirstTickOpensBar(t *testing.T) {
	s := NewSeries(time.Minute, 8)
	at := time.Date(2026, 3, 2, 10, 0, 10, 0, time.UTC)

	completed := s.Apply(tick(100, 1, at))
	assert.Nil(t, completed)
	assert.Nil(t, s.Completed())
}

func TestSeriesFoldsTicksIntoCurrentBar(t *testing.T) {
	s := NewSeries(time.Minute, 8)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	s.Apply(tick(100, 1, base))
	s.Apply(tick(103, 2, base.Add(10*time.Second)))
	s.Apply(tick(99, 1, base.Add(20*time.Second)))
	s.Apply(tick(101, 3, base.Add(30*time.Second)))

	// The bar under construction is invisible until the next bucket starts.
	require.Nil(t, s.Completed())

	completed := s.Apply(tick(102, 1, base.Add(time.Minute)))
	require.NotNil(t, completed)
	assert.Equal(t, 100.0, completed.Open)
	assert.Equal(t, 103.0, completed.High)
	assert.Equal(t, 99.0, completed.Low)
	assert.Equal(t, 101.0, completed.Close)
	assert.Equal(t, 7.0, completed.Volume)
	assert.True(t, completed.Start.Equal(base))

	done := s.Completed()
	require.Len(t, done, 1)
	assert.Equal(t, *completed, done[0])
}

func TestSeriesDepthTrimsOldestBars(t *testing.T) {
	s := NewSeries(time.Minute, 2)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		s.Apply(tick(100+float64(i), 1, base.Add(time.Duration(i)*time.Minute)))
	}

	done := s.Completed()
	require.Len(t, done, 2)
	assert.True(t, done[0].Start.Equal(base.Add(time.Minute)))
	assert.True(t, done[1].Start.Equal(base.Add(2*time.Minute)))
}

func TestSeriesReset(t *testing.T) {
	s := NewSeries(time.Minute, 8)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.Apply(tick(100, 1, base))
	s.Apply(tick(101, 1, base.Add(time.Minute)))
	require.Len(t, s.Completed(), 1)

	s.Reset()
	assert.Nil(t, s.Completed())

	// The next tick after a reset opens a fresh bar, it does not complete one.
	assert.Nil(t, s.Apply(tick(102, 1, base.Add(2*time.Minute))))
}

func TestAggregatorFansOutAndSnapshots(t *testing.T) {
	agg := NewAggregator(map[string]time.Duration{
		"1m": time.Minute,
		"5m": 5 * time.Minute,
	}, 8)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		agg.Apply(tick(100+float64(i), 1, base.Add(time.Duration(i)*time.Minute)))
	}

	assert.Len(t, agg.Candles("1m"), 5)
	assert.Len(t, agg.Candles("5m"), 1)
	assert.Nil(t, agg.Candles("1h"))

	snap := agg.Snapshot()
	require.Len(t, snap, 2)
	assert.Len(t, snap["1m"], 5)
	assert.Len(t, snap["5m"], 1)

	assert.Equal(t, []string{"1m", "5m"}, agg.Names())

	agg.Reset()
	assert.Nil(t, agg.Candles("1m"))
	assert.Nil(t, agg.Candles("5m"))
}
