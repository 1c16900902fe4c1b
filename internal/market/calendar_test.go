package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCalendar(t *testing.T, open, close string, lead time.Duration) *Calendar {
	t.Helper()
	cal, err := NewCalendar(open, close, "America/New_York", lead)
	require.NoError(t, err)
	return cal
}

func nyTime(t *testing.T, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2026, 3, 2, hour, min, 0, 0, loc)
}

func TestNewCalendarValidation(t *testing.T) {
	_, err := NewCalendar("09:30", "16:00", "Not/AZone", 0)
	assert.Error(t, err)

	_, err = NewCalendar("930", "16:00", "America/New_York", 0)
	assert.Error(t, err)

	_, err = NewCalendar("09:30", "24:00", "America/New_York", 0)
	assert.Error(t, err)

	_, err = NewCalendar("16:00", "09:30", "America/New_York", 0)
	assert.Error(t, err)

	_, err = NewCalendar("09:30", "09:30", "America/New_York", 0)
	assert.Error(t, err)

	_, err = NewCalendar("09:30", "16:00", "America/New_York", -time.Minute)
	assert.Error(t, err)
}

func TestIsOpenBoundaries(t *testing.T) {
	cal := mustCalendar(t, "09:30", "16:00", 0)

	assert.False(t, cal.IsOpen(nyTime(t, 9, 29)))
	assert.True(t, cal.IsOpen(nyTime(t, 9, 30)))
	assert.True(t, cal.IsOpen(nyTime(t, 12, 0)))
	assert.True(t, cal.IsOpen(nyTime(t, 15, 59)))
	assert.False(t, cal.IsOpen(nyTime(t, 16, 0)))
	assert.False(t, cal.IsOpen(nyTime(t, 20, 0)))
}

func TestIsOpenConvertsTimezone(t *testing.T) {
	cal := mustCalendar(t, "09:30", "16:00", 0)

	// 15:00 UTC on a March EST day is 10:00 in New York.
	utc := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsOpen(utc))

	// 02:00 UTC is 21:00 the previous evening in New York.
	assert.False(t, cal.IsOpen(time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)))
}

func TestTradingDayAndSessionInstants(t *testing.T) {
	cal := mustCalendar(t, "09:30", "16:00", 0)
	at := nyTime(t, 11, 15)

	day := cal.TradingDay(at)
	assert.Equal(t, 0, day.Hour())
	assert.Equal(t, 0, day.Minute())
	assert.Equal(t, at.Day(), day.Day())

	open := cal.SessionOpen(at)
	assert.Equal(t, 9, open.Hour())
	assert.Equal(t, 30, open.Minute())
	assert.True(t, open.After(day))

	close := cal.SessionClose(at)
	assert.Equal(t, 16, close.Hour())
	assert.Equal(t, 0, close.Minute())
	assert.True(t, close.After(open))
}

func TestNewTradingDay(t *testing.T) {
	cal := mustCalendar(t, "09:30", "16:00", 0)

	now := nyTime(t, 10, 0)
	assert.True(t, cal.NewTradingDay(time.Time{}, now))
	assert.False(t, cal.NewTradingDay(nyTime(t, 9, 30), now))
	assert.True(t, cal.NewTradingDay(now.AddDate(0, 0, -1), now))
}

func TestCloseImminentWindow(t *testing.T) {
	cal := mustCalendar(t, "09:30", "16:00", 5*time.Minute)

	assert.False(t, cal.CloseImminent(nyTime(t, 12, 0)))
	assert.False(t, cal.CloseImminent(nyTime(t, 15, 54)))
	assert.True(t, cal.CloseImminent(nyTime(t, 15, 55)))
	assert.True(t, cal.CloseImminent(nyTime(t, 15, 59)))
	// Past the close the session is no longer open at all.
	assert.False(t, cal.CloseImminent(nyTime(t, 16, 0)))
}

func TestCloseImminentDisabledWithZeroLead(t *testing.T) {
	cal := mustCalendar(t, "09:30", "16:00", 0)
	assert.False(t, cal.CloseImminent(nyTime(t, 15, 59)))
}
