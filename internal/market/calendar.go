// Package market provides the trading-session calendar and tick-to-candle
// aggregation used by the engine and strategies.
package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// Calendar answers session-window questions for a single instrument: whether
// the market is open at an instant, when the session opened, and whether the
// close is imminent. It is a pure value; all methods are read-only.
type Calendar struct {
	openMinute  int
	closeMinute int
	closeLead   time.Duration
	loc         *time.Location
}

// NewCalendar builds a Calendar from "HH:MM" open/close times interpreted in
// the given IANA timezone. closeLead is how long before the close the engine
// should stop holding positions (the market-close exit window).
func NewCalendar(open, close, tz string, closeLead time.Duration) (*Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("market: load timezone %q: %w", tz, err)
	}
	openMin, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("market: session open: %w", err)
	}
	closeMin, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("market: session close: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("market: close %q not after open %q: %w", close, open, domain.ErrValidation)
	}
	if closeLead < 0 {
		return nil, fmt.Errorf("market: negative close lead: %w", domain.ErrValidation)
	}
	return &Calendar{
		openMinute:  openMin,
		closeMinute: closeMin,
		closeLead:   closeLead,
		loc:         loc,
	}, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock time %q not HH:MM: %w", s, domain.ErrValidation)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("clock hour %q: %w", parts[0], domain.ErrValidation)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock minute %q: %w", parts[1], domain.ErrValidation)
	}
	return h*60 + m, nil
}

func (c *Calendar) minuteOfDay(t time.Time) int {
	lt := t.In(c.loc)
	return lt.Hour()*60 + lt.Minute()
}

// IsOpen reports whether t falls inside the session window [open, close).
func (c *Calendar) IsOpen(t time.Time) bool {
	m := c.minuteOfDay(t)
	return m >= c.openMinute && m < c.closeMinute
}

// TradingDay returns midnight of t's calendar day in the session timezone,
// the identity used to detect session boundaries.
func (c *Calendar) TradingDay(t time.Time) time.Time {
	lt := t.In(c.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc)
}

// SessionOpen returns the instant the session opens on t's trading day.
func (c *Calendar) SessionOpen(t time.Time) time.Time {
	day := c.TradingDay(t)
	return day.Add(time.Duration(c.openMinute) * time.Minute)
}

// SessionClose returns the instant the session closes on t's trading day.
func (c *Calendar) SessionClose(t time.Time) time.Time {
	day := c.TradingDay(t)
	return day.Add(time.Duration(c.closeMinute) * time.Minute)
}

// NewTradingDay reports whether now has crossed into a different trading day
// than prev. A zero prev always starts a new day.
func (c *Calendar) NewTradingDay(prev, now time.Time) bool {
	if prev.IsZero() {
		return true
	}
	return !c.TradingDay(prev).Equal(c.TradingDay(now))
}

// CloseImminent reports whether t is inside the close-lead window at the end
// of the session, when strategies must exit rather than enter.
func (c *Calendar) CloseImminent(t time.Time) bool {
	if c.closeLead == 0 {
		return false
	}
	if !c.IsOpen(t) {
		return false
	}
	return !t.In(c.loc).Before(c.SessionClose(t).Add(-c.closeLead))
}
