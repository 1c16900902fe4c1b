package domain

import "time"

// SessionAggregates are the per-day running totals maintained by session
// state and reset exactly once at each trading-day boundary.
type SessionAggregates struct {
	Date                  time.Time `json:"date"`
	OpenPrice             float64   `json:"open_price"`
	VWAP                  float64   `json:"vwap"`
	CumulativeVolume      float64   `json:"cumulative_volume"`
	CumulativePriceVolume float64   `json:"cumulative_price_volume"`
	DailyRealizedPnL      float64   `json:"daily_realized_pnl"`
	TotalTrades           int       `json:"total_trades"`
	LastPrice             float64   `json:"last_price"`
	LastTickAt            time.Time `json:"last_tick_at"`
}

// Average is a read-only view of one named moving-average window.
type Average struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
	Full  bool    `json:"full"`
}

// StatusSnapshot is the pull-based view of the whole core. Building one is
// O(number of slots) and never mutates state.
type StatusSnapshot struct {
	ControlState       ControlState      `json:"control_state"`
	RiskState          RiskState         `json:"risk_state"`
	Limits             RiskLimits        `json:"limits"`
	Positions          []Position        `json:"positions"`
	Session            SessionAggregates `json:"session"`
	UnrealizedPnL      float64           `json:"unrealized_pnl"`
	OverallRealizedPnL float64           `json:"overall_realized_pnl"`
	Timestamp          time.Time         `json:"timestamp"`
}
