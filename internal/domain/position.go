package domain

import "time"

// Position is one open position, owned by exactly one strategy slot.
type Position struct {
	Slot          string
	Side          Side
	Quantity      int
	EntryPrice    float64
	StopLossPrice float64
	OpenedAt      time.Time
}

// UnrealizedPnL marks the position to the given price.
func (p Position) UnrealizedPnL(price, multiplier float64) float64 {
	return (price - p.EntryPrice) * p.Side.Sign() * float64(p.Quantity) * multiplier
}

// StopBreached reports whether price has crossed the stop-loss level: at or
// below the stop for longs, at or above for shorts.
func (p Position) StopBreached(price float64) bool {
	if p.StopLossPrice <= 0 {
		return false
	}
	switch p.Side {
	case SideLong:
		return price <= p.StopLossPrice
	case SideShort:
		return price >= p.StopLossPrice
	}
	return false
}

// CloseReason records what triggered a position closure.
type CloseReason string

const (
	CloseReasonManual      CloseReason = "manual"
	CloseReasonStopLoss    CloseReason = "stop_loss"
	CloseReasonStrategy    CloseReason = "strategy_exit"
	CloseReasonRiskFlatten CloseReason = "risk_flatten"
	CloseReasonSessionEnd  CloseReason = "session_end"
)

// Fill is the settled result of closing (or opening) a position, carrying the
// realized PnL that session state records.
type Fill struct {
	Slot        string
	Side        Side
	Quantity    int
	EntryPrice  float64
	ExitPrice   float64
	RealizedPnL float64
	Reason      CloseReason
	OpenedAt    time.Time
	ClosedAt    time.Time
}
