package domain

import "time"

// Side is the direction of a position or intent.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Sign returns +1 for long and -1 for short, the multiplier used in every
// PnL formula.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// IntentKind distinguishes entries from exits. Exits only ever reduce
// exposure, so the risk governor treats them differently from entries.
type IntentKind string

const (
	IntentEnter IntentKind = "enter"
	IntentExit  IntentKind = "exit"
)

// Intent is a candidate trade action proposed by a strategy. It is immutable
// once created and consumed exactly once by the risk governor.
type Intent struct {
	ID             string
	Slot           string
	Kind           IntentKind
	Side           Side
	Quantity       int
	ReferencePrice float64
	StopLossPrice  float64
	Reason         string
	CreatedAt      time.Time
}

// Validate checks the structural invariants of an intent. Exits carry no
// sizing information, so only entries are checked for quantity and stops.
func (i Intent) Validate() error {
	if i.Slot == "" {
		return ErrValidation
	}
	switch i.Kind {
	case IntentExit:
		return nil
	case IntentEnter:
	default:
		return ErrValidation
	}
	if i.Side != SideLong && i.Side != SideShort {
		return ErrValidation
	}
	if i.Quantity <= 0 || i.ReferencePrice <= 0 || i.StopLossPrice <= 0 {
		return ErrValidation
	}
	return nil
}

// PerContractRisk is the distance between entry and stop expressed in price
// terms, scaled by the contract multiplier. Quantity times this value is the
// worst-case loss the stop allows for the trade.
func (i Intent) PerContractRisk(multiplier float64) float64 {
	d := i.ReferencePrice - i.StopLossPrice
	if d < 0 {
		d = -d
	}
	return d * multiplier
}
