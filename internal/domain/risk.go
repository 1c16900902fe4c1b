package domain

import "fmt"

// RiskLimits are the hard ceilings the governor enforces. They are immutable
// for the lifetime of a run unless replaced wholesale by an update_risk
// command, which always lands between ticks.
type RiskLimits struct {
	MaxRiskPerTrade float64
	MaxDailyLoss    float64
	MaxOverallLoss  float64
}

// Validate rejects non-positive limits.
func (l RiskLimits) Validate() error {
	if l.MaxRiskPerTrade <= 0 {
		return fmt.Errorf("max_risk_per_trade must be > 0: %w", ErrValidation)
	}
	if l.MaxDailyLoss <= 0 {
		return fmt.Errorf("max_daily_loss must be > 0: %w", ErrValidation)
	}
	if l.MaxOverallLoss <= 0 {
		return fmt.Errorf("max_overall_loss must be > 0: %w", ErrValidation)
	}
	return nil
}

// RiskState is the governor's latch. Once Halted it never self-clears; only
// an explicit administrative reset returns it to Normal.
type RiskState string

const (
	RiskStateNormal RiskState = "normal"
	RiskStateHalted RiskState = "halted"
)

// ContractSpec describes the instrument being traded.
type ContractSpec struct {
	Symbol     string
	Multiplier float64
	TickSize   float64
}

// Validate checks the contract parameters.
func (c ContractSpec) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("contract symbol required: %w", ErrValidation)
	}
	if c.Multiplier <= 0 || c.TickSize <= 0 {
		return fmt.Errorf("contract multiplier and tick size must be > 0: %w", ErrValidation)
	}
	return nil
}
