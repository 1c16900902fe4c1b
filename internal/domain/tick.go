package domain

import "time"

// PriceTick is a single normalized market-data observation. The core consumes
// ticks from a feed adapter and never cares where they came from (live socket,
// replay file, or a bus subscription).
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid reports whether the tick can be applied to session state.
func (t PriceTick) Valid() bool {
	return t.Price > 0 && t.Volume >= 0 && !t.Timestamp.IsZero()
}

// Candle is an aggregated OHLCV bar. Start marks the beginning of the bar
// interval; the interval itself is a property of the series the candle
// belongs to.
type Candle struct {
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Start  time.Time `json:"start"`
}

// Bullish reports whether the bar closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports whether the bar closed below its open.
func (c Candle) Bearish() bool { return c.Close < c.Open }
