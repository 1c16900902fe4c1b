package strategy

import (
	"log/slog"
	"math"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// KindConcretumBands identifies the volatility-band breakout variant.
const KindConcretumBands = "concretum_bands"

// ConcretumBandsBreakout trades breakouts of volatility bands drawn around
// the session open: upper/lower band = open × (1 ± factor), where the factor
// scales with realized intraday volatility. Entries are gated by the band
// cross and a trend-filter moving average; open positions trail a VWAP stop.
type ConcretumBandsBreakout struct {
	cfg       Config
	spec      domain.ContractSpec
	series    string
	ma        string
	bandScale float64
	minFactor float64
	logger    *slog.Logger

	lastBar time.Time
}

// NewConcretumBandsBreakout builds the variant. Params:
//
//   - "series" (string): candle series to read, default "1m".
//   - "ma" (string): moving-average window name, default "ma400".
//   - "band_scale" (float64): multiplier on realized volatility, default 1.0.
//   - "min_factor" (float64): floor for the band factor, default 0.001.
func NewConcretumBandsBreakout(cfg Config, spec domain.ContractSpec, logger *slog.Logger) (Strategy, error) {
	s := &ConcretumBandsBreakout{
		cfg:       cfg,
		spec:      spec,
		series:    "1m",
		ma:        "ma400",
		bandScale: cfg.floatParam("band_scale", 1.0),
		minFactor: cfg.floatParam("min_factor", 0.001),
		logger:    logger.With(slog.String("strategy", KindConcretumBands), slog.String("slot", cfg.Slot)),
	}
	if v, ok := cfg.Params["series"].(string); ok && v != "" {
		s.series = v
	}
	if v, ok := cfg.Params["ma"].(string); ok && v != "" {
		s.ma = v
	}
	return s, nil
}

// Name returns the variant identifier.
func (s *ConcretumBandsBreakout) Name() string { return KindConcretumBands }

// Evaluate acts once per completed bar of its series.
func (s *ConcretumBandsBreakout) Evaluate(ctx Context) *domain.Intent {
	if ctx.CloseImminent {
		if ctx.Position != nil {
			return exit(s.cfg, *ctx.Position, ctx.Tick.Price, "market close exit")
		}
		return nil
	}

	candles := ctx.Series(s.series)
	if len(candles) < 2 {
		return nil
	}
	bar := candles[len(candles)-1]
	prev := candles[len(candles)-2]
	if !bar.Start.After(s.lastBar) {
		return nil
	}
	s.lastBar = bar.Start

	if ctx.Position != nil {
		if vwapStop(*ctx.Position, bar.Close, ctx.Session.VWAP) {
			s.logger.Debug("vwap stop hit",
				slog.Float64("close", bar.Close),
				slog.Float64("vwap", ctx.Session.VWAP),
			)
			return exit(s.cfg, *ctx.Position, ctx.Tick.Price, "vwap trailing stop")
		}
		return nil
	}

	ma := ctx.Average(s.ma)
	open := ctx.Session.OpenPrice
	if !ma.Full || open <= 0 {
		return nil
	}

	factor := s.volatilityFactor(candles)
	upper := open * (1 + factor)
	lower := open * (1 - factor)

	switch {
	case prev.Open < upper && bar.Close > upper && bar.Close > ma.Value:
		s.logger.Debug("band breakout long",
			slog.Float64("close", bar.Close),
			slog.Float64("upper", upper),
			slog.Float64("factor", factor),
		)
		return enter(s.cfg, s.spec, domain.SideLong, ctx.Tick.Price, "upper band breakout")
	case prev.Open > lower && bar.Close < lower && bar.Close < ma.Value:
		s.logger.Debug("band breakout short",
			slog.Float64("close", bar.Close),
			slog.Float64("lower", lower),
			slog.Float64("factor", factor),
		)
		return enter(s.cfg, s.spec, domain.SideShort, ctx.Tick.Price, "lower band breakout")
	}
	return nil
}

// volatilityFactor estimates the band half-width as the standard deviation
// of bar-to-bar returns over the session's completed bars, scaled by
// band_scale and floored at min_factor.
func (s *ConcretumBandsBreakout) volatilityFactor(candles []domain.Candle) float64 {
	if len(candles) < 3 {
		return s.minFactor
	}
	var rets []float64
	for i := 1; i < len(candles); i++ {
		if candles[i-1].Close > 0 {
			rets = append(rets, candles[i].Close/candles[i-1].Close-1)
		}
	}
	if len(rets) < 2 {
		return s.minFactor
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var variance float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets) - 1)

	factor := s.bandScale * math.Sqrt(variance) * math.Sqrt(float64(len(rets)))
	if factor < s.minFactor {
		factor = s.minFactor
	}
	return factor
}
