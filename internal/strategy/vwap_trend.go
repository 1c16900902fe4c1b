package strategy

import (
	"log/slog"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// KindVWAPTrend identifies the VWAP trend-following variant.
const KindVWAPTrend = "vwap_trend"

// VWAPTrendFollowing enters in the direction of price relative to VWAP when
// a trend-filter moving average agrees, and trails every open position with
// a VWAP stop: the position is cut as soon as a bar closes on the wrong side
// of VWAP.
type VWAPTrendFollowing struct {
	cfg    Config
	spec   domain.ContractSpec
	series string
	ma     string
	logger *slog.Logger

	lastBar time.Time
}

// NewVWAPTrendFollowing builds the variant. Params:
//
//   - "series" (string): candle series to read, default "15m".
//   - "ma" (string): moving-average window name, default "ma300".
func NewVWAPTrendFollowing(cfg Config, spec domain.ContractSpec, logger *slog.Logger) (Strategy, error) {
	s := &VWAPTrendFollowing{
		cfg:    cfg,
		spec:   spec,
		series: "15m",
		ma:     "ma300",
		logger: logger.With(slog.String("strategy", KindVWAPTrend), slog.String("slot", cfg.Slot)),
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
func (s *VWAPTrendFollowing) Name() string { return KindVWAPTrend }

// Evaluate acts once per completed bar of its series.
func (s *VWAPTrendFollowing) Evaluate(ctx Context) *domain.Intent {
	if ctx.CloseImminent {
		if ctx.Position != nil {
			return exit(s.cfg, *ctx.Position, ctx.Tick.Price, "market close exit")
		}
		return nil
	}

	candles := ctx.Series(s.series)
	if len(candles) == 0 {
		return nil
	}
	bar := candles[len(candles)-1]
	if !bar.Start.After(s.lastBar) {
		return nil
	}
	s.lastBar = bar.Start

	vwap := ctx.Session.VWAP

	if ctx.Position != nil {
		if vwapStop(*ctx.Position, bar.Close, vwap) {
			s.logger.Debug("vwap stop hit",
				slog.Float64("close", bar.Close),
				slog.Float64("vwap", vwap),
			)
			return exit(s.cfg, *ctx.Position, ctx.Tick.Price, "vwap trailing stop")
		}
		return nil
	}

	ma := ctx.Average(s.ma)
	if !ma.Full || vwap <= 0 {
		return nil
	}

	switch {
	case bar.Close > vwap && bar.Close > ma.Value:
		s.logger.Debug("trend entry long",
			slog.Float64("close", bar.Close),
			slog.Float64("vwap", vwap),
		)
		return enter(s.cfg, s.spec, domain.SideLong, ctx.Tick.Price, "close above vwap and trend")
	case bar.Close < vwap && bar.Close < ma.Value:
		s.logger.Debug("trend entry short",
			slog.Float64("close", bar.Close),
			slog.Float64("vwap", vwap),
		)
		return enter(s.cfg, s.spec, domain.SideShort, ctx.Tick.Price, "close below vwap and trend")
	}
	return nil
}
