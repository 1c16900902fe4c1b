package strategy

import (
	"log/slog"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// KindOpeningCandle identifies the opening-candle-direction variant.
const KindOpeningCandle = "opening_candle"

// OpeningCandleDirection trades the direction of the session's first
// five-minute candle, filtered by a long moving average: long when the
// opening bar closes up and above the average, short when it closes down and
// below it. It acts at most once per session.
type OpeningCandleDirection struct {
	cfg    Config
	spec   domain.ContractSpec
	series string
	ma     string
	logger *slog.Logger

	actedDay time.Time
}

// NewOpeningCandleDirection builds the variant. Params:
//
//   - "series" (string): candle series to read, default "5m".
//   - "ma" (string): moving-average window name, default "ma350".
func NewOpeningCandleDirection(cfg Config, spec domain.ContractSpec, logger *slog.Logger) (Strategy, error) {
	s := &OpeningCandleDirection{
		cfg:    cfg,
		spec:   spec,
		series: "5m",
		ma:     "ma350",
		logger: logger.With(slog.String("strategy", KindOpeningCandle), slog.String("slot", cfg.Slot)),
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
func (s *OpeningCandleDirection) Name() string { return KindOpeningCandle }

// Evaluate exits near the close and otherwise waits for the completed
// opening bar of the session.
func (s *OpeningCandleDirection) Evaluate(ctx Context) *domain.Intent {
	if ctx.CloseImminent {
		if ctx.Position != nil {
			return exit(s.cfg, *ctx.Position, ctx.Tick.Price, "market close exit")
		}
		return nil
	}
	if ctx.Position != nil {
		// Entry-only strategy: the stop-loss and close exit manage the rest.
		return nil
	}

	day := ctx.Session.Date
	if !s.actedDay.IsZero() && s.actedDay.Equal(day) {
		return nil
	}

	candles := ctx.Series(s.series)
	if len(candles) == 0 {
		return nil
	}
	opening := candles[0]
	if !opening.Start.Equal(ctx.SessionOpenAt) {
		// First completed bar is not the opening bar (late start); this
		// session has no valid signal.
		return nil
	}

	ma := ctx.Average(s.ma)
	if !ma.Full {
		return nil
	}

	s.actedDay = day
	switch {
	case opening.Bullish() && opening.Close > ma.Value:
		s.logger.Debug("opening bar long",
			slog.Float64("close", opening.Close),
			slog.Float64("ma", ma.Value),
		)
		return enter(s.cfg, s.spec, domain.SideLong, ctx.Tick.Price, "opening candle bullish above trend")
	case opening.Bearish() && opening.Close < ma.Value:
		s.logger.Debug("opening bar short",
			slog.Float64("close", opening.Close),
			slog.Float64("ma", ma.Value),
		)
		return enter(s.cfg, s.spec, domain.SideShort, ctx.Tick.Price, "opening candle bearish below trend")
	}
	return nil
}
