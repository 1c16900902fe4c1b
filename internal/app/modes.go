package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openrange/orbcore/internal/audit"
	"github.com/openrange/orbcore/internal/domain"
	"github.com/openrange/orbcore/internal/engine"
	"github.com/openrange/orbcore/internal/executor"
	"github.com/openrange/orbcore/internal/feed"
	"github.com/openrange/orbcore/internal/market"
	"github.com/openrange/orbcore/internal/notify"
	"github.com/openrange/orbcore/internal/pipeline"
	"github.com/openrange/orbcore/internal/strategy"
)

// statusInterval is how often the status cache is refreshed.
const statusInterval = 5 * time.Second

// LiveMode runs the engine against the websocket (or bus) tick feed with the
// broker adapter bridged over the signal bus.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting live mode")

	eng, err := a.buildEngine(deps)
	if err != nil {
		return fmt.Errorf("live mode: %w", err)
	}

	broker := executor.NewBusBroker(
		deps.SignalBus,
		a.cfg.Redis.OrdersChannel,
		a.cfg.Redis.FillsChannel,
		a.logger,
	)
	bridge := executor.NewBridge(broker, eng.SubmitExecutionResult, a.cfg.Execution.Timeout.Duration, a.logger)
	eng.SetExecutor(bridge)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })

	tickFeed, err := a.buildFeed(deps, eng)
	if err != nil {
		return fmt.Errorf("live mode: %w", err)
	}
	g.Go(func() error { return tickFeed.Run(ctx) })

	a.startCollaborators(ctx, g, deps, eng)

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("live mode: start engine: %w", err)
	}

	return g.Wait()
}

// PaperMode runs the engine against the real tick feed but confirms every
// entry instantly at its reference price. No orders leave the process.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode")

	eng, err := a.buildEngine(deps)
	if err != nil {
		return fmt.Errorf("paper mode: %w", err)
	}
	eng.SetExecutor(executor.NewPaper(eng.SubmitExecutionResult, a.logger))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })

	tickFeed, err := a.buildFeed(deps, eng)
	if err != nil {
		return fmt.Errorf("paper mode: %w", err)
	}
	g.Go(func() error { return tickFeed.Run(ctx) })

	a.startCollaborators(ctx, g, deps, eng)

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("paper mode: start engine: %w", err)
	}

	return g.Wait()
}

// ReplayMode drives the engine from a recorded tick file, paper-filling
// entries, and logs a session summary when the file is exhausted.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting replay mode",
		slog.String("path", a.cfg.Feed.ReplayPath),
	)

	eng, err := a.buildEngine(deps)
	if err != nil {
		return fmt.Errorf("replay mode: %w", err)
	}
	eng.SetExecutor(executor.NewPaper(eng.SubmitExecutionResult, a.logger))

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	loopDone := make(chan error, 1)
	go func() { loopDone <- eng.Run(loopCtx) }()

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("replay mode: start engine: %w", err)
	}

	// Backpressure instead of dropping: a full queue just means the replay
	// is outrunning the loop.
	submit := func(tick domain.PriceTick) error {
		for {
			err := eng.SubmitTick(tick)
			if !errors.Is(err, domain.ErrQueueFull) {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
	}

	replay := feed.NewReplayFeed(a.cfg.Feed.ReplayPath, a.cfg.Feed.ReplayPaced, submit, a.logger)
	if err := replay.Run(ctx); err != nil {
		return fmt.Errorf("replay mode: %w", err)
	}

	if closed, err := eng.CloseAll(ctx); err != nil {
		a.logger.WarnContext(ctx, "replay close-all failed", slog.String("error", err.Error()))
	} else if closed > 0 {
		a.logger.InfoContext(ctx, "replay closed remaining positions", slog.Int("closed", closed))
	}
	snap, err := eng.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("replay mode: snapshot: %w", err)
	}
	a.logger.InfoContext(ctx, "replay summary",
		slog.String("date", snap.Session.Date.Format(time.DateOnly)),
		slog.Float64("daily_realized_pnl", snap.Session.DailyRealizedPnL),
		slog.Float64("overall_realized_pnl", snap.OverallRealizedPnL),
		slog.Int("trades", snap.Session.TotalTrades),
	)

	stopLoop()
	<-loopDone
	return nil
}

// buildEngine assembles the calendar, strategies, audit sinks, and engine
// from configuration.
func (a *App) buildEngine(deps *Dependencies) (*engine.Engine, error) {
	cal, err := market.NewCalendar(
		a.cfg.Session.Open,
		a.cfg.Session.Close,
		a.cfg.Session.Timezone,
		a.cfg.Session.CloseLead.Duration,
	)
	if err != nil {
		return nil, fmt.Errorf("build engine: calendar: %w", err)
	}

	spec := domain.ContractSpec{
		Symbol:     a.cfg.Contract.Symbol,
		Multiplier: a.cfg.Contract.Multiplier,
		TickSize:   a.cfg.Contract.TickSize,
	}

	reg := strategy.NewRegistry()
	slots := make([]engine.SlotStrategy, 0, len(a.cfg.Strategies))
	for _, sc := range a.cfg.Strategies {
		st, err := reg.Build(strategy.Config{
			Slot:      sc.Slot,
			Kind:      sc.Kind,
			Quantity:  sc.Quantity,
			StopTicks: sc.StopTicks,
			Params:    sc.Params,
		}, spec, a.logger)
		if err != nil {
			return nil, fmt.Errorf("build engine: slot %s: %w", sc.Slot, err)
		}
		slots = append(slots, engine.SlotStrategy{Slot: sc.Slot, Strategy: st})
	}

	intervals := make(map[string]time.Duration, len(a.cfg.Engine.Intervals))
	for name, d := range a.cfg.Engine.Intervals {
		intervals[name] = d.Duration
	}

	eng, err := engine.New(engine.Options{
		Spec: spec,
		Limits: domain.RiskLimits{
			MaxRiskPerTrade: a.cfg.Risk.MaxRiskPerTrade,
			MaxDailyLoss:    a.cfg.Risk.MaxDailyLoss,
			MaxOverallLoss:  a.cfg.Risk.MaxOverallLoss,
		},
		Calendar:    cal,
		Strategies:  slots,
		Windows:     a.cfg.Engine.Windows,
		Intervals:   intervals,
		CandleDepth: a.cfg.Engine.CandleDepth,
		Audit:       a.buildAuditSink(deps),
		Fills:       deps.FillStore,
		QueueSize:   a.cfg.Engine.QueueSize,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return eng, nil
}

// buildAuditSink fans the audit stream out to every wired consumer: the
// structured log always, plus Postgres, the bus, and operator alerts when
// available.
func (a *App) buildAuditSink(deps *Dependencies) domain.AuditSink {
	sinks := []domain.AuditSink{audit.NewLogSink(a.logger)}
	if deps.AuditStore != nil {
		sinks = append(sinks, audit.NewStoreSink(deps.AuditStore))
	}
	if deps.SignalBus != nil {
		sinks = append(sinks, audit.NewBusSink(deps.SignalBus, a.cfg.Redis.AuditChannel))
	}
	if deps.Notifier != nil {
		sinks = append(sinks, notify.NewAlerter(deps.Notifier, a.cfg.Contract.Symbol))
	}
	if len(sinks) == 1 {
		return sinks[0]
	}
	return audit.NewMulti(sinks...)
}

// buildFeed selects the tick source for live and paper modes.
func (a *App) buildFeed(deps *Dependencies, eng *engine.Engine) (feed.Feed, error) {
	switch strings.ToLower(a.cfg.Feed.Source) {
	case "ws":
		return feed.NewWSFeed(a.cfg.Feed.WSURL, a.cfg.Contract.Symbol, eng.SubmitTick, a.logger), nil
	case "bus":
		if deps.SignalBus == nil {
			return nil, fmt.Errorf("bus feed requires redis to be enabled")
		}
		return feed.NewBusFeed(deps.SignalBus, a.cfg.Feed.Channel, a.cfg.Contract.Symbol, eng.SubmitTick, a.logger), nil
	default:
		return nil, fmt.Errorf("unsupported feed source %q", a.cfg.Feed.Source)
	}
}

// startCollaborators launches the optional background consumers: the status
// cache refresher and the session archiver.
func (a *App) startCollaborators(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine.Engine) {
	if deps.StatusCache != nil {
		g.Go(func() error {
			ticker := time.NewTicker(statusInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					snap, err := eng.Snapshot(ctx)
					if err != nil {
						return err
					}
					if err := deps.StatusCache.Store(ctx, snap); err != nil {
						a.logger.WarnContext(ctx, "status cache refresh failed",
							slog.String("error", err.Error()),
						)
					}
				}
			}
		})
	}

	if deps.BlobWriter != nil && deps.SignalBus != nil {
		archiver := pipeline.NewSessionArchiver(
			deps.SignalBus,
			a.cfg.Redis.AuditChannel,
			deps.BlobWriter,
			deps.FillStore,
			a.cfg.Contract.Symbol,
			a.logger,
		)
		g.Go(func() error { return archiver.Run(ctx) })
	}
}
