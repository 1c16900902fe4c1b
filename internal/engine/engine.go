// Package engine contains the orchestrator: a single serialized loop that
// owns the control state machine and sequences session aggregation, strategy
// evaluation, risk review, and position mutation for every tick and command.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openrange/orbcore/internal/domain"
	"github.com/openrange/orbcore/internal/market"
	"github.com/openrange/orbcore/internal/position"
	"github.com/openrange/orbcore/internal/risk"
	"github.com/openrange/orbcore/internal/session"
	"github.com/openrange/orbcore/internal/strategy"
)

// defaultQueueSize bounds the serialized event queue.
const defaultQueueSize = 1024

// SlotStrategy binds one strategy instance to its slot.
type SlotStrategy struct {
	Slot     string
	Strategy strategy.Strategy
}

// Options configures an Engine. Spec, Limits, Calendar, and at least one
// strategy slot are required; the rest have working defaults.
type Options struct {
	Spec        domain.ContractSpec
	Limits      domain.RiskLimits
	Calendar    *market.Calendar
	Strategies  []SlotStrategy
	Windows     map[string]int
	Intervals   map[string]time.Duration
	CandleDepth int
	Audit       domain.AuditSink
	Fills       domain.FillStore
	QueueSize   int
	Logger      *slog.Logger
}

// Engine owns all mutable core state. External producers submit ticks,
// commands, and execution results concurrently; everything is serialized
// through one queue and applied by the single Run loop, so a risk check and
// its resulting mutation are indivisible.
type Engine struct {
	spec     domain.ContractSpec
	calendar *market.Calendar

	session    *session.State
	candles    *market.Aggregator
	positions  *position.Manager
	governor   *risk.Governor
	strategies []SlotStrategy

	executor domain.Executor
	audit    domain.AuditSink
	fills    domain.FillStore

	control         domain.ControlState
	overallRealized float64
	pending         map[string]domain.Intent
	slots           map[string]bool
	lastTick        domain.PriceTick

	queue   chan event
	loopCtx context.Context
	now     func() time.Time
	logger  *slog.Logger
}

// New builds an Engine and its owned components (session state, position
// manager, risk governor) from the given options.
func New(opts Options) (*Engine, error) {
	if err := opts.Spec.Validate(); err != nil {
		return nil, fmt.Errorf("engine: contract: %w", err)
	}
	if err := opts.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("engine: limits: %w", err)
	}
	if opts.Calendar == nil {
		return nil, fmt.Errorf("engine: calendar required: %w", domain.ErrValidation)
	}
	if len(opts.Strategies) == 0 {
		return nil, fmt.Errorf("engine: at least one strategy slot required: %w", domain.ErrValidation)
	}
	seen := make(map[string]bool, len(opts.Strategies))
	for _, ss := range opts.Strategies {
		if ss.Slot == "" || ss.Strategy == nil {
			return nil, fmt.Errorf("engine: empty strategy slot: %w", domain.ErrValidation)
		}
		if seen[ss.Slot] {
			return nil, fmt.Errorf("engine: duplicate slot %q: %w", ss.Slot, domain.ErrValidation)
		}
		seen[ss.Slot] = true
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	e := &Engine{
		spec:       opts.Spec,
		calendar:   opts.Calendar,
		session:    session.New(opts.Windows, logger),
		candles:    market.NewAggregator(opts.Intervals, opts.CandleDepth),
		positions:  position.NewManager(opts.Spec.Multiplier, logger),
		strategies: opts.Strategies,
		audit:      opts.Audit,
		fills:      opts.Fills,
		control:    domain.ControlStopped,
		pending:    make(map[string]domain.Intent),
		slots:      seen,
		queue:      make(chan event, queueSize),
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With(slog.String("component", "engine")),
	}
	e.governor = risk.NewGovernor(opts.Limits, opts.Spec.Multiplier, e.positions, e.onForcedFlatten, logger)
	return e, nil
}

// SetExecutor wires the broker collaborator. The executor delivers results
// back through SubmitExecutionResult, so it is attached after construction.
func (e *Engine) SetExecutor(exec domain.Executor) { e.executor = exec }

// onForcedFlatten accounts for the fills produced by a governor flatten.
func (e *Engine) onForcedFlatten(fills []domain.Fill, price float64, ts time.Time) {
	for _, fill := range fills {
		e.recordFill(fill)
	}
	e.emit(domain.AuditForceFlatten, map[string]any{
		"closed": len(fills),
		"price":  price,
	}, ts)
}

// recordFill settles a closed position into session and lifetime PnL.
func (e *Engine) recordFill(fill domain.Fill) {
	e.session.OnFill(fill.RealizedPnL)
	e.overallRealized += fill.RealizedPnL
	e.emit(domain.AuditPositionClosed, map[string]any{
		"slot":         fill.Slot,
		"side":         string(fill.Side),
		"quantity":     fill.Quantity,
		"entry_price":  fill.EntryPrice,
		"exit_price":   fill.ExitPrice,
		"realized_pnl": fill.RealizedPnL,
		"reason":       string(fill.Reason),
	}, fill.ClosedAt)
	if e.fills != nil {
		if err := e.fills.Record(context.Background(), fill); err != nil {
			e.logger.Warn("fill journal write failed",
				slog.String("slot", fill.Slot),
				slog.String("error", err.Error()),
			)
		}
	}
}

// emit sends an audit event to the sink; sink failures are logged, never
// propagated into the loop.
func (e *Engine) emit(kind domain.AuditKind, payload map[string]any, ts time.Time) {
	if e.audit == nil {
		return
	}
	ev := domain.AuditEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		Timestamp: ts,
	}
	if err := e.audit.Emit(context.Background(), ev); err != nil {
		e.logger.Warn("audit emit failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

// markPrice returns the freshest price the engine has seen. Ticks arriving
// while Stopped still advance it, so an overnight close settles at a real
// market price instead of the zeroed post-boundary session aggregate.
func (e *Engine) markPrice() (float64, bool) {
	if !e.lastTick.Timestamp.IsZero() {
		return e.lastTick.Price, true
	}
	if agg := e.session.Aggregates(); agg.LastPrice != 0 {
		return agg.LastPrice, true
	}
	return 0, false
}

// snapshot builds the pull-based status view. O(number of slots), read-only.
func (e *Engine) snapshot() domain.StatusSnapshot {
	agg := e.session.Aggregates()
	mark, _ := e.markPrice()
	unrealized := e.positions.MarkToMarket(mark)
	return domain.StatusSnapshot{
		ControlState:       e.control,
		RiskState:          e.governor.State(),
		Limits:             e.governor.Limits(),
		Positions:          e.positions.Positions(),
		Session:            agg,
		UnrealizedPnL:      unrealized,
		OverallRealizedPnL: e.overallRealized,
		Timestamp:          e.now(),
	}
}

// pnl returns the loss-ceiling inputs: daily and overall PnL including
// open-position mark-to-market at the given price.
func (e *Engine) pnl(price float64) (daily, overall float64) {
	unrealized := e.positions.MarkToMarket(price)
	agg := e.session.Aggregates()
	return agg.DailyRealizedPnL + unrealized, e.overallRealized + unrealized
}
