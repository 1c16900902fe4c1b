package strategy

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/openrange/orbcore/internal/domain"
)

// Factory builds a strategy instance for one slot.
type Factory func(cfg Config, spec domain.ContractSpec, logger *slog.Logger) (Strategy, error)

// Registry maps strategy kinds to factories. It is safe for concurrent use.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry returns a Registry preloaded with the built-in variants.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(KindOpeningCandle, NewOpeningCandleDirection)
	r.Register(KindVWAPTrend, NewVWAPTrendFollowing)
	r.Register(KindConcretumBands, NewConcretumBandsBreakout)
	return r
}

// Register adds a factory under the given kind, replacing any existing one.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Build instantiates a strategy for the given slot config.
func (r *Registry) Build(cfg Config, spec domain.ContractSpec, logger *slog.Logger) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy kind %q: not registered", cfg.Kind)
	}
	if cfg.Slot == "" || cfg.Quantity <= 0 || cfg.StopTicks <= 0 {
		return nil, fmt.Errorf("strategy slot %q: %w", cfg.Slot, domain.ErrValidation)
	}
	return f(cfg, spec, logger)
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
