package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openrange/orbcore/internal/domain"
)

// alertTitles maps the audit kinds worth waking an operator for to their
// alert titles. Everything else passes through Alerter silently.
var alertTitles = map[domain.AuditKind]string{
	domain.AuditRiskHalted:       "Risk halted",
	domain.AuditForceFlatten:     "Positions force-flattened",
	domain.AuditExecutionTimeout: "Execution timeout",
	domain.AuditSessionClosed:    "Session closed",
}

// Alerter adapts the Notifier into an audit sink so the engine's event
// stream drives operator alerts directly.
type Alerter struct {
	notifier *Notifier
	symbol   string
}

// NewAlerter creates an Alerter for the given contract symbol.
func NewAlerter(notifier *Notifier, symbol string) *Alerter {
	return &Alerter{notifier: notifier, symbol: symbol}
}

// Emit forwards alert-worthy audit events to the notifier. Delivery failures
// propagate so the caller can log them; they never block trading.
func (a *Alerter) Emit(ctx context.Context, ev domain.AuditEvent) error {
	title, ok := alertTitles[ev.Kind]
	if !ok {
		return nil
	}
	return a.notifier.Notify(ctx, Alert{
		Event:  string(ev.Kind),
		Symbol: a.symbol,
		Title:  title,
		Body:   formatPayload(ev.Payload),
	})
}

// formatPayload renders the event payload as sorted key: value lines. Nested
// values fall back to their default formatting.
func formatPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return "(no detail)"
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, payload[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

// Compile-time interface check.
var _ domain.AuditSink = (*Alerter)(nil)
