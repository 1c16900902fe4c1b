// Package notify delivers operator alerts for the trading core's
// exceptional moments: risk halts, forced flattens, execution timeouts, and
// session closes. Alerts fan out to every configured channel (Telegram,
// Discord) and can be filtered by the audit kind that produced them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Alert is one operator notification: which audit kind produced it, the
// contract it concerns, and the rendered headline and detail lines.
type Alert struct {
	// Event is the audit kind that produced the alert ("risk_halted",
	// "force_flatten", ...). The notifier's filter keys on it.
	Event string

	// Symbol is the contract the alert concerns.
	Symbol string

	// Title is the headline without the symbol tag; senders render
	// "Title [Symbol]" in their own markup.
	Title string

	// Body holds the detail lines, one "key: value" per line.
	Body string
}

// Headline renders the title with its symbol tag, the plain-text form every
// sender decorates.
func (a Alert) Headline() string {
	if a.Symbol == "" {
		return a.Title
	}
	return fmt.Sprintf("%s [%s]", a.Title, a.Symbol)
}

// Sender is one delivery channel for alerts.
type Sender interface {
	Send(ctx context.Context, alert Alert) error
	// Name identifies the channel in logs (e.g. "telegram").
	Name() string
}

// Notifier dispatches alerts to one or more Senders. It keeps a set of
// allowed audit kinds; Notify forwards only alerts whose Event is in the
// set, while NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only
// alerts whose Event appears in events are forwarded by Notify; an empty
// events list allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the alert to all senders if its Event passes the filter.
func (n *Notifier) Notify(ctx context.Context, alert Alert) error {
	if len(n.events) > 0 && !n.events[alert.Event] {
		n.logger.DebugContext(ctx, "alert filtered out",
			slog.String("event", alert.Event),
		)
		return nil
	}
	return n.dispatch(ctx, alert)
}

// NotifyAll delivers the alert to all senders regardless of its Event.
func (n *Notifier) NotifyAll(ctx context.Context, alert Alert) error {
	return n.dispatch(ctx, alert)
}

// dispatch sends the alert through every sender. Errors are collected into
// one combined error; a single failing channel never blocks the others.
func (n *Notifier) dispatch(ctx context.Context, alert Alert) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, alert); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", alert.Event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "alert sent",
				slog.String("sender", s.Name()),
				slog.String("event", alert.Event),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
