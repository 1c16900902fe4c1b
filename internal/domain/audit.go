package domain

import (
	"context"
	"time"
)

// AuditKind classifies audit events.
type AuditKind string

const (
	AuditControlState     AuditKind = "control_state"
	AuditIntentApproved   AuditKind = "intent_approved"
	AuditIntentRejected   AuditKind = "intent_rejected"
	AuditRiskHalted       AuditKind = "risk_halted"
	AuditRiskReset        AuditKind = "risk_reset"
	AuditForceFlatten     AuditKind = "force_flatten"
	AuditPositionOpened   AuditKind = "position_opened"
	AuditPositionClosed   AuditKind = "position_closed"
	AuditExecutionTimeout AuditKind = "execution_timeout"
	AuditLimitsUpdated    AuditKind = "limits_updated"
	AuditSessionOpened    AuditKind = "session_opened"
	AuditSessionClosed    AuditKind = "session_closed"
)

// AuditEvent is emitted for every state transition, fill, and rejection, for
// consumption by external logging and observability collaborators.
type AuditEvent struct {
	ID        string         `json:"id"`
	Kind      AuditKind      `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditSink receives audit events. Implementations must not block the
// engine's loop for long; slow transports should buffer internally.
type AuditSink interface {
	Emit(ctx context.Context, ev AuditEvent) error
}
