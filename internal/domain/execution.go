package domain

import (
	"context"
	"time"
)

// ExecutionRequest asks the external broker collaborator to work an approved
// intent. The engine never blocks on the broker: the request is dispatched
// fire-and-record and the result re-enters the serialized queue.
type ExecutionRequest struct {
	Intent      Intent
	SubmittedAt time.Time
}

// ExecutionResult is the broker collaborator's answer. A timed-out or
// rejected request comes back with Filled=false and the intent is treated as
// unfilled (fail-closed).
type ExecutionResult struct {
	IntentID  string
	Slot      string
	Filled    bool
	FillPrice float64
	Error     string
	Timestamp time.Time
}

// Executor is the broker-facing collaborator. Dispatch must return promptly;
// the eventual result is delivered through the callback registered with the
// engine at wiring time.
type Executor interface {
	Dispatch(ctx context.Context, req ExecutionRequest) error
}
