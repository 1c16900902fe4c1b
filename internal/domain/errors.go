package domain

import "errors"

var (
	ErrValidation       = errors.New("invalid parameters")
	ErrSlotOccupied     = errors.New("slot already holds a position")
	ErrNoPosition       = errors.New("no open position for slot")
	ErrUnknownSlot      = errors.New("unknown strategy slot")
	ErrNotRunnable      = errors.New("invalid control state transition")
	ErrNoMarketData     = errors.New("no market price seen yet")
	ErrExecutionTimeout = errors.New("execution not confirmed in time")
	ErrQueueFull        = errors.New("event queue full")
)
