package domain

// ControlState is the engine's run state. Owned exclusively by the engine.
type ControlState string

const (
	ControlStopped ControlState = "stopped"
	ControlRunning ControlState = "running"
	ControlPaused  ControlState = "paused"
)

// CommandKind enumerates the engine command surface.
type CommandKind string

const (
	CommandStart         CommandKind = "start"
	CommandStop          CommandKind = "stop"
	CommandPause         CommandKind = "pause"
	CommandResume        CommandKind = "resume"
	CommandCloseAll      CommandKind = "close_all"
	CommandClosePosition CommandKind = "close_position"
	CommandUpdateRisk    CommandKind = "update_risk"
	CommandResetRisk     CommandKind = "reset_risk"
)

// Command is one control-surface request. Slot is set for close_position,
// Limits for update_risk.
type Command struct {
	Kind   CommandKind
	Slot   string
	Limits *RiskLimits
}

// Validate checks that the command carries the arguments its kind requires.
func (c Command) Validate() error {
	switch c.Kind {
	case CommandStart, CommandStop, CommandPause, CommandResume, CommandCloseAll, CommandResetRisk:
		return nil
	case CommandClosePosition:
		if c.Slot == "" {
			return ErrValidation
		}
		return nil
	case CommandUpdateRisk:
		if c.Limits == nil {
			return ErrValidation
		}
		return c.Limits.Validate()
	default:
		return ErrValidation
	}
}
