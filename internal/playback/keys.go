package playback

import (
	"log/slog"
	"time"
)

// Key codes understood by the router
const (
	KeySpace      = "Space"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
	KeyArrowUp    = "ArrowUp"
	KeyArrowDown  = "ArrowDown"
	KeyF          = "KeyF"
)

// Target is the element a key event was aimed at
type Target int

const (
	TargetPage Target = iota
	TargetTextInput
	TargetTextArea
	TargetEditable
)

// IsTextEntry reports whether typing into the target must be left alone
func (t Target) IsTextEntry() bool {
	return t == TargetTextInput || t == TargetTextArea || t == TargetEditable
}

// KeyEvent is one key press routed through the session
type KeyEvent struct {
	Code   string
	Target Target

	defaultPrevented   bool
	propagationStopped bool
}

// PreventDefault suppresses the host's own handling of the key
func (e *KeyEvent) PreventDefault() { e.defaultPrevented = true }

// StopPropagation keeps the key from reaching other handlers
func (e *KeyEvent) StopPropagation() { e.propagationStopped = true }

// DefaultPrevented reports whether PreventDefault was called
func (e *KeyEvent) DefaultPrevented() bool { return e.defaultPrevented }

// PropagationStopped reports whether StopPropagation was called
func (e *KeyEvent) PropagationStopped() bool { return e.propagationStopped }

// Commander executes player commands
type Commander interface {
	IssueCommand(kind CommandKind, payload float64) error
}

type binding struct {
	kind    CommandKind
	payload float64
}

// KeyRouter maps key events to player commands
type KeyRouter struct {
	commander Commander
	bindings  map[string]binding
	installed bool
	logger    *slog.Logger
}

// NewKeyRouter creates a router; zero steps mean 5s and 0.1
func NewKeyRouter(commander Commander, seekStep time.Duration, volumeStep float64, logger *slog.Logger) *KeyRouter {
	if seekStep <= 0 {
		seekStep = 5 * time.Second
	}
	if volumeStep <= 0 {
		volumeStep = 0.1
	}
	if logger == nil {
		logger = slog.Default()
	}

	seek := seekStep.Seconds()
	return &KeyRouter{
		commander: commander,
		bindings: map[string]binding{
			KeySpace:      {kind: CommandTogglePlay},
			KeyArrowLeft:  {kind: CommandSeek, payload: -seek},
			KeyArrowRight: {kind: CommandSeek, payload: seek},
			KeyArrowUp:    {kind: CommandVolume, payload: volumeStep},
			KeyArrowDown:  {kind: CommandVolume, payload: -volumeStep},
			KeyF:          {kind: CommandToggleFullscreen},
		},
		logger: logger.With("component", "keys"),
	}
}

// Install starts routing events
func (r *KeyRouter) Install() { r.installed = true }

// Remove stops routing events
func (r *KeyRouter) Remove() { r.installed = false }

// Installed reports whether the router is routing events
func (r *KeyRouter) Installed() bool { return r.installed }

// HandleKeyEvent runs the command bound to ev and reports whether it was
// recognized. Recognized events are suppressed; text-entry targets and
// unknown keys are left untouched.
func (r *KeyRouter) HandleKeyEvent(ev *KeyEvent) bool {
	if !r.installed || ev.Target.IsTextEntry() {
		return false
	}
	b, ok := r.bindings[ev.Code]
	if !ok {
		return false
	}

	ev.PreventDefault()
	ev.StopPropagation()

	if err := r.commander.IssueCommand(b.kind, b.payload); err != nil {
		r.logger.Debug("key command failed", "key", ev.Code, "command", b.kind, "error", err)
	}
	return true
}
