// Package sentry implements the debounced Standby/Validation/Tracking/
// Exiting state machine (spec §4.8) that turns a stream of per-frame
// person-present/absent classifications into the producer's output mode.
package sentry

import "github.com/edge-sentry/ipcbridge/internal/controlbyte"

// State identifies which of the four hysteresis states the machine is in.
type State int

const (
	StateStandby State = iota
	StateValidation
	StateTracking
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateStandby:
		return "Standby"
	case StateValidation:
		return "Validation"
	case StateTracking:
		return "Tracking"
	case StateExiting:
		return "Exiting"
	default:
		return "Unknown"
	}
}

// Config holds the two debounce thresholds (spec §4.8/§6).
type Config struct {
	ValidationFrames  int // V, default 5
	TrackingExitFrames int // E, default 5
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{ValidationFrames: 5, TrackingExitFrames: 5}
}

// Machine is the sentry state machine. It is not safe for concurrent use;
// the controller drives it from a single loop (spec §4.8: "loop cadence
// is driven by the detection signal queue").
type Machine struct {
	cfg     Config
	state   State
	counter int // k within Validation(k) or Exiting(k); unused in Standby/Tracking

	control *controlbyte.ControlByte

	StateTransitions uint64 // every Step call that changed state
	ModeTransitions  uint64 // every Step call that flipped the exported ControlByte value
}

// New creates a machine starting in Standby, driving control.
func New(cfg Config, control *controlbyte.ControlByte) *Machine {
	if cfg.ValidationFrames <= 0 {
		cfg.ValidationFrames = DefaultConfig().ValidationFrames
	}
	if cfg.TrackingExitFrames <= 0 {
		cfg.TrackingExitFrames = DefaultConfig().TrackingExitFrames
	}
	m := &Machine{cfg: cfg, state: StateStandby, control: control}
	if control != nil {
		control.Store(controlbyte.Standby)
	}
	return m
}

// State returns the current state and, for Validation/Exiting, the
// internal debounce counter.
func (m *Machine) State() (State, int) { return m.state, m.counter }

// Mode returns the ControlByte value the current state exports.
func (m *Machine) Mode() controlbyte.Mode {
	if m.state == StateStandby {
		return controlbyte.Standby
	}
	return controlbyte.Alarmed
}

// Step advances the machine by one detection classification and returns
// the resulting state and exported mode. It writes the mode to
// ControlByte on every state change (spec §4.8), not just on mode flips.
func (m *Machine) Step(personPresent bool) (State, controlbyte.Mode) {
	prevMode := m.Mode()
	prevState := m.state

	switch m.state {
	case StateStandby:
		if personPresent {
			m.state, m.counter = StateValidation, 1
		}
		// absent: stay

	case StateValidation:
		if personPresent {
			if m.counter+1 >= m.cfg.ValidationFrames {
				m.state, m.counter = StateTracking, 0
			} else {
				m.counter++
			}
		} else {
			m.state, m.counter = StateStandby, 0
		}

	case StateTracking:
		if personPresent {
			m.counter = 0 // reset exit counter, stay Tracking
		} else {
			m.state, m.counter = StateExiting, 1
		}

	case StateExiting:
		if personPresent {
			m.state, m.counter = StateTracking, 0
		} else {
			if m.counter+1 >= m.cfg.TrackingExitFrames {
				m.state, m.counter = StateStandby, 0
			} else {
				m.counter++
			}
		}
	}

	if m.state != prevState {
		m.StateTransitions++
		if m.control != nil {
			m.control.Store(m.Mode())
		}
	}
	if m.Mode() != prevMode {
		m.ModeTransitions++
	}

	return m.state, m.Mode()
}
