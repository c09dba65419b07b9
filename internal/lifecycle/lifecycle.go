// Package lifecycle implements the managed operational state machine that
// gates when the control loop's output is live.
//
// States follow the managed-node model:
//
//	Unconfigured --configure--> Inactive --activate--> Active
//	Active --deactivate--> Inactive --cleanup--> Unconfigured
//	any state --shutdown--> Finalized (terminal)
//
// Transitions are externally triggered. Each carries an optional callback;
// a callback error keeps the machine in its prior state.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type State uint8

const (
	Unconfigured State = iota
	Inactive
	Active
	Finalized
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Finalized:
		return "finalized"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

type Event uint8

const (
	Configure Event = iota
	Activate
	Deactivate
	Cleanup
	Shutdown
)

func (e Event) String() string {
	switch e {
	case Configure:
		return "configure"
	case Activate:
		return "activate"
	case Deactivate:
		return "deactivate"
	case Cleanup:
		return "cleanup"
	case Shutdown:
		return "shutdown"
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

// ErrInvalidTransition is returned when an event is not legal in the
// machine's current state.
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

// ErrFinalized is returned for any event triggered after shutdown.
var ErrFinalized = errors.New("lifecycle: machine is finalized")

// Callbacks are the entry actions run while a transition is in flight.
// A nil callback is a no-op. Returning an error aborts the transition.
type Callbacks struct {
	OnConfigure  func() error
	OnActivate   func() error
	OnDeactivate func() error
	OnCleanup    func() error
	OnShutdown   func() error
}

var transitions = map[State]map[Event]State{
	Unconfigured: {
		Configure: Inactive,
		Shutdown:  Finalized,
	},
	Inactive: {
		Activate: Active,
		Cleanup:  Unconfigured,
		Shutdown: Finalized,
	},
	Active: {
		Deactivate: Inactive,
		Shutdown:   Finalized,
	},
}

// Machine is a lifecycle state machine. Safe for concurrent use; callbacks
// run with the machine lock held so transitions are serialized.
type Machine struct {
	mu        sync.Mutex
	current   State
	callbacks Callbacks
	log       zerolog.Logger
}

func New(cb Callbacks, log zerolog.Logger) *Machine {
	return &Machine{
		current:   Unconfigured,
		callbacks: cb,
		log:       log,
	}
}

// Current returns the machine's state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsActive reports whether the machine is in the Active state.
func (m *Machine) IsActive() bool {
	return m.Current() == Active
}

// Trigger runs the transition for the given event. On an illegal event the
// machine is unchanged and ErrInvalidTransition (or ErrFinalized) is
// returned; on a callback error the machine stays in its prior state and
// the callback error is returned wrapped.
func (m *Machine) Trigger(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == Finalized {
		return fmt.Errorf("%w: %s rejected", ErrFinalized, event)
	}
	next, ok := transitions[m.current][event]
	if !ok {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, event, m.current)
	}

	if cb := m.callback(event); cb != nil {
		if err := cb(); err != nil {
			m.log.Error().Err(err).
				Stringer("event", event).
				Stringer("state", m.current).
				Msg("transition failed")
			return fmt.Errorf("lifecycle: %s failed: %w", event, err)
		}
	}

	m.log.Info().
		Stringer("from", m.current).
		Stringer("to", next).
		Msgf("%s", verb(event))
	m.current = next
	return nil
}

func (m *Machine) callback(event Event) func() error {
	switch event {
	case Configure:
		return m.callbacks.OnConfigure
	case Activate:
		return m.callbacks.OnActivate
	case Deactivate:
		return m.callbacks.OnDeactivate
	case Cleanup:
		return m.callbacks.OnCleanup
	case Shutdown:
		return m.callbacks.OnShutdown
	}
	return nil
}

func verb(event Event) string {
	switch event {
	case Configure:
		return "configuring"
	case Activate:
		return "activating"
	case Deactivate:
		return "deactivating"
	case Cleanup:
		return "cleaning up"
	case Shutdown:
		return "shutting down"
	}
	return event.String()
}
