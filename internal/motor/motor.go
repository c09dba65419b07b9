// Package motor abstracts the plant actuator and sensor behind a small
// capability interface, with simulation variants in-package. A hardware
// implementation slots in behind the same interface.
package motor

import "github.com/san-kum/pendctl/internal/controller"

// Motor is the minimal actuator/sensor capability: accept a command,
// advance one period, report the sensed joint.
type Motor interface {
	// UpdateCommand records the latest actuator command. It does not
	// move the plant; motion happens in Step.
	UpdateCommand(force float64)
	// Step advances the plant by one update period.
	Step()
	Position() float64
	Velocity() float64
}

// Plant extends Motor with the full sensed state the control loop
// consumes.
type Plant interface {
	Motor
	State() controller.State
}
