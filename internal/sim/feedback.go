package sim

import "github.com/san-kum/pendctl/internal/controller"

// Feedback adapts the real-time state-feedback controller to the offline
// Controller interface, so tuning runs exercise the exact control law the
// loop will execute.
type Feedback struct {
	ctrl *controller.Controller
}

func NewFeedback(ctrl *controller.Controller) *Feedback {
	return &Feedback{ctrl: ctrl}
}

func (f *Feedback) Compute(x State, t float64) Control {
	f.ctrl.SetState(controller.State{
		CartPosition: x[0],
		CartVelocity: x[1],
		PoleAngle:    x[2],
		PoleVelocity: x[3],
	})
	return Control{f.ctrl.Update()}
}

// SetTarget forwards a cart setpoint into the underlying controller.
func (f *Feedback) SetTarget(position, velocity float64) {
	f.ctrl.SetTeleop(position, velocity)
}
