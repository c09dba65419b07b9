package physics

import (
	"math"

	"github.com/san-kum/pendctl/internal/sim"
)

// Pendulum models a point mass on a rigid rod. The angle is measured from
// the ground plane, so the rod rests at 0 or Pi and balances upright at
// Pi/2. State is [angle, angular velocity]; the control input is a torque
// at the joint.
type Pendulum struct {
	Mass    float64
	Length  float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    0.01,
		Length:  0.5,
		Gravity: 9.80665,
	}
}

func (p *Pendulum) StateDim() int   { return 2 }
func (p *Pendulum) ControlDim() int { return 1 }

func (p *Pendulum) Derive(x sim.State, u sim.Control, t float64) sim.State {
	theta := x[0]
	omega := x[1]

	torque := 0.0
	if len(u) > 0 {
		torque = u[0]
	}

	alpha := p.Gravity*math.Sin(theta-math.Pi/2)/p.Length +
		torque/(p.Mass*p.Length*p.Length)

	return sim.State{omega, alpha}
}
