package physics

import (
	"math"

	"github.com/san-kum/pendctl/internal/sim"
)

// CartPole models a cart on a frictionless rail with an inverted pole
// hinged on top. State is [cart position, cart velocity, pole angle, pole
// angular velocity], with angle zero at the upright equilibrium. The
// control input is a horizontal force on the cart.
//
// Coordinates follow the rig's sensors: the pole angle is positive when
// the pole leans along the force axis, while the rail encoder counts
// positive in the opposite direction. The stock feedback gains are tuned
// for this frame; flipping either axis destabilizes the closed loop.
type CartPole struct {
	CartMass   float64
	PoleMass   float64
	PoleLength float64
	Gravity    float64
}

func NewCartPole() *CartPole {
	return &CartPole{
		CartMass:   1.0,
		PoleMass:   0.1,
		PoleLength: 0.5,
		Gravity:    9.80665,
	}
}

func (c *CartPole) StateDim() int   { return 4 }
func (c *CartPole) ControlDim() int { return 1 }

func (c *CartPole) Derive(x sim.State, u sim.Control, t float64) sim.State {
	vel := x[1]
	theta := x[2]
	omega := x[3]

	force := 0.0
	if len(u) > 0 {
		force = u[0]
	}

	mc := c.CartMass
	mp := c.PoleMass
	l := c.PoleLength
	g := c.Gravity

	sint := math.Sin(theta)
	cost := math.Cos(theta)

	// Standard underactuated cart-pole equations of motion. The cart
	// acceleration enters negated because the encoder axis runs
	// opposite the force axis.
	temp := (force + mp*l*omega*omega*sint) / (mc + mp)
	alpha := (g*sint - cost*temp) / (l * (4.0/3.0 - mp*cost*cost/(mc+mp)))
	acc := mp*l*alpha*cost/(mc+mp) - temp

	return sim.State{vel, acc, omega, alpha}
}
