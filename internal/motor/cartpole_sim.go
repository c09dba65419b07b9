package motor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/san-kum/pendctl/internal/controller"
	"github.com/san-kum/pendctl/internal/integrators"
	"github.com/san-kum/pendctl/internal/physics"
	"github.com/san-kum/pendctl/internal/sim"
)

// poleLimit is the angular range the pole can physically reach before it
// lies against the cart.
const poleLimit = math.Pi / 2

// CartPoleSim simulates the full cart-pole plant. UpdateCommand is called
// from the control loop goroutine and Step from the driver goroutine, so
// the state sits behind a lock.
type CartPoleSim struct {
	mu    sync.Mutex
	model *physics.CartPole
	integ *integrators.Euler
	dt    float64
	x     sim.State
	force float64
}

func NewCartPoleSim(period time.Duration, initial controller.State) (*CartPoleSim, error) {
	dt := period.Seconds()
	if math.IsNaN(dt) || dt <= 0 {
		return nil, fmt.Errorf("motor: invalid update period %v", period)
	}
	return &CartPoleSim{
		model: physics.NewCartPole(),
		integ: integrators.NewEuler(),
		dt:    dt,
		x: sim.State{
			initial.CartPosition,
			initial.CartVelocity,
			initial.PoleAngle,
			initial.PoleVelocity,
		},
	}, nil
}

func (c *CartPoleSim) UpdateCommand(force float64) {
	c.mu.Lock()
	c.force = force
	c.mu.Unlock()
}

func (c *CartPoleSim) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.x = c.integ.Step(c.model, c.x, sim.Control{c.force}, 0, c.dt)

	// The pole cannot swing past the cart.
	if c.x[2] > poleLimit {
		c.x[2] = poleLimit
		c.x[3] = 0
	} else if c.x[2] < -poleLimit {
		c.x[2] = -poleLimit
		c.x[3] = 0
	}
}

func (c *CartPoleSim) State() controller.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return controller.State{
		CartPosition: c.x[0],
		CartVelocity: c.x[1],
		PoleAngle:    c.x[2],
		PoleVelocity: c.x[3],
	}
}

func (c *CartPoleSim) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.x[2]
}

func (c *CartPoleSim) Velocity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.x[3]
}
