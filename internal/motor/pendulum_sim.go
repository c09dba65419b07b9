package motor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/san-kum/pendctl/internal/controller"
	"github.com/san-kum/pendctl/internal/physics"
	"github.com/san-kum/pendctl/internal/sim"
)

// PendulumSim simulates a torque-driven pendulum joint with semi-implicit
// Euler integration. The angle is clamped to [0, Pi]; hitting a limit
// stops the motion.
type PendulumSim struct {
	mu     sync.Mutex
	model  *physics.Pendulum
	dt     float64
	angle  float64
	omega  float64
	torque float64
}

func NewPendulumSim(period time.Duration) (*PendulumSim, error) {
	dt := period.Seconds()
	if math.IsNaN(dt) || dt <= 0 {
		return nil, fmt.Errorf("motor: invalid update period %v", period)
	}
	return &PendulumSim{
		model: physics.NewPendulum(),
		dt:    dt,
		angle: math.Pi / 2,
	}, nil
}

func (p *PendulumSim) UpdateCommand(torque float64) {
	p.mu.Lock()
	p.torque = torque
	p.mu.Unlock()
}

func (p *PendulumSim) Step() {
	p.mu.Lock()
	defer p.mu.Unlock()

	dx := p.model.Derive(sim.State{p.angle, p.omega}, sim.Control{p.torque}, 0)
	p.omega += dx[1] * p.dt
	p.angle += p.omega * p.dt

	if p.angle > math.Pi {
		p.angle = math.Pi
		p.omega = 0
	} else if p.angle < 0 {
		p.angle = 0
		p.omega = 0
	}
}

// State reports the sensed joint in the controller's frame: the pole
// angle is the deviation from upright (Pi/2), and the bare joint has no
// cart axis, so the cart terms stay zero and only the angle gains act.
func (p *PendulumSim) State() controller.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return controller.State{
		PoleAngle:    p.angle - math.Pi/2,
		PoleVelocity: p.omega,
	}
}

func (p *PendulumSim) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.angle
}

func (p *PendulumSim) Velocity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.omega
}
