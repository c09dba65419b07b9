package controller

import (
	"fmt"
	"sync"
)

// GainCount is the arity of the feedback gain vector: one coefficient per
// plant state component.
const GainCount = 4

// State is one sensed snapshot of the cart-pole plant. It is consumed once
// per control cycle and never retained across cycles.
type State struct {
	CartPosition float64
	CartVelocity float64
	PoleAngle    float64
	PoleVelocity float64
}

// Teleop is the operator setpoint for the cart. The pole terms have no
// settable target; the control objective drives them to zero.
type Teleop struct {
	CartPosition float64
	CartVelocity float64
}

// Controller implements a linear state-feedback law. The force command is
// the dot product of the gain vector with the error vector
//
//	[pos - teleop.pos, vel - teleop.vel, angle, angvel]
//
// State and teleop arrive from different goroutines; all accessors take an
// internal lock so the teleop pair is never observed half-written.
type Controller struct {
	mu     sync.Mutex
	gains  []float64
	state  State
	teleop Teleop
	force  float64
}

// New builds a controller from a feedback gain vector. The gain arity is
// fixed; anything but GainCount coefficients is a configuration error.
func New(gains []float64) (*Controller, error) {
	if len(gains) != GainCount {
		return nil, fmt.Errorf("controller: need %d feedback gains, got %d", GainCount, len(gains))
	}
	c := &Controller{gains: make([]float64, GainCount)}
	copy(c.gains, gains)
	return c, nil
}

// SetState records the latest sensed plant state, overwriting the previous
// snapshot.
func (c *Controller) SetState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SetTeleop records the latest operator setpoint. Both fields are written
// under one lock acquisition so readers see a consistent pair.
func (c *Controller) SetTeleop(position, velocity float64) {
	c.mu.Lock()
	c.teleop = Teleop{CartPosition: position, CartVelocity: velocity}
	c.mu.Unlock()
}

// Update computes the force command from the current state and teleop
// setpoint and stores it for ForceCommand. No blocking, no I/O.
func (c *Controller) Update() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := [GainCount]float64{
		c.state.CartPosition - c.teleop.CartPosition,
		c.state.CartVelocity - c.teleop.CartVelocity,
		c.state.PoleAngle,
		c.state.PoleVelocity,
	}
	force := 0.0
	for i, g := range c.gains {
		force += g * err[i]
	}
	c.force = force
	return force
}

// Reset returns state, teleop setpoint, and stored command to the zero
// baseline without touching the gain vector. Idempotent.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = State{}
	c.teleop = Teleop{}
	c.force = 0
	c.mu.Unlock()
}

// Gains returns a copy of the feedback gain vector.
func (c *Controller) Gains() []float64 {
	g := make([]float64, GainCount)
	copy(g, c.gains)
	return g
}

// State returns the last recorded plant state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Teleop returns the last recorded operator setpoint.
func (c *Controller) Teleop() Teleop {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.teleop
}

// ForceCommand returns the command stored by the most recent Update.
func (c *Controller) ForceCommand() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.force
}
