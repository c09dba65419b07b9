package sim

import (
	"fmt"
	"math"
)

// State is a plant state vector. For the cart-pole it is
// [cart position, cart velocity, pole angle, pole angular velocity].
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Control is a control input vector; for the cart-pole a single force.
type Control []float64

// Dynamics defines the differential equations of a plant,
// dX/dt = f(X, u, t).
type Dynamics interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Integrator advances a plant state one fixed timestep.
type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t, dt float64) State
}

// Controller computes a control input from the current state.
type Controller interface {
	Compute(x State, t float64) Control
}

// Metric accumulates a scalar statistic over a run.
type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

// Observer is called once per step with the pre-step state and the
// control applied to it.
type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Config struct {
	Dt            float64
	Duration      float64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.001,
		Duration:      10.0,
		ValidateState: true,
	}
}

type Result struct {
	States     []State
	Commands   []Control
	Times      []float64
	Metrics    map[string]float64
	StepsTaken int
}

// StepError reports where a run went bad.
type StepError struct {
	Time    float64
	Step    int
	Message string
}

func (e StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
