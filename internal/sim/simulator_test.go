package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/pendctl/internal/controller"
)

type decayDynamics struct{}

func (d *decayDynamics) Derive(x State, u Control, t float64) State {
	return State{-x[0]}
}

func (d *decayDynamics) StateDim() int   { return 1 }
func (d *decayDynamics) ControlDim() int { return 0 }

type eulerStep struct{}

func (e *eulerStep) Step(dyn Dynamics, x State, u Control, t, dt float64) State {
	dx := dyn.Derive(x, u, t)
	out := make(State, len(x))
	for i := range x {
		out[i] = x[i] + dt*dx[i]
	}
	return out
}

type zeroController struct{}

func (z *zeroController) Compute(x State, t float64) Control { return Control{} }

func TestSimulatorRun(t *testing.T) {
	s := New(&decayDynamics{}, &eulerStep{}, &zeroController{})

	cfg := Config{Dt: 0.1, Duration: 1.0, ValidateState: true}
	result, err := s.Run(context.Background(), State{1.0}, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.States) != 11 {
		t.Errorf("expected 11 states, got %d", len(result.States))
	}
	if result.StepsTaken != 10 {
		t.Errorf("expected 10 steps, got %d", result.StepsTaken)
	}

	final := result.States[len(result.States)-1][0]
	want := math.Exp(-1.0)
	if math.Abs(final-want) > 0.2 {
		t.Errorf("expected final state ~%.4f, got %.4f", want, final)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	s := New(&decayDynamics{}, &eulerStep{}, &zeroController{})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Run(context.Background(), State{1.0}, tt.cfg); err == nil {
				t.Error("expected config error")
			}
		})
	}
}

type blowupDynamics struct{}

func (b *blowupDynamics) Derive(x State, u Control, t float64) State {
	return State{math.NaN()}
}
func (b *blowupDynamics) StateDim() int   { return 1 }
func (b *blowupDynamics) ControlDim() int { return 0 }

func TestSimulatorStopsOnDivergence(t *testing.T) {
	s := New(&blowupDynamics{}, &eulerStep{}, &zeroController{})

	cfg := Config{Dt: 0.1, Duration: 1.0, ValidateState: true}
	result, err := s.Run(context.Background(), State{1.0}, cfg)

	var stepErr StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Step != 0 {
		t.Errorf("expected divergence at step 0, got %d", stepErr.Step)
	}
	if result == nil {
		t.Fatal("partial result missing")
	}
}

func TestSimulatorCancellation(t *testing.T) {
	s := New(&decayDynamics{}, &eulerStep{}, &zeroController{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{Dt: 0.001, Duration: 100.0}
	_, err := s.Run(ctx, State{1.0}, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFeedbackAdapter(t *testing.T) {
	ctrl, err := controller.New([]float64{-10.0, -51.5393, 356.8637, 154.4146})
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	fb := NewFeedback(ctrl)

	u := fb.Compute(State{0, 0, 0.1, 0}, 0)
	if len(u) != 1 {
		t.Fatalf("expected 1 control, got %d", len(u))
	}
	want := 356.8637 * 0.1
	if math.Abs(u[0]-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, u[0])
	}

	fb.SetTarget(0.1, 0)
	u = fb.Compute(State{0.1, 0, 0, 0}, 0)
	if u[0] != 0 {
		t.Errorf("cart on setpoint should need no force, got %f", u[0])
	}
}
