package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/pendctl/internal/sim"
)

func TestControlEffort(t *testing.T) {
	m := NewControlEffort()
	m.Observe(sim.State{0, 0, 0, 0}, sim.Control{2.0}, 0)
	m.Observe(sim.State{0, 0, 0, 0}, sim.Control{-4.0}, 0.001)

	if got := m.Value(); got != 3.0 {
		t.Errorf("expected mean effort 3.0, got %f", got)
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("reset did not clear effort")
	}
}

func TestAngleRMS(t *testing.T) {
	m := NewAngleRMS()
	m.Observe(sim.State{0, 0, 0.3, 0}, sim.Control{0}, 0)
	m.Observe(sim.State{0, 0, -0.4, 0}, sim.Control{0}, 0.001)

	want := math.Sqrt((0.09 + 0.16) / 2)
	if got := m.Value(); math.Abs(got-want) > 1e-12 {
		t.Errorf("expected rms %f, got %f", want, got)
	}
}

func TestAngleRMSIgnoresShortStates(t *testing.T) {
	m := NewAngleRMS()
	m.Observe(sim.State{1.0, 2.0}, sim.Control{0}, 0)
	if m.Value() != 0 {
		t.Error("short state should not contribute")
	}
}

func TestStability(t *testing.T) {
	m := NewStability(0.2)
	m.Observe(sim.State{0, 0, 0.1, 0}, sim.Control{0}, 0)
	m.Observe(sim.State{0, 0, 0.5, 0}, sim.Control{0}, 0.001)
	m.Observe(sim.State{0, 0, 0.05, 0}, sim.Control{0}, 0.002)

	want := 1.0 - 1.0/3.0
	if got := m.Value(); math.Abs(got-want) > 1e-12 {
		t.Errorf("expected stability %f, got %f", want, got)
	}
}

func TestStabilityIgnoresCartExcursion(t *testing.T) {
	m := NewStability(0.2)
	// A balanced pole with the cart parked away from the origin is a
	// stable sample; only the angle is thresholded.
	m.Observe(sim.State{0.3, 0.1, 0.01, 0}, sim.Control{0}, 0)

	if got := m.Value(); got != 1.0 {
		t.Errorf("cart position should not count against stability, got %f", got)
	}
}

func TestStabilityEmptyRun(t *testing.T) {
	m := NewStability(1.0)
	if m.Value() != 1.0 {
		t.Error("empty run should count as stable")
	}
}
