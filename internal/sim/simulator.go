// Package sim runs fixed-step, offline closed-loop simulations of a plant
// under a feedback controller. It has none of the real-time machinery;
// rtloop owns the deadline-monitored path, this package owns trajectory
// generation for tuning and analysis.
package sim

import (
	"context"
	"fmt"
)

type Simulator struct {
	dyn        Dynamics
	integrator Integrator
	controller Controller
	metrics    []Metric
	observers  []Observer
}

func New(dyn Dynamics, integrator Integrator, controller Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run simulates from x0 for cfg.Duration and returns the full trajectory.
// A state going NaN/Inf ends the run early with a StepError; the partial
// result is still returned.
func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := int(cfg.Duration / cfg.Dt)
	result := &Result{
		States:   make([]State, 0, steps+1),
		Commands: make([]Control, 0, steps),
		Times:    make([]float64, 0, steps+1),
		Metrics:  make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	t := 0.0

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		u := s.controller.Compute(x, t)

		for _, m := range s.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, u, t)
		}

		x = s.integrator.Step(s.dyn, x, u, t, cfg.Dt)
		t += cfg.Dt

		if cfg.ValidateState && !x.IsValid() {
			s.finish(result)
			return result, StepError{Time: t, Step: i, Message: "state diverged (NaN/Inf)"}
		}

		result.StepsTaken++
		result.States = append(result.States, x.Clone())
		result.Commands = append(result.Commands, u)
		result.Times = append(result.Times, t)
	}

	s.finish(result)
	return result, nil
}

func (s *Simulator) finish(result *Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	return nil
}
