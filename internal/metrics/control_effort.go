// Package metrics provides run statistics observed during offline
// simulation and recorded into run metadata.
package metrics

import (
	"math"

	"github.com/san-kum/pendctl/internal/sim"
)

// ControlEffort is the mean absolute force applied over a run.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string {
	return "control_effort"
}

func (c *ControlEffort) Observe(x sim.State, u sim.Control, t float64) {
	for _, v := range u {
		c.sum += math.Abs(v)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
