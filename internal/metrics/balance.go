package metrics

import (
	"math"

	"github.com/san-kum/pendctl/internal/sim"
)

// AngleRMS is the root-mean-square pole angle over a run; smaller means
// the pole was held closer to upright.
type AngleRMS struct {
	sumSq   float64
	samples int
}

func NewAngleRMS() *AngleRMS {
	return &AngleRMS{}
}

func (a *AngleRMS) Name() string {
	return "pole_angle_rms"
}

func (a *AngleRMS) Observe(x sim.State, u sim.Control, t float64) {
	if len(x) > 2 {
		a.sumSq += x[2] * x[2]
		a.samples++
	}
}

func (a *AngleRMS) Value() float64 {
	if a.samples == 0 {
		return 0
	}
	return math.Sqrt(a.sumSq / float64(a.samples))
}

func (a *AngleRMS) Reset() {
	a.sumSq = 0
	a.samples = 0
}

// Stability is the fraction of samples where the pole angle stayed
// inside the threshold. The cart is free to move while the pole is
// balanced, so only the angle counts.
type Stability struct {
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string {
	return "stability"
}

func (s *Stability) Observe(x sim.State, u sim.Control, t float64) {
	if len(x) <= 2 {
		return
	}
	s.samples++
	if math.Abs(x[2]) > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
