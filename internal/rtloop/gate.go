package rtloop

import "sync/atomic"

// Publisher consumes force commands. Publication is fire-and-forget; there
// is no acknowledgment path.
type Publisher interface {
	Publish(force float64)
}

// Gate wraps a Publisher with an activation latch. While inactive,
// Publish is a no-op; the lifecycle machine flips the latch on
// activate/deactivate.
type Gate struct {
	active atomic.Bool
	pub    Publisher
}

func NewGate(pub Publisher) *Gate {
	return &Gate{pub: pub}
}

func (g *Gate) Activate()    { g.active.Store(true) }
func (g *Gate) Deactivate()  { g.active.Store(false) }
func (g *Gate) Active() bool { return g.active.Load() }

func (g *Gate) Publish(force float64) {
	if g.active.Load() {
		g.pub.Publish(force)
	}
}
