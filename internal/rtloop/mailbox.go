package rtloop

import (
	"github.com/san-kum/pendctl/internal/controller"
)

// Mailbox is a single-slot handoff for plant state samples. It holds at
// most one pending sample; a new arrival replaces an unconsumed one, so the
// consumer always sees the freshest state and backlog can never build up.
type Mailbox struct {
	slot chan controller.State
}

func NewMailbox() *Mailbox {
	return &Mailbox{slot: make(chan controller.State, 1)}
}

// Put deposits a sample, displacing any unconsumed one. Never blocks.
func (m *Mailbox) Put(s controller.State) {
	for {
		select {
		case m.slot <- s:
			return
		default:
		}
		// Slot occupied: discard the stale sample and retry. The retry
		// loop covers a concurrent consumer winning the drain.
		select {
		case <-m.slot:
		default:
		}
	}
}

// Receive exposes the slot for a bounded select-based wait.
func (m *Mailbox) Receive() <-chan controller.State {
	return m.slot
}

// TryTake drains the slot without waiting.
func (m *Mailbox) TryTake() (controller.State, bool) {
	select {
	case s := <-m.slot:
		return s, true
	default:
		return controller.State{}, false
	}
}
