// Package rtloop implements the deadline-monitored scheduling core: a
// dedicated-goroutine loop that waits a bounded time for the next plant
// sample, dispatches it to the controller, and publishes the resulting
// force command through an activation gate.
package rtloop

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/pendctl/internal/controller"
)

// Loop is the real-time control cycle. Each iteration waits up to the
// deadline for a sample from the mailbox; a timeout while the gate is
// active counts as a missed deadline. Samples are dispatched to the
// controller in every lifecycle state so it stays warm, but the command
// only reaches the publisher while the gate is active.
type Loop struct {
	mailbox  *Mailbox
	ctrl     *controller.Controller
	gate     *Gate
	deadline time.Duration
	missed   atomic.Uint64
	log      zerolog.Logger
}

func New(mailbox *Mailbox, ctrl *controller.Controller, gate *Gate, deadline time.Duration, log zerolog.Logger) (*Loop, error) {
	if deadline <= 0 {
		return nil, fmt.Errorf("rtloop: deadline must be positive, got %v", deadline)
	}
	return &Loop{
		mailbox:  mailbox,
		ctrl:     ctrl,
		gate:     gate,
		deadline: deadline,
		log:      log,
	}, nil
}

// MissedDeadlines returns the number of iterations whose bounded wait
// timed out while the loop was active. Monotonic; never reset.
func (l *Loop) MissedDeadlines() uint64 {
	return l.missed.Load()
}

// Deadline returns the per-iteration time budget.
func (l *Loop) Deadline() time.Duration {
	return l.deadline
}

// Run executes the cycle until ctx is canceled. Cancellation is observed
// at the top of each wait; iterations themselves are bounded by the
// deadline, so no mid-iteration cancellation is needed. Run is intended
// for a dedicated goroutine that has been pinned and prioritized via
// rtproc before calling.
func (l *Loop) Run(ctx context.Context) {
	timer := time.NewTimer(l.deadline)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(l.deadline)

		select {
		case <-ctx.Done():
			return
		case sample := <-l.mailbox.Receive():
			l.step(sample)
		case <-timer.C:
			l.onTimeout()
		}
	}
}

// step runs one controller cycle. A panic out of the controller or the
// publisher is logged and the loop continues; one lost cycle is better
// than a dead control loop.
func (l *Loop) step(sample controller.State) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("control cycle panicked")
		}
	}()
	l.ctrl.SetState(sample)
	force := l.ctrl.Update()
	l.gate.Publish(force)
}

// onTimeout records a deadline miss, but only while active. In every
// other lifecycle state a quiet sensor is expected, not a violation.
func (l *Loop) onTimeout() {
	if l.gate.Active() {
		l.missed.Add(1)
	}
}
