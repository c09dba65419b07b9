package rtloop

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/pendctl/internal/controller"
)

var testGains = []float64{-10.0, -51.5393, 356.8637, 154.4146}

type capturePublisher struct {
	forces chan float64
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{forces: make(chan float64, 16)}
}

func (p *capturePublisher) Publish(force float64) {
	p.forces <- force
}

func newTestLoop(t *testing.T, deadline time.Duration) (*Loop, *Mailbox, *Gate, *capturePublisher) {
	t.Helper()
	ctrl, err := controller.New(testGains)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	pub := newCapturePublisher()
	gate := NewGate(pub)
	mailbox := NewMailbox()
	loop, err := New(mailbox, ctrl, gate, deadline, zerolog.Nop())
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	return loop, mailbox, gate, pub
}

func TestNewRejectsInvalidDeadline(t *testing.T) {
	ctrl, _ := controller.New(testGains)
	for _, d := range []time.Duration{0, -time.Millisecond} {
		if _, err := New(NewMailbox(), ctrl, NewGate(nil), d, zerolog.Nop()); err == nil {
			t.Errorf("expected error for deadline %v", d)
		}
	}
}

func TestTimeoutCountsOnlyWhileActive(t *testing.T) {
	loop, _, gate, _ := newTestLoop(t, time.Millisecond)

	// Inactive: timeouts are not violations.
	for i := 0; i < 5; i++ {
		loop.onTimeout()
	}
	if got := loop.MissedDeadlines(); got != 0 {
		t.Errorf("inactive timeouts counted: %d", got)
	}

	gate.Activate()
	for i := 0; i < 3; i++ {
		loop.onTimeout()
	}
	if got := loop.MissedDeadlines(); got != 3 {
		t.Errorf("expected 3 missed deadlines, got %d", got)
	}

	gate.Deactivate()
	loop.onTimeout()
	if got := loop.MissedDeadlines(); got != 3 {
		t.Errorf("counter moved after deactivate: %d", got)
	}
}

func TestRunCountsMissesWhileActive(t *testing.T) {
	loop, _, gate, _ := newTestLoop(t, time.Millisecond)
	gate.Activate()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	// No samples arrive; every iteration times out.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if loop.MissedDeadlines() == 0 {
		t.Error("expected missed deadlines with a silent sensor while active")
	}
}

func TestRunQuietWhileInactive(t *testing.T) {
	loop, _, _, _ := newTestLoop(t, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if got := loop.MissedDeadlines(); got != 0 {
		t.Errorf("inactive loop counted %d misses", got)
	}
}

func TestRunPublishesWhileActive(t *testing.T) {
	loop, mailbox, gate, pub := newTestLoop(t, 50*time.Millisecond)
	gate.Activate()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	mailbox.Put(controller.State{PoleAngle: 0.1})

	select {
	case force := <-pub.forces:
		want := 356.8637 * 0.1
		if math.Abs(force-want) > 1e-9 {
			t.Errorf("expected force %f, got %f", want, force)
		}
	case <-time.After(time.Second):
		t.Fatal("no command published")
	}
}

func TestRunKeepsControllerWarmWhileInactive(t *testing.T) {
	loop, mailbox, _, pub := newTestLoop(t, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	mailbox.Put(controller.State{PoleAngle: 0.2})

	// The controller consumed the sample even though nothing is published.
	deadline := time.Now().Add(time.Second)
	for loop.ctrl.State().PoleAngle != 0.2 {
		if time.Now().After(deadline) {
			t.Fatal("controller never saw the sample")
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case force := <-pub.forces:
		t.Errorf("inactive loop published %f", force)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	loop, _, _, _ := newTestLoop(t, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on cancellation")
	}
}

func TestStepSurvivesPanickingPublisher(t *testing.T) {
	ctrl, _ := controller.New(testGains)
	gate := NewGate(panicPublisher{})
	gate.Activate()
	loop, err := New(NewMailbox(), ctrl, gate, time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatalf("loop: %v", err)
	}

	loop.step(controller.State{PoleAngle: 0.1})
	loop.step(controller.State{PoleAngle: 0.2})

	if got := ctrl.State().PoleAngle; got != 0.2 {
		t.Errorf("loop stopped processing after panic: state %f", got)
	}
}

type panicPublisher struct{}

func (panicPublisher) Publish(float64) { panic("transport gone") }
