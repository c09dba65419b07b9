// Package node composes the controller, lifecycle machine, and real-time
// loop into one managed control node and owns the wiring between them:
// the lifecycle gates publication, configure resets the controller, and
// deactivate emits the diagnostic snapshot.
package node

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/san-kum/pendctl/internal/config"
	"github.com/san-kum/pendctl/internal/controller"
	"github.com/san-kum/pendctl/internal/lifecycle"
	"github.com/san-kum/pendctl/internal/rtloop"
	"github.com/san-kum/pendctl/internal/rtproc"
)

type Node struct {
	cfg     *config.Config
	ctrl    *controller.Controller
	machine *lifecycle.Machine
	mailbox *rtloop.Mailbox
	gate    *rtloop.Gate
	loop    *rtloop.Loop
	sys     rtproc.System
	log     zerolog.Logger
}

// Snapshot is the diagnostic view emitted on deactivate and polled by the
// live monitor.
type Snapshot struct {
	Lifecycle       lifecycle.State
	State           controller.State
	Teleop          controller.Teleop
	ForceCommand    float64
	MissedDeadlines uint64
}

// New wires a control node around the given publisher. A bad gain vector
// or deadline is fatal here, before any lifecycle transition.
func New(cfg *config.Config, pub rtloop.Publisher, sys rtproc.System, log zerolog.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctrl, err := controller.New(cfg.FeedbackGains)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:     cfg,
		ctrl:    ctrl,
		mailbox: rtloop.NewMailbox(),
		gate:    rtloop.NewGate(pub),
		sys:     sys,
		log:     log,
	}
	n.loop, err = rtloop.New(n.mailbox, ctrl, n.gate, cfg.Deadline(), log)
	if err != nil {
		return nil, err
	}
	n.machine = lifecycle.New(lifecycle.Callbacks{
		OnConfigure:  n.onConfigure,
		OnActivate:   n.onActivate,
		OnDeactivate: n.onDeactivate,
		OnCleanup:    n.onCleanup,
		OnShutdown:   n.onShutdown,
	}, log)
	return n, nil
}

func (n *Node) onConfigure() error {
	if err := n.cfg.Validate(); err != nil {
		return err
	}
	n.ctrl.Reset()
	return nil
}

func (n *Node) onActivate() error {
	n.gate.Activate()
	return nil
}

func (n *Node) onDeactivate() error {
	n.gate.Deactivate()
	n.logSnapshot()
	return nil
}

func (n *Node) onCleanup() error {
	// Drop any sample the loop has not consumed.
	n.mailbox.TryTake()
	n.ctrl.Reset()
	return nil
}

func (n *Node) onShutdown() error {
	n.gate.Deactivate()
	return nil
}

func (n *Node) Configure() error  { return n.machine.Trigger(lifecycle.Configure) }
func (n *Node) Activate() error   { return n.machine.Trigger(lifecycle.Activate) }
func (n *Node) Deactivate() error { return n.machine.Trigger(lifecycle.Deactivate) }
func (n *Node) Cleanup() error    { return n.machine.Trigger(lifecycle.Cleanup) }
func (n *Node) Shutdown() error   { return n.machine.Trigger(lifecycle.Shutdown) }

// LifecycleState returns the machine's current state.
func (n *Node) LifecycleState() lifecycle.State {
	return n.machine.Current()
}

// SetTeleop feeds an operator setpoint to the controller. Arrives on the
// control-plane goroutine, asynchronously to the loop's cadence.
func (n *Node) SetTeleop(position, velocity float64) {
	n.ctrl.SetTeleop(position, velocity)
}

// Mailbox is the sensor-sample input of the real-time loop.
func (n *Node) Mailbox() *rtloop.Mailbox {
	return n.mailbox
}

// MissedDeadlines returns the loop's violation count.
func (n *Node) MissedDeadlines() uint64 {
	return n.loop.MissedDeadlines()
}

// Snapshot returns the current diagnostic view.
func (n *Node) Snapshot() Snapshot {
	return Snapshot{
		Lifecycle:       n.machine.Current(),
		State:           n.ctrl.State(),
		Teleop:          n.ctrl.Teleop(),
		ForceCommand:    n.ctrl.ForceCommand(),
		MissedDeadlines: n.loop.MissedDeadlines(),
	}
}

// RunLoop pins the calling goroutine to its OS thread, applies the
// process real-time settings, and runs the control loop until ctx is
// canceled. With strict set, a privileged-call denial aborts before the
// loop starts; otherwise it is logged and the loop runs at default
// scheduling.
func (n *Node) RunLoop(ctx context.Context, strict bool) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := rtproc.Apply(n.cfg.Proc, n.sys, n.log); err != nil {
		if strict {
			return err
		}
		n.log.Warn().Err(err).Msg("running without real-time configuration")
	}
	n.loop.Run(ctx)
	return nil
}

// logSnapshot mirrors the controller introspection dump the node emits
// when leaving the active state. It runs inside a lifecycle callback
// with the machine lock held, so it reads the components directly
// rather than going through Snapshot, which would re-enter the machine.
func (n *Node) logSnapshot() {
	state := n.ctrl.State()
	teleop := n.ctrl.Teleop()
	n.log.Info().
		Float64("cart_position", state.CartPosition).
		Float64("cart_velocity", state.CartVelocity).
		Float64("pole_angle", state.PoleAngle).
		Float64("pole_velocity", state.PoleVelocity).
		Float64("teleop_position", teleop.CartPosition).
		Float64("teleop_velocity", teleop.CartVelocity).
		Float64("force_command", n.ctrl.ForceCommand()).
		Uint64("missed_deadlines", n.loop.MissedDeadlines()).
		Msg("controller state")
}
