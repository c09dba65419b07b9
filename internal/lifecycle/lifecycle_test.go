package lifecycle

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
)

var _ = Describe("Machine", func() {
	var (
		machine *Machine
		calls   []string
		fail    map[Event]error
	)

	record := func(name string, event Event) func() error {
		return func() error {
			calls = append(calls, name)
			return fail[event]
		}
	}

	BeforeEach(func() {
		calls = nil
		fail = map[Event]error{}
		machine = New(Callbacks{
			OnConfigure:  record("configure", Configure),
			OnActivate:   record("activate", Activate),
			OnDeactivate: record("deactivate", Deactivate),
			OnCleanup:    record("cleanup", Cleanup),
			OnShutdown:   record("shutdown", Shutdown),
		}, zerolog.Nop())
	})

	It("starts unconfigured", func() {
		Expect(machine.Current()).To(Equal(Unconfigured))
		Expect(machine.IsActive()).To(BeFalse())
	})

	It("walks the primary path", func() {
		Expect(machine.Trigger(Configure)).To(Succeed())
		Expect(machine.Current()).To(Equal(Inactive))

		Expect(machine.Trigger(Activate)).To(Succeed())
		Expect(machine.Current()).To(Equal(Active))
		Expect(machine.IsActive()).To(BeTrue())

		Expect(machine.Trigger(Deactivate)).To(Succeed())
		Expect(machine.Current()).To(Equal(Inactive))

		Expect(calls).To(Equal([]string{"configure", "activate", "deactivate"}))
	})

	It("allows reactivation after deactivate", func() {
		Expect(machine.Trigger(Configure)).To(Succeed())
		Expect(machine.Trigger(Activate)).To(Succeed())
		Expect(machine.Trigger(Deactivate)).To(Succeed())
		Expect(machine.Trigger(Activate)).To(Succeed())
		Expect(machine.Current()).To(Equal(Active))
	})

	It("returns to unconfigured on cleanup", func() {
		Expect(machine.Trigger(Configure)).To(Succeed())
		Expect(machine.Trigger(Cleanup)).To(Succeed())
		Expect(machine.Current()).To(Equal(Unconfigured))
		Expect(calls).To(ContainElement("cleanup"))
	})

	DescribeTable("rejects illegal events",
		func(setup []Event, event Event) {
			for _, e := range setup {
				Expect(machine.Trigger(e)).To(Succeed())
			}
			before := machine.Current()
			err := machine.Trigger(event)
			Expect(err).To(MatchError(ErrInvalidTransition))
			Expect(machine.Current()).To(Equal(before))
		},
		Entry("activate while unconfigured", []Event{}, Activate),
		Entry("deactivate while unconfigured", []Event{}, Deactivate),
		Entry("cleanup while unconfigured", []Event{}, Cleanup),
		Entry("configure twice", []Event{Configure}, Configure),
		Entry("deactivate while inactive", []Event{Configure}, Deactivate),
		Entry("configure while active", []Event{Configure, Activate}, Configure),
		Entry("cleanup while active", []Event{Configure, Activate}, Cleanup),
	)

	It("shuts down from any state", func() {
		for _, setup := range [][]Event{
			{},
			{Configure},
			{Configure, Activate},
		} {
			calls = nil
			m := New(Callbacks{OnShutdown: record("shutdown", Shutdown)}, zerolog.Nop())
			for _, e := range setup {
				Expect(m.Trigger(e)).To(Succeed())
			}
			Expect(m.Trigger(Shutdown)).To(Succeed())
			Expect(m.Current()).To(Equal(Finalized))
			Expect(calls).To(Equal([]string{"shutdown"}))
		}
	})

	It("rejects everything once finalized", func() {
		Expect(machine.Trigger(Shutdown)).To(Succeed())
		for _, e := range []Event{Configure, Activate, Deactivate, Cleanup, Shutdown} {
			Expect(machine.Trigger(e)).To(MatchError(ErrFinalized))
		}
	})

	It("stays put when a callback fails", func() {
		boom := errors.New("gain vector rejected")
		fail[Configure] = boom

		err := machine.Trigger(Configure)
		Expect(err).To(MatchError(boom))
		Expect(machine.Current()).To(Equal(Unconfigured))

		// The fault cleared; the same transition now succeeds.
		fail = map[Event]error{}
		Expect(machine.Trigger(Configure)).To(Succeed())
		Expect(machine.Current()).To(Equal(Inactive))
	})

	It("stays inactive when activate preconditions fail", func() {
		Expect(machine.Trigger(Configure)).To(Succeed())
		fail[Activate] = errors.New("publisher not ready")

		Expect(machine.Trigger(Activate)).NotTo(Succeed())
		Expect(machine.Current()).To(Equal(Inactive))
	})

	It("tolerates nil callbacks", func() {
		m := New(Callbacks{}, zerolog.Nop())
		Expect(m.Trigger(Configure)).To(Succeed())
		Expect(m.Trigger(Activate)).To(Succeed())
		Expect(m.Current()).To(Equal(Active))
	})
})
