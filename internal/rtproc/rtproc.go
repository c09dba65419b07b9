// Package rtproc applies process-level real-time configuration: scheduling
// priority, CPU affinity, and memory locking. It is applied exactly once,
// from the OS thread that will run the control loop, before the loop
// starts.
package rtproc

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Settings mirrors the proc_settings configuration block. A zero priority
// or zero affinity means "leave at the OS default" and results in no
// system call at all.
type Settings struct {
	LockMemory       bool `yaml:"lock_memory"`
	ProcessPriority  int  `yaml:"process_priority"`
	CPUAffinity      int  `yaml:"cpu_affinity"`
	LockMemorySizeMB int  `yaml:"lock_memory_size_mb"`
}

// System abstracts the privileged OS calls so they can be faked in tests.
// The concrete implementation comes from NewSystem.
type System interface {
	// SetScheduler raises the calling thread to SCHED_FIFO at the given
	// priority.
	SetScheduler(priority int) error
	// SetAffinity binds the calling thread to one logical CPU.
	SetAffinity(cpu int) error
	// LockMemory locks current and future process pages into RAM and
	// pre-faults sizeMB megabytes so page faults cannot occur inside the
	// real-time window.
	LockMemory(sizeMB int) error
}

// Apply configures the calling thread per the settings. The caller must
// have pinned the goroutine with runtime.LockOSThread, since the
// scheduling and affinity calls are thread-scoped.
//
// The first failure is returned wrapped with the operation that failed;
// whether a denial is fatal is the caller's policy, not this package's.
func Apply(s Settings, sys System, log zerolog.Logger) error {
	if s.ProcessPriority != 0 {
		if err := sys.SetScheduler(s.ProcessPriority); err != nil {
			return fmt.Errorf("rtproc: set scheduler priority %d: %w", s.ProcessPriority, err)
		}
		log.Info().Int("priority", s.ProcessPriority).Msg("scheduler priority set")
	}
	if s.CPUAffinity != 0 {
		if err := sys.SetAffinity(s.CPUAffinity); err != nil {
			return fmt.Errorf("rtproc: set cpu affinity %d: %w", s.CPUAffinity, err)
		}
		log.Info().Int("cpu", s.CPUAffinity).Msg("cpu affinity set")
	}
	if s.LockMemory {
		if err := sys.LockMemory(s.LockMemorySizeMB); err != nil {
			return fmt.Errorf("rtproc: lock %d MB of memory: %w", s.LockMemorySizeMB, err)
		}
		log.Info().Int("size_mb", s.LockMemorySizeMB).Msg("process memory locked")
	}
	return nil
}
