//go:build linux

package rtproc

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

type unixSystem struct{}

// NewSystem returns the real privileged-call implementation for this
// platform.
func NewSystem() System {
	return unixSystem{}
}

func (unixSystem) SetScheduler(priority int) error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	return unix.SchedSetAttr(0, &attr, 0)
}

func (unixSystem) SetAffinity(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

func (unixSystem) LockMemory(sizeMB int) error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return err
	}
	if sizeMB > 0 {
		prefault(sizeMB << 20)
	}
	return nil
}

// prefault touches one byte per page of a throwaway allocation so the
// pages are resident before the loop starts. With MCL_FUTURE in effect
// they stay resident.
func prefault(size int) {
	buf := make([]byte, size)
	page := os.Getpagesize()
	for i := 0; i < len(buf); i += page {
		buf[i] = 1
	}
	runtime.KeepAlive(buf)
}
