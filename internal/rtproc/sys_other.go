//go:build !linux

package rtproc

import "errors"

var errUnsupported = errors.New("rtproc: real-time configuration requires linux")

type stubSystem struct{}

// NewSystem returns a stub on platforms without the required scheduling
// syscalls. Apply still no-ops cleanly when all settings are zero.
func NewSystem() System {
	return stubSystem{}
}

func (stubSystem) SetScheduler(int) error { return errUnsupported }
func (stubSystem) SetAffinity(int) error  { return errUnsupported }
func (stubSystem) LockMemory(int) error   { return errUnsupported }
