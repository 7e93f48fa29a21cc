//go:build !windows

package daemon

import (
	"fmt"
	"syscall"
)

// IsRunning reports the recorded state and whether its process is alive.
func (p *PIDFile) IsRunning() (State, bool) {
	st, err := p.Read()
	if err != nil {
		return State{}, false
	}
	// Signal 0 tests if the process exists without sending a signal.
	err = syscall.Kill(st.PID, 0)
	return st, err == nil
}

// Signal sends sig to the recorded process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	st, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	return syscall.Kill(st.PID, sig)
}
