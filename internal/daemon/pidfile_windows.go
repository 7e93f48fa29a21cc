//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// IsRunning reports the recorded state and whether its process is alive.
func (p *PIDFile) IsRunning() (State, bool) {
	st, err := p.Read()
	if err != nil {
		return State{}, false
	}
	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return st, false
	}
	// FindProcess always succeeds on Windows.
	err = proc.Signal(syscall.Signal(0))
	return st, err == nil
}

// Signal sends sig to the recorded process. Only SIGKILL is reliable on Windows.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	st, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return fmt.Errorf("find process %d: %w", st.PID, err)
	}
	return proc.Signal(sig)
}
