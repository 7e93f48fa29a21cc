// Package daemon tracks the background `lr serve` process through a small
// state file holding its PID, port and start time.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// State describes a running server.
type State struct {
	PID     int       `yaml:"pid"`
	Port    int       `yaml:"port,omitempty"`
	Started time.Time `yaml:"started,omitempty"`
}

// PIDFile manages the server state file.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process as the server listening on port.
func (p *PIDFile) Write(port int) error {
	return p.WriteState(State{PID: os.Getpid(), Port: port, Started: time.Now().UTC()})
}

// WriteState writes st to the file.
func (p *PIDFile) WriteState(st State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return os.WriteFile(p.Path, data, 0o644)
}

// Read reads the state from the file. A file holding only a PID is accepted.
func (p *PIDFile) Read() (State, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return State{}, err
	}

	if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
		return State{PID: pid}, nil
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil || st.PID <= 0 {
		return State{}, fmt.Errorf("invalid PID file content in %s", p.Path)
	}
	return st, nil
}

// Remove deletes the state file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// WaitExit polls until the recorded process is gone or timeout elapses.
// It reports whether the process exited.
func (p *PIDFile) WaitExit(timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if _, running := p.IsRunning(); !running {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
