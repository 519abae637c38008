// Package system runs host-level commands (shutdown, restart) configured
// through environment variables. Commands go through the executor so they
// cannot race a capture or a settings round trip for the device.
package system

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/camera-control/ccc/internal/executor"
)

// ErrUnknownCommand indicates a name with no configured command line.
var ErrUnknownCommand = errors.New("UNKNOWN_COMMAND")

// Environment variables holding the shell lines for each supported command.
const (
	ShutdownEnv = "SHUTDOWN_CMD"
	RestartEnv  = "RESTART_CMD"
)

// DefaultRunTimeout bounds a system command's execution.
const DefaultRunTimeout = 30 * time.Second

// Runner is the executor-facing contract the manager needs.
type Runner interface {
	Submit(job executor.Job) error
	Wait(timeout time.Duration) (executor.Result, error)
}

var _ Runner = (*executor.Executor)(nil)

// Manager maps command names to configured shell lines.
type Manager struct {
	runner   Runner
	commands map[string]string
	timeout  time.Duration
}

// NewManager creates a manager with an explicit command map.
func NewManager(runner Runner, commands map[string]string, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	m := &Manager{
		runner:   runner,
		commands: make(map[string]string),
		timeout:  timeout,
	}
	for name, line := range commands {
		if line != "" {
			m.commands[name] = line
		}
	}
	return m
}

// NewManagerFromEnv picks up shutdown/restart lines from the environment.
// Unset variables simply leave the command unsupported.
func NewManagerFromEnv(runner Runner) *Manager {
	return NewManager(runner, map[string]string{
		"shutdown": os.Getenv(ShutdownEnv),
		"restart":  os.Getenv(RestartEnv),
	}, DefaultRunTimeout)
}

// Supported returns the configured command names in sorted order.
func (m *Manager) Supported() []string {
	names := make([]string, 0, len(m.commands))
	for name := range m.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the named command through the executor and waits for it.
// A non-zero exit is surfaced as an error; the slot is not queued for
// (zero admission timeout), so a busy device fails fast.
func (m *Manager) Run(name string) error {
	line, ok := m.commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	job := executor.Job{
		Args:       []string{"sh", "-c", line},
		RunTimeout: m.timeout,
	}
	if err := m.runner.Submit(job); err != nil {
		return err
	}
	res, err := m.runner.Wait(m.timeout)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s exited with code %d: %s", name, res.ExitCode, res.Stderr)
	}
	return nil
}
