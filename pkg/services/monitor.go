// Package services reports whether a fixed set of host processes is running
// and restarts the ones on an allow-list.
//
// Status is detected fresh on every call with pgrep and ps. Every command runs
// through a Runner with a fixed timeout; a timeout or failure yields status
// "unknown" instead of an error.
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/agentpulse/pkg/logger"
)

// Service statuses.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusUnknown = "unknown"
)

// Restart actions.
const (
	ActionRestart = "restart"
	ActionStop    = "stop"
)

// DefaultTimeout bounds every subprocess call.
const DefaultTimeout = 5 * time.Second

// Definition is a monitored process.
type Definition struct {
	Name        string
	Pattern     string
	Description string
}

// Action is the stop command and optional start command of a restartable
// service.
type Action struct {
	Stop  []string
	Start []string
}

// DefaultServices is the monitored process list.
var DefaultServices = []Definition{
	{Name: "claude", Pattern: "claude", Description: "Claude Code agent session"},
	{Name: "codex", Pattern: "codex", Description: "Codex CLI agent session"},
	{Name: "tmux", Pattern: "tmux", Description: "Terminal multiplexer hosting agent sessions"},
	{Name: "ollama", Pattern: "ollama serve", Description: "Local model server"},
}

// DefaultRestartable is the restart allow-list.
var DefaultRestartable = map[string]Action{
	"ollama": {
		Stop:  []string{"pkill", "-f", "ollama serve"},
		Start: []string{"ollama", "serve"},
	},
}

// ServiceInfo is the detected state of one service.
type ServiceInfo struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	PID         int    `json:"pid,omitempty"`
	Uptime      string `json:"uptime,omitempty"`
	Description string `json:"description"`
}

// RestartResult is the outcome of a restart request.
type RestartResult struct {
	Success   bool      `json:"success"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Config contains monitor configuration.
type Config struct {
	// Timeout applied to each subprocess call. Default: 5s.
	Timeout time.Duration

	// Services to monitor. Default: DefaultServices.
	Services []Definition

	// Restartable is the restart allow-list. Default: DefaultRestartable.
	Restartable map[string]Action

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Monitor lists and restarts services.
type Monitor struct {
	config Config
	runner Runner
	logger logger.Logger
}

// New creates a Monitor. A nil runner means ExecRunner.
func New(cfg Config, runner Runner, log logger.Logger) *Monitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Services == nil {
		cfg.Services = DefaultServices
	}
	if cfg.Restartable == nil {
		cfg.Restartable = DefaultRestartable
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if runner == nil {
		runner = ExecRunner{}
	}

	return &Monitor{config: cfg, runner: runner, logger: log}
}

// List detects the state of every monitored service, in definition order.
func (m *Monitor) List(ctx context.Context) []ServiceInfo {
	infos := make([]ServiceInfo, len(m.config.Services))

	var g errgroup.Group
	for i, def := range m.config.Services {
		i, def := i, def
		g.Go(func() error {
			infos[i] = m.detect(ctx, def)
			return nil
		})
	}
	_ = g.Wait()

	return infos
}

// detect finds the oldest process matching def.Pattern.
func (m *Monitor) detect(ctx context.Context, def Definition) ServiceInfo {
	info := ServiceInfo{Name: def.Name, Status: StatusUnknown, Description: def.Description}

	res, err := m.run(ctx, "pgrep", "-f", "-o", def.Pattern)
	switch {
	case err != nil:
		m.logger.Warn("failed to detect service", "service", def.Name, "error", err)
		return info
	case res.ExitCode == 1:
		// pgrep exits 1 when nothing matches.
		info.Status = StatusStopped
		return info
	case res.ExitCode != 0:
		m.logger.Warn("pgrep failed", "service", def.Name, "exit_code", res.ExitCode)
		return info
	}

	pid, err := strconv.Atoi(firstLine(res.Output))
	if err != nil {
		m.logger.Warn("unexpected pgrep output", "service", def.Name, "output", res.Output)
		return info
	}
	info.Status = StatusRunning
	info.PID = pid
	info.Uptime = m.uptime(ctx, pid)

	return info
}

// uptime returns the humanized elapsed time of pid, or "" if unknown.
func (m *Monitor) uptime(ctx context.Context, pid int) string {
	res, err := m.run(ctx, "ps", "-o", "etimes=", "-p", strconv.Itoa(pid))
	if err != nil || res.ExitCode != 0 {
		return ""
	}

	secs, err := strconv.ParseInt(firstLine(res.Output), 10, 64)
	if err != nil || secs < 0 {
		return ""
	}

	now := m.config.Now()
	return strings.TrimSpace(humanize.RelTime(now.Add(-time.Duration(secs)*time.Second), now, "", ""))
}

// Restart stops and starts an allow-listed service. Names that are not on
// the allow-list are rejected with ErrNotAllowed before any command runs.
// A stop failure is ignored, and the new process is not verified.
func (m *Monitor) Restart(ctx context.Context, name string) (RestartResult, error) {
	action, ok := m.config.Restartable[name]
	if !ok {
		return RestartResult{}, fmt.Errorf("%w: %q", ErrNotAllowed, name)
	}

	result := RestartResult{Success: true, Service: name, Action: ActionStop}

	if len(action.Stop) > 0 {
		res, err := m.run(ctx, action.Stop[0], action.Stop[1:]...)
		if err != nil || res.ExitCode != 0 {
			m.logger.Debug("stop command did not succeed", "service", name, "exit_code", res.ExitCode, "error", err)
		}
	}

	if len(action.Start) > 0 {
		result.Action = ActionRestart
		if err := m.runner.Start(action.Start[0], action.Start[1:]...); err != nil {
			m.logger.Warn("failed to start service", "service", name, "error", err)
			result.Success = false
		}
	}

	result.Timestamp = m.config.Now()
	m.logger.Info("service restarted", "service", name, "action", result.Action, "success", result.Success)

	return result, nil
}

// IsRestartable reports whether name is on the restart allow-list.
func (m *Monitor) IsRestartable(name string) bool {
	_, ok := m.config.Restartable[name]
	return ok
}

func (m *Monitor) run(ctx context.Context, name string, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()
	return m.runner.Run(ctx, name, args...)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
