package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result is the outcome of a finished command.
type Result struct {
	Output   string
	ExitCode int
}

// Runner executes host commands.
type Runner interface {
	// Run executes a command and waits for it. A non-zero exit is reported
	// in Result.ExitCode; err is only set when the command could not run
	// or ctx expired.
	Run(ctx context.Context, name string, args ...string) (Result, error)

	// Start launches a command without waiting for it to exit.
	Start(name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if name == "" {
		return Result{}, ErrEmptyCommand
	}

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, name, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("%s: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{Output: stdout.String(), ExitCode: exitErr.ExitCode()}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s %s: %w (stderr: %s)",
			name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return Result{Output: stdout.String()}, nil
}

// Start implements Runner. The child is reaped in the background.
func (ExecRunner) Start(name string, args ...string) error {
	if name == "" {
		return ErrEmptyCommand
	}

	command := exec.Command(name, args...)
	if err := command.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go func() { _ = command.Wait() }()
	return nil
}
