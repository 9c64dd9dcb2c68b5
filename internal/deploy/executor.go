// Package deploy provides command execution utilities for local
// container-runtime invocations.
package deploy

import "fmt"

// Logger defines the interface for debug logging.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// nopLogger is a no-op logger implementation.
type nopLogger struct{}

func (n nopLogger) Debugf(format string, args ...interface{}) {}

// Executor runs shell commands against the local host, through an
// injectable CommandBuilder so tests never spawn a real shell.
type Executor struct {
	DryRun         bool
	Logger         Logger
	CommandBuilder CommandBuilder
}

// NewExecutor creates a new local command executor.
func NewExecutor(dryRun bool) *Executor {
	return &Executor{
		DryRun:         dryRun,
		Logger:         nopLogger{},
		CommandBuilder: NewRealCommandBuilder(),
	}
}

// SetCommandBuilder sets a custom command builder for dependency injection.
// This enables unit testing without real shell execution.
func (e *Executor) SetCommandBuilder(builder CommandBuilder) {
	if builder != nil {
		e.CommandBuilder = builder
	}
}

// SetLogger sets the debug logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	if logger != nil {
		e.Logger = logger
	}
}

// Run executes command on the local host.
func (e *Executor) Run(command string) (string, error) {
	if e.DryRun {
		return fmt.Sprintf("[DRY-RUN] Would execute: %s", command), nil
	}

	e.Logger.Debugf("Executing: %s", command)

	output, err := e.runLocal(command)
	if err != nil {
		e.Logger.Debugf("Command failed: %v, output: %s", err, output)
	}
	return output, err
}

// RunSudo executes command with sudo prepended.
func (e *Executor) RunSudo(command string) (string, error) {
	if e.DryRun {
		return fmt.Sprintf("[DRY-RUN] Would execute (sudo): %s", command), nil
	}

	sudoCmd := fmt.Sprintf("sudo %s", command)
	e.Logger.Debugf("Executing (sudo): %s", command)

	output, err := e.runLocal(sudoCmd)
	if err != nil {
		e.Logger.Debugf("Sudo command failed: %v, output: %s", err, output)
	}
	return output, err
}

func (e *Executor) runLocal(command string) (string, error) {
	cmd := e.CommandBuilder.BuildShellCommand(command)
	output, err := cmd.Run()
	return string(output), err
}
