package deploy

import (
	"strings"
	"testing"
)

type testLogger struct {
	logs []string
}

func (l *testLogger) Debugf(format string, args ...interface{}) {
	l.logs = append(l.logs, format)
}

func TestNewExecutor(t *testing.T) {
	e := NewExecutor(false)

	if e.DryRun {
		t.Error("Expected DryRun false")
	}
	if e.Logger == nil {
		t.Error("Expected a default logger")
	}
	if e.CommandBuilder == nil {
		t.Error("Expected a default command builder")
	}
}

func TestExecutor_SetLogger(t *testing.T) {
	e := NewExecutor(false)
	logger := &testLogger{}
	e.SetLogger(logger)

	// A dry run returns before logging, so the new logger records nothing.
	e.DryRun = true
	e.Run("echo test")

	if len(logger.logs) != 0 {
		t.Errorf("Expected dry-run to skip logging, got: %v", logger.logs)
	}

	// SetLogger with nil should not panic
	e.SetLogger(nil)
}

func TestExecutor_Run_DryRun(t *testing.T) {
	e := NewExecutor(true)
	output, err := e.Run("echo hello")

	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "[DRY-RUN]") {
		t.Errorf("Expected dry-run output, got: %s", output)
	}
	if !strings.Contains(output, "echo hello") {
		t.Errorf("Expected command in output, got: %s", output)
	}
}

func TestExecutor_Run_Local(t *testing.T) {
	e := NewExecutor(false)
	output, err := e.Run("echo hello")

	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if strings.TrimSpace(output) != "hello" {
		t.Errorf("Expected 'hello', got: %s", output)
	}
}

func TestExecutor_Run_LocalError(t *testing.T) {
	e := NewExecutor(false)
	_, err := e.Run("exit 1")

	if err == nil {
		t.Error("Expected error for failed command")
	}
}

func TestExecutor_RunSudo_Local(t *testing.T) {
	// Test with DryRun to verify the command format without requiring
	// an actual sudo prompt.
	e := NewExecutor(true)
	output, _ := e.RunSudo("echo test")

	if !strings.Contains(output, "sudo") {
		t.Errorf("Expected sudo in command, got: %s", output)
	}
}

func TestExecutor_RunSudo_DryRun(t *testing.T) {
	e := NewExecutor(true)
	output, err := e.RunSudo("cat /etc/passwd")

	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "[DRY-RUN]") {
		t.Errorf("Expected dry-run output, got: %s", output)
	}
	if !strings.Contains(output, "sudo") {
		t.Errorf("Expected sudo in output, got: %s", output)
	}
}

func TestLogger_NopLogger(t *testing.T) {
	// Test that nopLogger doesn't panic
	logger := nopLogger{}
	logger.Debugf("test %s", "message")
}
