package ptosc

import (
	"fmt"
	"strings"
	"time"
)

type (
	// ConfigurationError reports missing or invalid connection parameters, an unsupported
	// underlying adapter or an unusable statement. It is raised before any process is
	// launched.
	ConfigurationError struct {
		Reason string
	}

	// LaunchError reports that the pt-osc binary could not be started, either because it
	// is missing or not executable. Exit status 127 from a wrapper script is mapped here
	// too.
	LaunchError struct {
		Binary string
		Err    error
	}

	// ExecutionError reports that pt-osc ran and failed. Lines holds the sanitized
	// ERROR-classified output, falling back to the tail of the output when the tool
	// failed without printing a recognizable error.
	ExecutionError struct {
		ExitCode int
		Signal   string
		Canceled bool
		Lines    []string
	}

	// TimeoutError reports that pt-osc produced no output for the stall window and was
	// terminated.
	TimeoutError struct {
		Stall time.Duration
		Lines []string
	}
)

// NewConfigurationError returns a ConfigurationError with a formatted reason.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return "percona configuration error: " + e.Reason
}

func (e *LaunchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to launch %s: command not found", e.Binary)
	}

	return fmt.Sprintf("failed to launch %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Error() string {
	var msg string
	switch {
	case e.Canceled:
		msg = "pt-online-schema-change was interrupted"
	case e.Signal != "":
		msg = "pt-online-schema-change terminated by signal " + e.Signal
	case e.ExitCode != 0:
		msg = fmt.Sprintf("pt-online-schema-change exited with status %d", e.ExitCode)
	default:
		msg = "pt-online-schema-change reported an error"
	}

	return withDiagnostics(msg, e.Lines)
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("pt-online-schema-change produced no output for %s and was terminated", e.Stall)
	return withDiagnostics(msg, e.Lines)
}

func withDiagnostics(msg string, lines []string) string {
	if len(lines) == 0 {
		return msg
	}

	return msg + ":\n" + strings.Join(lines, "\n")
}
