package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a scenario failure for triage.
type Kind string

// Failure kinds, one per error type below.
const (
	// KindNone marks a passing scenario.
	KindNone                Kind = ""
	KindConfiguration       Kind = "configuration"
	KindInvalidMode         Kind = "invalid_mode"
	KindLaunch              Kind = "launch"
	KindTimeout             Kind = "timeout"
	KindNonZeroExit         Kind = "non_zero_exit"
	KindExpectationMismatch Kind = "expectation_mismatch"
	// KindUnknown is any error outside the taxonomy, such as a cancelled context.
	KindUnknown             Kind = "unknown"
)

// Kinded is implemented by every harness error type.
type Kinded interface {
	error
	Kind() Kind
}

// KindOf returns the kind of the first harness error in err's chain.
// Errors that carry no kind report KindUnknown; nil reports KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var k Kinded
	if stderrors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// ConfigurationError reports a malformed deployment layout or harness config.
// It is always raised before any process is launched.
type ConfigurationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Kind() Kind { return KindConfiguration }

// InvalidModeError reports a launch mode that the platform/runtime pair cannot run.
type InvalidModeError struct {
	Mode     string
	Platform string
	Runtime  string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("launch mode %q is not supported on %s/%s", e.Mode, e.Platform, e.Runtime)
}

func (e *InvalidModeError) Kind() Kind { return KindInvalidMode }

// LaunchError reports that the instrumentation script could not be started.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func (e *LaunchError) Kind() Kind { return KindLaunch }

// TimeoutError reports a process that was still running at the deadline and was killed.
type TimeoutError struct {
	PID     int
	Timeout time.Duration
	Output  string
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("process %d timed out after %s and was killed", e.PID, e.Timeout)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *TimeoutError) Kind() Kind { return KindTimeout }

// NonZeroExitError reports a process that ran to completion with a failure code.
type NonZeroExitError struct {
	PID      int
	ExitCode int
	Output   string
}

func (e *NonZeroExitError) Error() string {
	msg := fmt.Sprintf("process %d exited with non-zero exit code %d", e.PID, e.ExitCode)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *NonZeroExitError) Kind() Kind { return KindNonZeroExit }

// ExpectationMismatchError lists every expected instrumentation library that never
// produced a span.
type ExpectationMismatchError struct {
	Missing  []string
	Received []string
}

func (e *ExpectationMismatchError) Error() string {
	received := "none"
	if len(e.Received) > 0 {
		received = strings.Join(e.Received, ", ")
	}
	return fmt.Sprintf("missing spans from instrumentation libraries: %s (received: %s)",
		strings.Join(e.Missing, ", "), received)
}

func (e *ExpectationMismatchError) Kind() Kind { return KindExpectationMismatch }
