package supervisor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
)

// Process is the record of one supervised run. The supervisor mutates it
// while the child runs; after Run returns it no longer changes.
type Process struct {
	ID      string
	Command string

	mu        sync.RWMutex
	pid       int
	startTime time.Time
	endTime   time.Time
	timeout   time.Duration
	exitCode  *int
	timedOut  bool
	canceled  bool
	output    *output
}

// PID returns the operating system process id of the script.
func (p *Process) PID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pid
}

// Duration returns the wall-clock run time, or the time so far while running.
func (p *Process) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.endTime.IsZero() {
		return time.Since(p.startTime)
	}
	return p.endTime.Sub(p.startTime)
}

// ExitCode returns the exit code and whether the process exited on its own.
func (p *Process) ExitCode() (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.exitCode == nil {
		return 0, false
	}
	return *p.exitCode, true
}

// TimedOut reports whether the process was killed at the deadline.
func (p *Process) TimedOut() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.timedOut
}

// Lines returns a snapshot of the captured output.
func (p *Process) Lines() []Line {
	return p.output.snapshot()
}

// Output renders the captured output, one line per entry, stderr lines tagged.
func (p *Process) Output() string {
	var b strings.Builder
	for _, l := range p.Lines() {
		if l.Stream == Stderr {
			b.WriteString("[stderr] ")
		}
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Outcome classifies the run: nil for exit code 0, a TimeoutError when the
// deadline killed it, a NonZeroExitError otherwise.
func (p *Process) Outcome() error {
	p.mu.RLock()
	pid, timedOut, canceled, timeout, code := p.pid, p.timedOut, p.canceled, p.timeout, p.exitCode
	p.mu.RUnlock()

	switch {
	case timedOut:
		return &harnesserrors.TimeoutError{PID: pid, Timeout: timeout, Output: p.Output()}
	case canceled:
		return fmt.Errorf("process %d was killed because the run was cancelled", pid)
	case code == nil:
		return fmt.Errorf("process %d has not finished", pid)
	case *code != 0:
		return &harnesserrors.NonZeroExitError{PID: pid, ExitCode: *code, Output: p.Output()}
	default:
		return nil
	}
}

// Summary renders the process id, exit status and full output for diagnostics.
func (p *Process) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Running: %s\n", p.Command)
	fmt.Fprintf(&b, "ProcessId: %d\n", p.PID())
	code, exited := p.ExitCode()
	switch {
	case exited:
		fmt.Fprintf(&b, "Exit Code: %d\n", code)
	case p.TimedOut():
		fmt.Fprintf(&b, "Exit Code: none (timed out after %s)\n", p.timeout)
	default:
		b.WriteString("Exit Code: none\n")
	}
	b.WriteString("Output:\n")
	b.WriteString(p.Output())
	return b.String()
}

func (p *Process) finishExited(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endTime = time.Now()
	p.exitCode = &code
}

func (p *Process) finishKilled(timedOut bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endTime = time.Now()
	p.timedOut = timedOut
	p.canceled = !timedOut
}
