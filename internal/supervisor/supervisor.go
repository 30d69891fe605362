// Package supervisor runs an instrumentation invocation as a child process,
// captures its output as it is produced, and enforces a wall-clock timeout by
// killing the whole process tree.
package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/constants"
	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/launcher"
)

// Options tunes a single run.
type Options struct {
	// Timeout is the wall-clock limit. Zero uses constants.DefaultProcessTimeout.
	Timeout time.Duration
	// Env is added on top of the harness environment.
	Env map[string]string
	// Dir overrides the working directory; empty uses the invocation's platform dir.
	Dir string
	// WaitDelay bounds how long output pipes may stay open after exit.
	WaitDelay time.Duration
	// OnLine, if set, is called for every captured line as it arrives.
	OnLine func(Line)
}

// Supervisor starts and supervises instrumented processes.
type Supervisor struct {
	logger      zerolog.Logger
	killTimeout time.Duration
}

// New creates a supervisor.
func New(logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		logger:      logger.With().Str("component", "supervisor").Logger(),
		killTimeout: constants.DefaultKillTimeout,
	}
}

// Run starts the invocation and blocks until the process exits, the timeout
// elapses, or ctx is cancelled. On timeout or cancellation the process tree is
// killed. A start failure is returned as a LaunchError without waiting.
//
// The returned Process is final; use Outcome to tell a timeout from a failed exit.
func (s *Supervisor) Run(ctx context.Context, inv launcher.Invocation, opts Options) (*Process, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultProcessTimeout
	}
	waitDelay := opts.WaitDelay
	if waitDelay <= 0 {
		waitDelay = constants.DefaultWaitDelay
	}

	id := uuid.New().String()
	logger := s.logger.With().Str("process_id", id).Logger()

	cmd := exec.Command(inv.ScriptPath, inv.Args()...)
	cmd.Dir = opts.Dir
	if cmd.Dir == "" {
		cmd.Dir = inv.Dir
	}
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	out := newOutput(logger, opts.OnLine)
	cmd.Stdout = out.writer(Stdout)
	cmd.Stderr = out.writer(Stderr)

	logger.Info().Str("command", inv.String()).Msg("Running")

	if err := cmd.Start(); err != nil {
		return nil, &harnesserrors.LaunchError{Command: inv.String(), Err: err}
	}

	proc := &Process{
		ID:        id,
		Command:   inv.String(),
		pid:       cmd.Process.Pid,
		startTime: time.Now(),
		timeout:   timeout,
		output:    out,
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var runErr error
	select {
	case err := <-done:
		out.flush()
		proc.finishExited(exitCode(cmd, err))
	case <-timer.C:
		s.terminate(logger, cmd, done, proc, true)
	case <-ctx.Done():
		s.terminate(logger, cmd, done, proc, false)
		runErr = ctx.Err()
	}

	s.logSummary(logger, proc)
	return proc, runErr
}

// terminate kills the process tree unless the process already exited, then
// waits for Wait to release the pipes.
func (s *Supervisor) terminate(logger zerolog.Logger, cmd *exec.Cmd, done <-chan error, proc *Process, timedOut bool) {
	select {
	case err := <-done:
		out := proc.output
		out.flush()
		proc.finishExited(exitCode(cmd, err))
		return
	default:
	}

	if timedOut {
		logger.Warn().Int("pid", cmd.Process.Pid).Dur("timeout", proc.timeout).Msg("Process timed out, killing process tree")
	} else {
		logger.Warn().Int("pid", cmd.Process.Pid).Msg("Run cancelled, killing process tree")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.killTimeout)
	defer cancel()
	killTree(ctx, logger, cmd.Process)

	<-done
	proc.output.flush()
	proc.finishKilled(timedOut)
}

func (s *Supervisor) logSummary(logger zerolog.Logger, proc *Process) {
	event := logger.Info().
		Int("pid", proc.PID()).
		Dur("duration", proc.Duration())
	if code, ok := proc.ExitCode(); ok {
		event = event.Int("exit_code", code)
	} else {
		event = event.Bool("timed_out", proc.TimedOut())
	}
	event.Str("output", proc.Output()).Msg("Process finished")
}

// exitCode extracts the exit status from the result of cmd.Wait.
// A process killed by a signal reports -1.
func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}
