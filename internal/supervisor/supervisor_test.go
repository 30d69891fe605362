package supervisor

import (
	"context"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/launcher"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/testutil"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("supervisor tests use /bin/sh fixtures")
	}
}

// fixture writes instrument.sh plus an "app" script with the given body.
func fixture(t *testing.T, appBody string) launcher.Invocation {
	t.Helper()
	d := testutil.NewDeployment(t, "linux-x64")
	script := d.WriteLauncher(t)
	app := d.WriteScript(t, "app", appBody)
	return launcher.Invocation{
		ScriptPath: script,
		Target:     launcher.ExecutableTarget{Path: app},
		Dir:        d.PlatformDir,
	}
}

func TestRun_ExitZero(t *testing.T) {
	skipOnWindows(t)
	inv := fixture(t, `echo hello
echo warning >&2
printf 'no newline'
`)

	proc, err := New(testutil.NewTestLogger(t)).Run(context.Background(), inv, Options{Timeout: 10 * time.Second})
	require.NoError(t, err)

	code, exited := proc.ExitCode()
	assert.True(t, exited)
	assert.Equal(t, 0, code)
	assert.False(t, proc.TimedOut())
	assert.NoError(t, proc.Outcome())
	assert.Positive(t, proc.PID())
	assert.NotEmpty(t, proc.ID)

	out := proc.Output()
	assert.Contains(t, out, "instrumenting: "+inv.Args()[0])
	assert.Contains(t, out, "hello\n")
	assert.Contains(t, out, "[stderr] warning\n")
	assert.Contains(t, out, "no newline\n", "trailing partial line is flushed")

	summary := proc.Summary()
	assert.Contains(t, summary, "ProcessId: "+strconv.Itoa(proc.PID()))
	assert.Contains(t, summary, "Exit Code: 0")
	assert.Contains(t, summary, "hello")
}

func TestRun_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	inv := fixture(t, `echo failing
exit 3
`)

	proc, err := New(testutil.NewTestLogger(t)).Run(context.Background(), inv, Options{Timeout: 10 * time.Second})
	require.NoError(t, err)

	code, exited := proc.ExitCode()
	assert.True(t, exited)
	assert.Equal(t, 3, code)
	assert.False(t, proc.TimedOut())

	outcome := proc.Outcome()
	var exitErr *harnesserrors.NonZeroExitError
	require.ErrorAs(t, outcome, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Contains(t, exitErr.Output, "failing")
	assert.Equal(t, harnesserrors.KindNonZeroExit, harnesserrors.KindOf(outcome))
}

func TestRun_TimeoutKillsProcessTree(t *testing.T) {
	skipOnWindows(t)
	inv := fixture(t, `sleep 60 &
echo "child=$!"
wait
`)

	start := time.Now()
	proc, err := New(testutil.NewTestLogger(t)).Run(context.Background(), inv, Options{
		Timeout:   500 * time.Millisecond,
		WaitDelay: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.True(t, proc.TimedOut())
	_, exited := proc.ExitCode()
	assert.False(t, exited, "exit code stays unset on timeout")

	outcome := proc.Outcome()
	var timeoutErr *harnesserrors.TimeoutError
	require.ErrorAs(t, outcome, &timeoutErr)
	assert.Equal(t, 500*time.Millisecond, timeoutErr.Timeout)
	assert.Contains(t, proc.Summary(), "timed out after 500ms")

	// Partial output written before the kill is kept.
	match := regexp.MustCompile(`child=(\d+)`).FindStringSubmatch(proc.Output())
	require.Len(t, match, 2, "output: %s", proc.Output())
	childPID, err := strconv.Atoi(match[1])
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !alive(int32(childPID))
	}, 5*time.Second, 50*time.Millisecond, "grandchild %d survived the kill", childPID)
}

func TestRun_LaunchError(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	inv := launcher.Invocation{
		ScriptPath: filepath.Join(dir, "instrument.sh"),
		Target:     launcher.ExecutableTarget{Path: filepath.Join(dir, "app")},
		Dir:        dir,
	}

	start := time.Now()
	proc, err := New(testutil.NewTestLogger(t)).Run(context.Background(), inv, Options{Timeout: time.Minute})

	assert.Nil(t, proc)
	var launchErr *harnesserrors.LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Contains(t, launchErr.Command, "instrument.sh")
	assert.Less(t, time.Since(start), 5*time.Second, "launch errors do not wait for the timeout")
}

func TestRun_ContextCancel(t *testing.T) {
	skipOnWindows(t)
	inv := fixture(t, `echo started
sleep 60
`)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	proc, err := New(testutil.NewTestLogger(t)).Run(ctx, inv, Options{Timeout: time.Minute, WaitDelay: 2 * time.Second})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, proc)

	assert.False(t, proc.TimedOut())
	_, exited := proc.ExitCode()
	assert.False(t, exited)
	assert.Error(t, proc.Outcome())
	assert.Equal(t, harnesserrors.KindUnknown, harnesserrors.KindOf(proc.Outcome()))
}

func TestRun_EnvAndStreaming(t *testing.T) {
	skipOnWindows(t)
	inv := fixture(t, `echo "endpoint=$OTEL_EXPORTER_OTLP_ENDPOINT"
echo "cwd=$(pwd)"
`)

	var mu sync.Mutex
	var streamed []Line
	proc, err := New(testutil.NewTestLogger(t)).Run(context.Background(), inv, Options{
		Timeout: 10 * time.Second,
		Env:     map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "http://127.0.0.1:4318"},
		OnLine: func(l Line) {
			mu.Lock()
			streamed = append(streamed, l)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.NoError(t, proc.Outcome())

	assert.Contains(t, proc.Output(), "endpoint=http://127.0.0.1:4318")

	resolvedDir, err := filepath.EvalSymlinks(inv.Dir)
	require.NoError(t, err)
	assert.Regexp(t, "cwd=("+regexp.QuoteMeta(inv.Dir)+"|"+regexp.QuoteMeta(resolvedDir)+")", proc.Output())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, proc.Lines(), streamed)
}

func alive(pid int32) bool {
	p, err := process.NewProcess(pid)
	if err != nil {
		return false
	}
	status, err := p.Status()
	if err != nil {
		return false
	}
	for _, s := range status {
		if s == process.Zombie {
			return false
		}
	}
	return true
}
