package scenario

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/launcher"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/platform"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.RunHelperAppIfRequested()
	os.Exit(m.Run())
}

// linuxDeployment publishes a fake linux-x64 app whose host re-runs this
// test binary as the instrumented application.
func linuxDeployment(t *testing.T) (*testutil.Deployment, Options) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("scenario tests use /bin/sh fixtures")
	}

	d := testutil.NewDeployment(t, "linux-x64")
	d.WriteLauncher(t)
	d.WriteHelperApp(t, "app")

	return d, Options{
		OutputRoot:     d.Root,
		AppName:        "app",
		Family:         platform.Unix,
		Runtime:        platform.Net7Plus,
		RuntimeInvoker: testutil.WriteRuntimeInvoker(t),
		Timeout:        30 * time.Second,
		DrainWindow:    5 * time.Second,
		WaitDelay:      2 * time.Second,
		Env: map[string]string{
			testutil.HelperScopesEnv: platform.LibrarySystemNetHTTP,
		},
	}
}

func TestDriver_LinuxScenarios(t *testing.T) {
	tests := []struct {
		name string
		mode launcher.Mode
	}{
		{"executable", launcher.ModeExecutable},
		{"managed assembly", launcher.ModeManagedAssembly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, opts := linuxDeployment(t)

			res := NewDriver(opts, testutil.NewTestLoggerWithOutput(t)).Run(context.Background(), Scenario{Mode: tt.mode})
			require.NoError(t, res.Err, res.Summary)

			assert.True(t, res.Passed())
			assert.Equal(t, harnesserrors.KindNone, res.Kind)
			assert.Equal(t, string(tt.mode), res.Name)
			assert.Equal(t, "linux-x64", res.RuntimeIdentifier)
			assert.Equal(t, platform.Unix, res.Platform)
			assert.Equal(t, platform.Net7Plus, res.Runtime)
			assert.Contains(t, res.Command, filepath.Join(d.PlatformDir, "instrument.sh"))
			assert.NotEmpty(t, res.RunID)

			require.NotNil(t, res.ExitCode)
			assert.Equal(t, 0, *res.ExitCode)
			assert.Positive(t, res.PID)
			assert.False(t, res.TimedOut)

			assert.Equal(t, []string{platform.LibrarySystemNetHTTP}, res.Expected)
			assert.Contains(t, res.Received, platform.LibrarySystemNetHTTP)
			assert.Empty(t, res.Missing)
			assert.Contains(t, res.Summary, "=============Http===============")
			assert.GreaterOrEqual(t, res.Stats.TraceBatches, int64(1))
		})
	}
}

func TestDriver_ManagedAssemblyPassesAssemblyPath(t *testing.T) {
	d, opts := linuxDeployment(t)

	res := NewDriver(opts, zerolog.Nop()).Run(context.Background(), Scenario{Mode: launcher.ModeManagedAssembly})
	require.NoError(t, res.Err, res.Summary)
	assert.Contains(t, res.Summary, "args: "+filepath.Join(d.PlatformDir, "app.dll"))
}

func TestDriver_NonZeroExit(t *testing.T) {
	_, opts := linuxDeployment(t)
	opts.Env[testutil.HelperExitCodeEnv] = "3"

	res := NewDriver(opts, zerolog.Nop()).Run(context.Background(), Scenario{Mode: launcher.ModeExecutable})

	assert.False(t, res.Passed())
	assert.Equal(t, harnesserrors.KindNonZeroExit, res.Kind)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 3, *res.ExitCode)
	assert.Contains(t, res.Summary, "Exit Code: 3")
	assert.Contains(t, res.Summary, "exiting with 3")
	assert.Empty(t, res.Missing, "expectations are not asserted after a failed exit")
}

func TestDriver_TimeoutNeverAsserts(t *testing.T) {
	_, opts := linuxDeployment(t)
	opts.Timeout = 3 * time.Second
	opts.Env[testutil.HelperSleepEnv] = "60s"
	opts.Env[testutil.HelperScopesEnv] = ""

	start := time.Now()
	res := NewDriver(opts, zerolog.Nop()).Run(context.Background(), Scenario{Mode: launcher.ModeExecutable})
	assert.Less(t, time.Since(start), 20*time.Second)

	assert.Equal(t, harnesserrors.KindTimeout, res.Kind)
	assert.True(t, res.TimedOut)
	assert.Nil(t, res.ExitCode)
	assert.Empty(t, res.Missing)
	assert.Contains(t, res.Summary, "timed out after 3s")
	assert.Contains(t, res.Summary, "sleeping", "partial output is kept")
}

func TestDriver_MissingLibrary(t *testing.T) {
	_, opts := linuxDeployment(t)
	opts.DrainWindow = 300 * time.Millisecond
	opts.Env[testutil.HelperScopesEnv] = platform.LibrarySystemNetHTTP + ",A"

	res := NewDriver(opts, zerolog.Nop()).Run(context.Background(), Scenario{
		Name:              "extra",
		Mode:              launcher.ModeExecutable,
		ExtraExpectations: []string{"B"},
	})

	assert.Equal(t, harnesserrors.KindExpectationMismatch, res.Kind)
	assert.Equal(t, []string{"B"}, res.Missing)
	assert.Equal(t, []string{"A", platform.LibrarySystemNetHTTP}, res.Received)
	assert.Contains(t, res.Err.Error(), "B")
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
}

func TestDriver_FailsBeforeLaunch(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(t *testing.T, d *testutil.Deployment, opts *Options)
		mode     launcher.Mode
		wantKind harnesserrors.Kind
	}{
		{
			name: "managed assembly on .NET Framework",
			mutate: func(t *testing.T, d *testutil.Deployment, opts *Options) {
				opts.Family = platform.Windows
				opts.Runtime = platform.NetFramework
			},
			mode:     launcher.ModeManagedAssembly,
			wantKind: harnesserrors.KindInvalidMode,
		},
		{
			name: ".NET Framework on unix",
			mutate: func(t *testing.T, d *testutil.Deployment, opts *Options) {
				opts.Runtime = platform.NetFramework
			},
			mode:     launcher.ModeExecutable,
			wantKind: harnesserrors.KindConfiguration,
		},
		{
			name: "ambiguous deployment",
			mutate: func(t *testing.T, d *testutil.Deployment, opts *Options) {
				require.NoError(t, os.Mkdir(filepath.Join(d.Root, "win-x64"), 0o755))
			},
			mode:     launcher.ModeExecutable,
			wantKind: harnesserrors.KindConfiguration,
		},
		{
			name: "missing launcher script",
			mutate: func(t *testing.T, d *testutil.Deployment, opts *Options) {
				require.NoError(t, os.Remove(filepath.Join(d.PlatformDir, "instrument.sh")))
			},
			mode:     launcher.ModeExecutable,
			wantKind: harnesserrors.KindConfiguration,
		},
		{
			name: "missing assembly",
			mutate: func(t *testing.T, d *testutil.Deployment, opts *Options) {
				require.NoError(t, os.Remove(filepath.Join(d.PlatformDir, "app.dll")))
			},
			mode:     launcher.ModeManagedAssembly,
			wantKind: harnesserrors.KindConfiguration,
		},
		{
			name: "unknown mode",
			mutate: func(t *testing.T, d *testutil.Deployment, opts *Options) {
			},
			mode:     launcher.Mode("service"),
			wantKind: harnesserrors.KindInvalidMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, opts := linuxDeployment(t)
			tt.mutate(t, d, &opts)

			res := NewDriver(opts, zerolog.Nop()).Run(context.Background(), Scenario{Mode: tt.mode})

			assert.Equal(t, tt.wantKind, res.Kind, "err: %v", res.Err)
			assert.Zero(t, res.PID, "no process is launched")
			assert.Empty(t, res.Summary)
		})
	}
}

func TestDriver_RunAll(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			_, opts := linuxDeployment(t)
			scenarios := []Scenario{
				{Name: "exe", Mode: launcher.ModeExecutable},
				{Name: "dll", Mode: launcher.ModeManagedAssembly},
				{Name: "missing", Mode: launcher.ModeExecutable, ExtraExpectations: []string{"B"}},
			}
			opts.DrainWindow = time.Second

			results := NewDriver(opts, zerolog.Nop()).RunAll(context.Background(), scenarios, parallel)
			require.Len(t, results, 3)

			for i, sc := range scenarios {
				assert.Equal(t, sc.Name, results[i].Name)
			}
			assert.True(t, results[0].Passed(), results[0].Summary)
			assert.True(t, results[1].Passed(), results[1].Summary)
			assert.Equal(t, harnesserrors.KindExpectationMismatch, results[2].Kind)

			passed, failed := Counts(results)
			assert.Equal(t, 2, passed)
			assert.Equal(t, 1, failed)
		})
	}
}

func TestDriver_ContextCancelled(t *testing.T) {
	_, opts := linuxDeployment(t)
	opts.Env[testutil.HelperSleepEnv] = "60s"

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(time.Second, cancel)

	res := NewDriver(opts, zerolog.Nop()).Run(ctx, Scenario{Mode: launcher.ModeExecutable})
	require.ErrorIs(t, res.Err, context.Canceled)
	assert.False(t, res.TimedOut)
	assert.NotEmpty(t, res.Summary)
}
