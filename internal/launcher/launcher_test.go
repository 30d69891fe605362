package launcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/deployment"
	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/platform"
)

func mustProfile(t *testing.T, family platform.Family, runtime platform.RuntimeClass) platform.Profile {
	t.Helper()
	p, err := platform.Lookup(family, runtime)
	require.NoError(t, err)
	return p
}

func testLayout(dir string) deployment.Layout {
	return deployment.Layout{OutputRoot: filepath.Dir(dir), PlatformDir: dir}
}

func TestBuildInvocation_AllCombinations(t *testing.T) {
	dir := filepath.Join(string(filepath.Separator), "out", "rid")

	for _, profile := range platform.Profiles() {
		for _, mode := range []Mode{ModeExecutable, ModeManagedAssembly} {
			name := string(profile.Family) + "/" + string(profile.Runtime) + "/" + string(mode)
			t.Run(name, func(t *testing.T) {
				inv, err := BuildInvocation(Request{
					Layout:  testLayout(dir),
					AppName: "TestApplication.Smoke",
					Mode:    mode,
					Profile: profile,
				})

				if mode == ModeManagedAssembly && !profile.DirectAssembly {
					var modeErr *harnesserrors.InvalidModeError
					require.ErrorAs(t, err, &modeErr)
					return
				}
				require.NoError(t, err)

				if profile.Family == platform.Windows {
					assert.True(t, strings.HasSuffix(inv.ScriptPath, "instrument.cmd"), inv.ScriptPath)
				} else {
					assert.True(t, strings.HasSuffix(inv.ScriptPath, "instrument.sh"), inv.ScriptPath)
				}
				for _, p := range inv.Target.Paths() {
					assert.True(t, within(dir, p), "%s not within %s", p, dir)
				}
				assert.Equal(t, mode, inv.Target.Mode())
			})
		}
	}
}

func TestBuildInvocation_Executable(t *testing.T) {
	dir := filepath.Join("out", "win-x64")

	inv, err := BuildInvocation(Request{
		Layout:  testLayout(dir),
		AppName: "app",
		Mode:    ModeExecutable,
		Profile: mustProfile(t, platform.Windows, platform.Net7Plus),
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "instrument.cmd"), inv.ScriptPath)
	assert.Equal(t, []string{filepath.Join(dir, "app.exe")}, inv.Args())

	// A name that already carries the suffix is not doubled.
	inv, err = BuildInvocation(Request{
		Layout:  testLayout(dir),
		AppName: "app.exe",
		Mode:    ModeExecutable,
		Profile: mustProfile(t, platform.Windows, platform.Net7Plus),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "app.exe")}, inv.Args())
}

func TestBuildInvocation_ManagedAssembly(t *testing.T) {
	dir := filepath.Join("out", "linux-x64")

	inv, err := BuildInvocation(Request{
		Layout:  testLayout(dir),
		AppName: "app",
		Mode:    ModeManagedAssembly,
		Profile: mustProfile(t, platform.Unix, platform.Net7Plus),
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "instrument.sh"), inv.ScriptPath)
	assert.Equal(t, []string{"dotnet", filepath.Join(dir, "app.dll")}, inv.Args())
	assert.Equal(t, "dotnet "+filepath.Join(dir, "app.dll"), inv.TargetCommand())

	inv, err = BuildInvocation(Request{
		Layout:         testLayout(dir),
		AppName:        "app",
		Mode:           ModeManagedAssembly,
		Profile:        mustProfile(t, platform.Unix, platform.Net7Plus),
		RuntimeInvoker: "/usr/share/dotnet/dotnet",
	})
	require.NoError(t, err)
	assert.Equal(t, "/usr/share/dotnet/dotnet", inv.Args()[0])
}

func TestBuildInvocation_EmptyAppName(t *testing.T) {
	_, err := BuildInvocation(Request{
		Layout:  testLayout("rid"),
		Mode:    ModeExecutable,
		Profile: mustProfile(t, platform.Unix, platform.Net6),
	})

	var cfgErr *harnesserrors.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCheckMode(t *testing.T) {
	netfx := mustProfile(t, platform.Windows, platform.NetFramework)

	assert.NoError(t, CheckMode(netfx, ModeExecutable))

	err := CheckMode(netfx, ModeManagedAssembly)
	var modeErr *harnesserrors.InvalidModeError
	require.ErrorAs(t, err, &modeErr)
	assert.Equal(t, "managed-assembly", modeErr.Mode)
	assert.Equal(t, "netfx", modeErr.Runtime)

	assert.Error(t, CheckMode(netfx, Mode("container")))
}

func TestAssemblyName(t *testing.T) {
	assert.Equal(t, "app.dll", AssemblyName("app", ".dll"))
	assert.Equal(t, "app.dll", AssemblyName("app.exe", ".dll"))
	assert.Equal(t, "App.dll", AssemblyName("App.EXE", ""))
	assert.Equal(t, "TestApplication.Smoke.dll", AssemblyName("TestApplication.Smoke", ".dll"))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Managed-Assembly")
	require.NoError(t, err)
	assert.Equal(t, ModeManagedAssembly, m)

	_, err = ParseMode("container")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable, managed-assembly")
}

func TestInvocation_Validate(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0o755))
	}

	inv := Invocation{
		ScriptPath: filepath.Join(dir, "instrument.sh"),
		Target:     ExecutableTarget{Path: filepath.Join(dir, "app")},
		Dir:        dir,
	}

	err := inv.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instrumentation script not found")

	write("instrument.sh")
	err = inv.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instrumentation target not found")

	write("app")
	assert.NoError(t, inv.Validate())

	outside := inv
	outside.Target = ManagedAssemblyTarget{Invoker: "dotnet", AssemblyPath: filepath.Join(filepath.Dir(dir), "app.dll")}
	err = outside.Validate()
	var cfgErr *harnesserrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "outside the platform directory")
}

func TestInvocation_StringQuotesSpaces(t *testing.T) {
	inv := Invocation{
		ScriptPath: "/opt/my app/instrument.sh",
		Target:     ManagedAssemblyTarget{Invoker: "dotnet", AssemblyPath: "/opt/my app/app.dll"},
	}

	assert.Equal(t, `"/opt/my app/instrument.sh" dotnet "/opt/my app/app.dll"`, inv.String())
}
