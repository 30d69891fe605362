package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Deployment is a fake self-contained publish on disk:
// Root/<rid>/{instrument.sh, app, app.dll}.
type Deployment struct {
	Root        string
	PlatformDir string
}

// NewDeployment creates Root with a single runtime-identifier directory.
func NewDeployment(t *testing.T, rid string) *Deployment {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, rid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create platform dir: %v", err)
	}
	return &Deployment{Root: root, PlatformDir: dir}
}

// WriteFile writes a plain file into the platform directory.
func (d *Deployment) WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(d.PlatformDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// WriteScript writes an executable /bin/sh script into the platform directory.
func (d *Deployment) WriteScript(t *testing.T, name, body string) string {
	t.Helper()
	return WriteScript(t, filepath.Join(d.PlatformDir, name), body)
}

// WriteLauncher writes instrument.sh. It runs its arguments as a child
// rather than exec'ing them, so the app is a grandchild of the harness the
// way a real launcher script leaves it.
func (d *Deployment) WriteLauncher(t *testing.T) string {
	t.Helper()
	return d.WriteScript(t, "instrument.sh", `echo "instrumenting: $*"
"$@"
`)
}

// WriteHelperApp writes the native host "app" and the "app.dll" assembly
// placeholder. The host re-executes the running test binary as the helper app.
func (d *Deployment) WriteHelperApp(t *testing.T, appName string) {
	t.Helper()
	d.WriteScript(t, appName, helperExecLine(t))
	d.WriteFile(t, appName+".dll", "managed assembly placeholder\n")
}

// WriteRuntimeInvoker writes a fake "dotnet" outside the deployment. It
// checks that its first argument is an existing assembly and then runs the
// helper app. It returns the invoker path.
func WriteRuntimeInvoker(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dotnet")
	return WriteScript(t, path, `if [ ! -f "$1" ]; then
  echo "assembly not found: $1" >&2
  exit 90
fi
`+helperExecLine(t))
}

// WriteScript writes an executable /bin/sh script at path.
func WriteScript(t *testing.T, path, body string) string {
	t.Helper()
	content := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("failed to write script %s: %v", path, err)
	}
	return path
}

func helperExecLine(t *testing.T) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("failed to resolve test binary: %v", err)
	}
	return "exec env " + HelperAppEnv + "=1 " + shellQuote(exe) + ` "$@"` + "\n"
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
