package launcher

import (
	"fmt"
	"strings"
)

// Mode selects how the instrumentation script starts the application.
type Mode string

const (
	// ModeExecutable runs the native host executable.
	ModeExecutable Mode = "executable"
	// ModeManagedAssembly runs the managed assembly through a runtime invoker.
	ModeManagedAssembly Mode = "managed-assembly"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := builders[m]; !ok {
		return "", fmt.Errorf("unknown launch mode %q (want one of %s)", s, strings.Join(modeNames(), ", "))
	}
	return m, nil
}

// Target is the command the instrumentation script wraps.
type Target interface {
	// Mode reports the launch mode that produced the target.
	Mode() Mode
	// Argv is the argument vector passed to the script after its own path.
	Argv() []string
	// Paths lists the deployment files the target refers to.
	Paths() []string
}

// ExecutableTarget runs the app's native host binary.
type ExecutableTarget struct {
	Path string
}

// Mode returns ModeExecutable.
func (t ExecutableTarget) Mode() Mode { return ModeExecutable }

// Argv returns the host path alone.
func (t ExecutableTarget) Argv() []string { return []string{t.Path} }

// Paths returns the host path.
func (t ExecutableTarget) Paths() []string { return []string{t.Path} }

// ManagedAssemblyTarget runs the app's assembly with a runtime invoker such as "dotnet".
type ManagedAssemblyTarget struct {
	Invoker      string
	AssemblyPath string
}

// Mode returns ModeManagedAssembly.
func (t ManagedAssemblyTarget) Mode() Mode { return ModeManagedAssembly }

// Argv returns the invoker followed by the assembly path.
func (t ManagedAssemblyTarget) Argv() []string { return []string{t.Invoker, t.AssemblyPath} }

// Paths returns the assembly path. The invoker is not part of the deployment.
func (t ManagedAssemblyTarget) Paths() []string { return []string{t.AssemblyPath} }
