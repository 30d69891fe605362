// Package launcher builds the command line that starts an application under
// the instrumentation launcher script of a self-contained deployment.
package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/deployment"
	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/platform"
)

// ScriptBaseName is the launcher script name without its platform suffix.
const ScriptBaseName = "instrument"

// DefaultRuntimeInvoker starts a managed assembly when none is configured.
const DefaultRuntimeInvoker = "dotnet"

// Request describes the invocation to build.
type Request struct {
	Layout  deployment.Layout
	AppName string
	Mode    Mode
	Profile platform.Profile
	// RuntimeInvoker replaces DefaultRuntimeInvoker for ModeManagedAssembly.
	RuntimeInvoker string
}

type builder func(req Request) (Target, error)

// builders maps each mode to its target constructor. A new launch mode is a
// new Target type plus one entry here.
var builders = map[Mode]builder{
	ModeExecutable:      buildExecutable,
	ModeManagedAssembly: buildManagedAssembly,
}

// supported reports whether the profile can run the mode at all.
var supported = map[Mode]func(platform.Profile) bool{
	ModeExecutable:      func(platform.Profile) bool { return true },
	ModeManagedAssembly: func(p platform.Profile) bool { return p.DirectAssembly },
}

func modeNames() []string {
	names := make([]string, 0, len(builders))
	for m := range builders {
		names = append(names, string(m))
	}
	sort.Strings(names)
	return names
}

// CheckMode returns an InvalidModeError when the profile cannot run mode.
// Config validation calls it so an unsupported combination never reaches launch.
func CheckMode(profile platform.Profile, mode Mode) error {
	ok, known := supported[mode]
	if !known || !ok(profile) {
		return &harnesserrors.InvalidModeError{
			Mode:     string(mode),
			Platform: string(profile.Family),
			Runtime:  string(profile.Runtime),
		}
	}
	return nil
}

// BuildInvocation resolves the script and target paths for req.
func BuildInvocation(req Request) (Invocation, error) {
	if err := CheckMode(req.Profile, req.Mode); err != nil {
		return Invocation{}, err
	}
	if strings.TrimSpace(req.AppName) == "" {
		return Invocation{}, &harnesserrors.ConfigurationError{Reason: "application name is empty"}
	}

	target, err := builders[req.Mode](req)
	if err != nil {
		return Invocation{}, err
	}

	return Invocation{
		ScriptPath: req.Layout.Path(ScriptBaseName + req.Profile.ScriptSuffix),
		Target:     target,
		Dir:        req.Layout.PlatformDir,
	}, nil
}

func buildExecutable(req Request) (Target, error) {
	name := req.AppName
	if suffix := req.Profile.ExecutableSuffix; suffix != "" && !strings.HasSuffix(strings.ToLower(name), suffix) {
		name += suffix
	}
	return ExecutableTarget{Path: req.Layout.Path(name)}, nil
}

func buildManagedAssembly(req Request) (Target, error) {
	invoker := req.RuntimeInvoker
	if invoker == "" {
		invoker = DefaultRuntimeInvoker
	}
	return ManagedAssemblyTarget{
		Invoker:      invoker,
		AssemblyPath: req.Layout.Path(AssemblyName(req.AppName, req.Profile.AssemblySuffix)),
	}, nil
}

// AssemblyName derives the managed assembly file name from the host name:
// "app.exe" becomes "app.dll" and "app" becomes "app.dll".
func AssemblyName(hostName, assemblySuffix string) string {
	if assemblySuffix == "" {
		assemblySuffix = ".dll"
	}
	if strings.HasSuffix(strings.ToLower(hostName), ".exe") {
		return hostName[:len(hostName)-len(".exe")] + assemblySuffix
	}
	return hostName + assemblySuffix
}

// Invocation is a fully resolved script call.
type Invocation struct {
	// ScriptPath is the instrumentation launcher script.
	ScriptPath string
	// Target is the command the script wraps.
	Target Target
	// Dir is the platform directory; the process runs with it as working directory.
	Dir string
}

// Args returns the arguments passed to the script.
func (i Invocation) Args() []string {
	if i.Target == nil {
		return nil
	}
	return i.Target.Argv()
}

// TargetCommand renders the target as a single argument string.
func (i Invocation) TargetCommand() string {
	return joinArgs(i.Args())
}

// String renders the whole command line.
func (i Invocation) String() string {
	return joinArgs(append([]string{i.ScriptPath}, i.Args()...))
}

// Validate checks the invocation against the filesystem: the script and every
// target file must exist inside the platform directory.
func (i Invocation) Validate() error {
	if err := requireRegularFile(i.ScriptPath, "instrumentation script"); err != nil {
		return err
	}
	if i.Target == nil {
		return &harnesserrors.ConfigurationError{Reason: "invocation has no target"}
	}
	for _, p := range i.Target.Paths() {
		if !within(i.Dir, p) {
			return &harnesserrors.ConfigurationError{
				Path:   p,
				Reason: fmt.Sprintf("target is outside the platform directory %s", i.Dir),
			}
		}
		if err := requireRegularFile(p, "instrumentation target"); err != nil {
			return err
		}
	}
	return nil
}

func requireRegularFile(path, what string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &harnesserrors.ConfigurationError{Path: path, Reason: what + " not found", Err: err}
	}
	if info.IsDir() {
		return &harnesserrors.ConfigurationError{Path: path, Reason: what + " is a directory"}
	}
	return nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"") {
			quoted[i] = `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}
