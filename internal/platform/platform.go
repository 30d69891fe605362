// Package platform holds the table of per-platform, per-runtime launch facts:
// binary and script suffixes, whether a managed assembly can be invoked
// directly, and which instrumentation library is expected to emit HTTP spans.
//
// The table is resolved once at scenario setup so no other package branches on
// the host operating system.
package platform

import (
	"fmt"
	"sort"
	"strings"

	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
)

// Family groups operating systems that share launch conventions.
type Family string

const (
	// Windows uses .exe hosts and .cmd launcher scripts.
	Windows Family = "windows"
	// Unix covers Linux and macOS: extensionless hosts and .sh scripts.
	Unix    Family = "unix"
)

// RuntimeClass groups runtime versions that share an HTTP instrumentation library.
type RuntimeClass string

const (
	// NetFramework is the Windows-only .NET Framework.
	NetFramework RuntimeClass = "netfx"
	// Net6 covers .NET runtimes older than 7, instrumented through the contrib HttpClient library.
	Net6 RuntimeClass = "net6"
	// Net7Plus covers .NET 7 and later, where System.Net.Http emits activities natively.
	Net7Plus RuntimeClass = "net7plus"
)

// Instrumentation library names reported as the OTLP instrumentation scope.
const (
	LibraryHTTPWebRequest = "OpenTelemetry.Instrumentation.Http.HttpWebRequest"
	LibraryHTTPClient     = "OpenTelemetry.Instrumentation.Http.HttpClient"
	LibrarySystemNetHTTP  = "System.Net.Http"
)

// Profile is one row of the launch table.
type Profile struct {
	Family  Family
	Runtime RuntimeClass

	// ExecutableSuffix is appended to the app name to form the native host path.
	ExecutableSuffix string
	// ScriptSuffix is appended to "instrument" to form the launcher script name.
	ScriptSuffix string
	// AssemblySuffix is the managed assembly extension.
	AssemblySuffix string
	// DirectAssembly reports whether the assembly may be run through a runtime invoker.
	DirectAssembly bool
	// ExpectedLibraries are the instrumentation libraries that must report spans.
	ExpectedLibraries []string
}

type key struct {
	family  Family
	runtime RuntimeClass
}

var table = map[key]Profile{
	{Windows, NetFramework}: {
		ExecutableSuffix:  ".exe",
		ScriptSuffix:      ".cmd",
		AssemblySuffix:    ".dll",
		DirectAssembly:    false,
		ExpectedLibraries: []string{LibraryHTTPWebRequest},
	},
	{Windows, Net6}: {
		ExecutableSuffix:  ".exe",
		ScriptSuffix:      ".cmd",
		AssemblySuffix:    ".dll",
		DirectAssembly:    true,
		ExpectedLibraries: []string{LibraryHTTPClient},
	},
	{Windows, Net7Plus}: {
		ExecutableSuffix:  ".exe",
		ScriptSuffix:      ".cmd",
		AssemblySuffix:    ".dll",
		DirectAssembly:    true,
		ExpectedLibraries: []string{LibrarySystemNetHTTP},
	},
	{Unix, Net6}: {
		ExecutableSuffix:  "",
		ScriptSuffix:      ".sh",
		AssemblySuffix:    ".dll",
		DirectAssembly:    true,
		ExpectedLibraries: []string{LibraryHTTPClient},
	},
	{Unix, Net7Plus}: {
		ExecutableSuffix:  "",
		ScriptSuffix:      ".sh",
		AssemblySuffix:    ".dll",
		DirectAssembly:    true,
		ExpectedLibraries: []string{LibrarySystemNetHTTP},
	},
}

// Lookup returns the profile for a family and runtime class.
// Unknown combinations, such as .NET Framework on Unix, are configuration errors.
func Lookup(family Family, runtime RuntimeClass) (Profile, error) {
	p, ok := table[key{family, runtime}]
	if !ok {
		return Profile{}, &harnesserrors.ConfigurationError{
			Reason: fmt.Sprintf("no launch profile for runtime %q on platform %q", runtime, family),
		}
	}
	p.Family = family
	p.Runtime = runtime
	p.ExpectedLibraries = append([]string(nil), p.ExpectedLibraries...)
	return p, nil
}

// Profiles returns every table row ordered by family then runtime.
func Profiles() []Profile {
	out := make([]Profile, 0, len(table))
	for k := range table {
		p, _ := Lookup(k.family, k.runtime)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].Runtime < out[j].Runtime
	})
	return out
}

// ParseFamily parses a family name. "linux", "darwin" and other non-Windows
// GOOS values map to Unix.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Current(), nil
	case "windows", "win":
		return Windows, nil
	case "unix", "linux", "darwin", "osx", "freebsd":
		return Unix, nil
	default:
		return "", fmt.Errorf("unknown platform family %q", s)
	}
}

// ParseRuntimeClass parses a runtime class name.
func ParseRuntimeClass(s string) (RuntimeClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "netfx", "net462", "netframework":
		return NetFramework, nil
	case "net6", "net6.0", "netcore":
		return Net6, nil
	case "", "net7plus", "net7.0", "net8.0", "net9.0":
		return Net7Plus, nil
	default:
		return "", fmt.Errorf("unknown runtime class %q", s)
	}
}
