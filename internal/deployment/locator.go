// Package deployment resolves the layout produced by a self-contained publish:
// a known output root holding exactly one runtime-identifier directory
// (for example "linux-x64" or "win-x64").
package deployment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
)

// Layout is a resolved self-contained deployment.
type Layout struct {
	// OutputRoot is the build output directory the harness was pointed at.
	OutputRoot string
	// PlatformDir is the single runtime-identifier directory under OutputRoot.
	PlatformDir string
}

// RuntimeIdentifier returns the name of the platform directory.
func (l Layout) RuntimeIdentifier() string {
	return filepath.Base(l.PlatformDir)
}

// Path joins elem onto the platform directory.
func (l Layout) Path(elem ...string) string {
	return filepath.Join(append([]string{l.PlatformDir}, elem...)...)
}

// Locate lists the immediate subdirectories of outputRoot and returns the
// only one. Zero candidates means the build output is missing; more than one
// means the publish is ambiguous.
func Locate(outputRoot string) (Layout, error) {
	root, err := filepath.Abs(outputRoot)
	if err != nil {
		return Layout{}, &harnesserrors.ConfigurationError{
			Path:   outputRoot,
			Reason: "cannot resolve output root",
			Err:    err,
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return Layout{}, &harnesserrors.ConfigurationError{
			Path:   root,
			Reason: "cannot read output root",
			Err:    err,
		}
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)

	switch len(dirs) {
	case 0:
		return Layout{}, &harnesserrors.ConfigurationError{
			Path:   root,
			Reason: "no runtime-identifier directory found; was the app published self-contained?",
		}
	case 1:
		return Layout{
			OutputRoot:  root,
			PlatformDir: filepath.Join(root, dirs[0]),
		}, nil
	default:
		return Layout{}, &harnesserrors.ConfigurationError{
			Path: root,
			Reason: fmt.Sprintf("expected exactly one runtime-identifier directory, found %d: %s",
				len(dirs), strings.Join(dirs, ", ")),
		}
	}
}
