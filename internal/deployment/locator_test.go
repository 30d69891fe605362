package deployment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
}

func TestLocate_SingleDirectory(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "linux-x64")
	// Files next to the RID directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "build.log"), []byte("ok"), 0o644))

	layout, err := Locate(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "linux-x64"), layout.PlatformDir)
	assert.Equal(t, "linux-x64", layout.RuntimeIdentifier())
	assert.Equal(t, filepath.Join(root, "linux-x64", "instrument.sh"), layout.Path("instrument.sh"))
}

func TestLocate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		dirs    []string
		wantMsg string
	}{
		{
			name:    "no directories",
			dirs:    nil,
			wantMsg: "no runtime-identifier directory",
		},
		{
			name:    "ambiguous publish",
			dirs:    []string{"win-x64", "linux-x64"},
			wantMsg: "found 2: linux-x64, win-x64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			mkdirs(t, root, tt.dirs...)

			_, err := Locate(root)

			var cfgErr *harnesserrors.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, harnesserrors.KindConfiguration, harnesserrors.KindOf(err))
		})
	}
}

func TestLocate_MissingRoot(t *testing.T) {
	_, err := Locate(filepath.Join(t.TempDir(), "does-not-exist"))

	var cfgErr *harnesserrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
