package scenario

import (
	"bytes"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/collector"
	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/launcher"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/platform"
)

func sampleResults() []*Result {
	zero := 0
	mismatch := &harnesserrors.ExpectationMismatchError{
		Missing:  []string{"B"},
		Received: []string{"A", platform.LibrarySystemNetHTTP},
	}
	return []*Result{
		{
			RunID:             "run-1",
			Name:              "executable",
			Mode:              launcher.ModeExecutable,
			Platform:          platform.Unix,
			Runtime:           platform.Net7Plus,
			RuntimeIdentifier: "linux-x64",
			Command:           "/out/linux-x64/instrument.sh /out/linux-x64/app",
			PID:               100,
			ExitCode:          &zero,
			Expected:          []string{platform.LibrarySystemNetHTTP},
			Received:          []string{platform.LibrarySystemNetHTTP},
			Stats:             collector.Stats{TraceBatches: 1, Spans: 1},
			Summary:           "Running: /out/linux-x64/instrument.sh /out/linux-x64/app\nProcessId: 100\nExit Code: 0\nOutput:\nhello\n",
			Duration:          1500 * time.Millisecond,
		},
		{
			RunID:             "run-2",
			Name:              "managed-assembly",
			Mode:              launcher.ModeManagedAssembly,
			Platform:          platform.Unix,
			Runtime:           platform.Net7Plus,
			RuntimeIdentifier: "linux-x64",
			Command:           "/out/linux-x64/instrument.sh dotnet /out/linux-x64/app.dll",
			PID:               101,
			ExitCode:          &zero,
			Expected:          []string{"B", platform.LibrarySystemNetHTTP},
			Received:          []string{"A", platform.LibrarySystemNetHTTP},
			Missing:           []string{"B"},
			Stats:             collector.Stats{TraceBatches: 2, Spans: 2},
			Kind:              harnesserrors.KindExpectationMismatch,
			Err:               mismatch,
			Summary:           "Running: /out/linux-x64/instrument.sh dotnet /out/linux-x64/app.dll\nProcessId: 101\nExit Code: 0\nOutput:\n=============Http===============\n",
			Duration:          2250 * time.Millisecond,
		},
	}
}

func TestWriteText_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, FormatText, sampleResults()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report_text", buf.Bytes())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, FormatJSON, sampleResults()))

	var report jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Scenarios, 2)

	ok := report.Scenarios[0]
	assert.True(t, ok.Passed)
	assert.Empty(t, ok.Kind)
	assert.Empty(t, ok.Error)
	require.NotNil(t, ok.ExitCode)
	assert.Equal(t, 0, *ok.ExitCode)
	assert.Equal(t, int64(1500), ok.DurationMS)
	assert.Equal(t, int64(1), ok.Stats.Spans)

	failed := report.Scenarios[1]
	assert.False(t, failed.Passed)
	assert.Equal(t, "expectation_mismatch", failed.Kind)
	assert.Equal(t, []string{"B"}, failed.Missing)
	assert.Contains(t, failed.Error, "missing spans from instrumentation libraries: B")
	assert.Contains(t, failed.Summary, "ProcessId: 101")
}

func TestWriteReport_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteReport(&buf, "xml", sampleResults()))
	assert.Zero(t, buf.Len())
}

func TestCounts(t *testing.T) {
	passed, failed := Counts(sampleResults())
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, failed)

	passed, failed = Counts(nil)
	assert.Zero(t, passed)
	assert.Zero(t, failed)
}
