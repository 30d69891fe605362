package scenario

import (
	stderrors "errors"
	"time"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/collector"
	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/launcher"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/platform"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/supervisor"
)

// Result is the outcome of one scenario.
type Result struct {
	RunID             string
	Name              string
	Mode              launcher.Mode
	Platform          platform.Family
	Runtime           platform.RuntimeClass
	RuntimeIdentifier string
	Command           string

	PID      int
	ExitCode *int
	TimedOut bool

	Expected []string
	Received []string
	Missing  []string
	Stats    collector.Stats

	// Kind is KindNone when the scenario passed.
	Kind harnesserrors.Kind
	Err  error
	// Summary is the process summary, set whenever a process ran.
	Summary  string
	Duration time.Duration
}

// Passed reports whether the scenario succeeded.
func (r *Result) Passed() bool {
	return r.Err == nil
}

func (r *Result) record(p *supervisor.Process) {
	r.PID = p.PID()
	if code, ok := p.ExitCode(); ok {
		r.ExitCode = &code
	}
	r.TimedOut = p.TimedOut()
	r.Summary = p.Summary()
}

func (r *Result) collect(c *collector.Collector) {
	r.Received = c.Received()
	r.Stats = c.Stats()
}

func (r *Result) fail(err error) {
	r.Err = err
	r.Kind = harnesserrors.KindOf(err)

	var mismatch *harnesserrors.ExpectationMismatchError
	if stderrors.As(err, &mismatch) {
		r.Missing = mismatch.Missing
	}
}
