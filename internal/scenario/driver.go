// Package scenario drives one end-to-end verification: it locates the
// self-contained deployment, starts a mock collector, runs the application
// under the instrumentation launcher script and checks that every expected
// instrumentation library reported spans.
package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/collector"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/constants"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/deployment"
	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/launcher"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/platform"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/supervisor"
)

// Scenario is one launch mode to verify.
type Scenario struct {
	Name string
	Mode launcher.Mode
	// ExtraExpectations are required on top of the profile's libraries.
	ExtraExpectations []string
}

// Options is the environment shared by every scenario of a run.
type Options struct {
	OutputRoot     string
	AppName        string
	Family         platform.Family
	Runtime        platform.RuntimeClass
	RuntimeInvoker string

	// Timeout bounds the supervised process.
	Timeout time.Duration
	// DrainWindow bounds the wait for late exports after the process exits.
	DrainWindow time.Duration
	// WaitDelay bounds output collection after a kill.
	WaitDelay time.Duration

	Collector collector.Config
	// Env is added to the child environment after the collector's exporter variables.
	Env map[string]string
}

// Driver runs scenarios.
type Driver struct {
	opts       Options
	logger     zerolog.Logger
	supervisor *supervisor.Supervisor
}

// NewDriver creates a driver. Zero durations take their defaults.
func NewDriver(opts Options, logger zerolog.Logger) *Driver {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultProcessTimeout
	}
	if opts.DrainWindow < 0 {
		opts.DrainWindow = 0
	}
	if opts.WaitDelay <= 0 {
		opts.WaitDelay = constants.DefaultWaitDelay
	}
	return &Driver{
		opts:       opts,
		logger:     logger.With().Str("component", "scenario_driver").Logger(),
		supervisor: supervisor.New(logger),
	}
}

// Run executes sc and returns its result. It never returns nil.
func (d *Driver) Run(ctx context.Context, sc Scenario) *Result {
	res := &Result{
		RunID: uuid.New().String(),
		Name:  sc.Name,
		Mode:  sc.Mode,
	}
	if res.Name == "" {
		res.Name = string(sc.Mode)
	}

	logger := d.logger.With().
		Str("scenario", res.Name).
		Str("run_id", res.RunID).
		Logger()

	start := time.Now()
	err := d.run(ctx, logger, sc, res)
	res.Duration = time.Since(start)
	res.fail(err)

	if err != nil {
		event := logger.Error().Err(err).Str("kind", string(res.Kind))
		if res.Summary != "" {
			event = event.Str("summary", res.Summary)
		}
		event.Msg("Scenario failed")
	} else {
		logger.Info().
			Dur("duration", res.Duration).
			Strs("received", res.Received).
			Msg("Scenario passed")
	}
	return res
}

func (d *Driver) run(ctx context.Context, logger zerolog.Logger, sc Scenario, res *Result) error {
	profile, err := platform.Lookup(d.opts.Family, d.opts.Runtime)
	if err != nil {
		return err
	}
	res.Platform = profile.Family
	res.Runtime = profile.Runtime

	if err := launcher.CheckMode(profile, sc.Mode); err != nil {
		return err
	}

	layout, err := deployment.Locate(d.opts.OutputRoot)
	if err != nil {
		return err
	}
	res.RuntimeIdentifier = layout.RuntimeIdentifier()

	inv, err := launcher.BuildInvocation(launcher.Request{
		Layout:         layout,
		AppName:        d.opts.AppName,
		Mode:           sc.Mode,
		Profile:        profile,
		RuntimeInvoker: d.opts.RuntimeInvoker,
	})
	if err != nil {
		return err
	}
	if err := inv.Validate(); err != nil {
		return err
	}
	res.Command = inv.String()

	// The collector lives exactly as long as the scenario.
	coll := collector.New(d.opts.Collector, logger)
	if err := coll.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mock collector: %w", err)
	}
	defer harnesserrors.DeferStop(logger, coll.Stop, "failed to stop mock collector")

	coll.Expect(profile.ExpectedLibraries...)
	coll.Expect(sc.ExtraExpectations...)
	res.Expected = coll.Expectations()

	env := coll.Env()
	for k, v := range d.opts.Env {
		env[k] = v
	}

	logger.Info().
		Str("command", res.Command).
		Str("endpoint", coll.Endpoint()).
		Strs("expected", res.Expected).
		Msg("Launching instrumented application")

	proc, err := d.supervisor.Run(ctx, inv, supervisor.Options{
		Timeout:   d.opts.Timeout,
		Env:       env,
		Dir:       inv.Dir,
		WaitDelay: d.opts.WaitDelay,
	})
	if proc != nil {
		res.record(proc)
	}
	if err != nil {
		return err
	}

	if err := proc.Outcome(); err != nil {
		res.collect(coll)
		return err
	}

	err = coll.WaitForExpectations(ctx, d.opts.DrainWindow)
	res.collect(coll)
	return err
}

// RunAll executes every scenario. With parallel set they run concurrently,
// each against its own collector. Results keep the input order.
func (d *Driver) RunAll(ctx context.Context, scenarios []Scenario, parallel bool) []*Result {
	results := make([]*Result, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	if !parallel {
		g.SetLimit(1)
	}
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			results[i] = d.Run(gctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
