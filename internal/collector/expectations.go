package collector

import (
	"context"
	"time"

	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/retry"
)

// Expect registers an instrumentation library name that must produce at
// least one span. Registering a name twice is a no-op.
func (c *Collector) Expect(names ...string) {
	for _, name := range names {
		if name == "" {
			c.logger.Warn().Msg("Ignoring empty expected library name")
			continue
		}
		if c.expectations.has(name) {
			continue
		}
		c.expectations.add(name)
		c.logger.Debug().Str("library", name).Msg("Expecting spans")
	}
}

// Expectations returns the registered library names, sorted.
func (c *Collector) Expectations() []string {
	return c.expectations.snapshot()
}

// Received returns every library name seen so far, sorted.
func (c *Collector) Received() []string {
	return c.sources.snapshot()
}

// ScopeHits returns how many scope entries naming the library carried at
// least one span. A batch that repeats the scope under several resources
// counts once per resource; individual spans are not counted.
func (c *Collector) ScopeHits(name string) int {
	return c.sources.count(name)
}

// missing returns the expected names not yet received, sorted.
func (c *Collector) missing() []string {
	var out []string
	for _, name := range c.expectations.snapshot() {
		if !c.sources.has(name) {
			out = append(out, name)
		}
	}
	return out
}

// AssertExpectations fails with an ExpectationMismatchError naming every
// expected library that has not produced a span. Unexpected libraries never
// cause a failure.
func (c *Collector) AssertExpectations() error {
	missing := c.missing()
	if len(missing) == 0 {
		return nil
	}
	return &harnesserrors.ExpectationMismatchError{
		Missing:  missing,
		Received: c.sources.snapshot(),
	}
}

// WaitForExpectations gives in-flight exports up to window to arrive, then
// asserts. It returns as soon as every expectation is met.
func (c *Collector) WaitForExpectations(ctx context.Context, window time.Duration) error {
	met, err := retry.Poll(ctx, retry.PollConfig{
		Window:      window,
		Interval:    50 * time.Millisecond,
		MaxInterval: 500 * time.Millisecond,
	}, func() bool {
		return len(c.missing()) == 0
	})
	if err != nil {
		return err
	}

	if !met {
		c.logger.Debug().
			Dur("window", window).
			Strs("missing", c.missing()).
			Msg("Drain window closed with expectations unmet")
	}
	return c.AssertExpectations()
}
