// Package testutil provides fixtures shared by the harness tests: loggers,
// fake self-contained deployments and a helper process that plays the
// instrumented application.
package testutil

import (
	"context"
	"time"
)

// NewTestContext creates a test context with a 30-second timeout.
func NewTestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
