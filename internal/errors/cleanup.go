// Package errors defines the harness failure taxonomy and small helpers for
// logged cleanup.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes an io.Closer and logs a failure instead of dropping it.
// Use this in defer statements.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DeferStop runs a stop function and logs a failure.
// Collectors and servers expose Stop() error rather than io.Closer.
func DeferStop(logger zerolog.Logger, stop func() error, msg string) {
	if stop == nil {
		return
	}
	if err := stop(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}
