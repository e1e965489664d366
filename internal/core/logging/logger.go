// Package logging holds zerolog helpers shared by the cache, fetch and notify layers.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component creates a new logger with a component identifier.
// Uses the "cmp" key for consistency with zerolog conventions.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}

// ForEndpoint derives a component logger that also carries the endpoint key.
func ForEndpoint(name, endpoint string) zerolog.Logger {
	return log.With().Str("cmp", name).Str("endpoint", endpoint).Logger()
}
