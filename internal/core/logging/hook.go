package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts endpoint and request_id from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if endpoint := GetEndpoint(ctx); endpoint != "" {
		e.Str("endpoint", endpoint)
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		e.Str("request_id", requestID)
	}
}
