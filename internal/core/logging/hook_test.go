package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHook_Run(t *testing.T) {
	tests := []struct {
		name      string
		setupCtx  func() context.Context
		wantKeys  []string
		wantEmpty []string
	}{
		{
			name: "endpoint and request_id",
			setupCtx: func() context.Context {
				ctx := context.Background()
				ctx = WithEndpoint(ctx, "/api/procurement/vendors")
				ctx = WithRequestID(ctx, "req-123")
				return ctx
			},
			wantKeys: []string{"endpoint", "request_id"},
		},
		{
			name: "only endpoint",
			setupCtx: func() context.Context {
				return WithEndpoint(context.Background(), "/api/crm/leads")
			},
			wantKeys:  []string{"endpoint"},
			wantEmpty: []string{"request_id"},
		},
		{
			name: "only request_id",
			setupCtx: func() context.Context {
				return WithRequestID(context.Background(), "req-456")
			},
			wantKeys:  []string{"request_id"},
			wantEmpty: []string{"endpoint"},
		},
		{
			name:      "no context values",
			setupCtx:  context.Background,
			wantEmpty: []string{"endpoint", "request_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := tt.setupCtx()

			logger := zerolog.New(&buf).Hook(ContextHook{})
			logger.Info().Ctx(ctx).Msg("test")

			var logEntry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))

			for _, key := range tt.wantKeys {
				assert.Contains(t, logEntry, key)
			}
			for _, key := range tt.wantEmpty {
				assert.NotContains(t, logEntry, key)
			}
		})
	}
}
