package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/erpsync/internal/core/logging"
	"github.com/colonyops/erpsync/internal/core/transport"
)

const baseURL = "https://erp.example.com/"

func newClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	c, err := New(cfg, WithHTTPClient(&http.Client{Transport: mt}))
	require.NoError(t, err)
	return c, mt
}

func TestNew_ValidatesBaseUrl(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{BaseURL: "ftp://erp.example.com"})
	require.Error(t, err)

	c, err := New(Config{BaseURL: "http://localhost:8080/v1"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClient_URL(t *testing.T) {
	c, _ := newClient(t, Config{BaseURL: "https://erp.example.com/v1/"})

	tests := []struct {
		path string
		want string
	}{
		{path: "/api/crm/leads", want: "https://erp.example.com/v1/api/crm/leads"},
		{path: "api/crm/leads", want: "https://erp.example.com/v1/api/crm/leads"},
		{path: "/api/crm/leads?page=2&page_size=20", want: "https://erp.example.com/v1/api/crm/leads?page=2&page_size=20"},
	}
	for _, tt := range tests {
		got, err := c.URL(tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := c.URL("https://evil.example.com/api")
	require.Error(t, err)
}

func TestClient_UnwrapsEnvelope(t *testing.T) {
	c, mt := newClient(t, Config{})
	mt.RegisterResponder(http.MethodGet, baseURL+"api/procurement/vendors",
		httpmock.NewStringResponder(http.StatusOK,
			`{"success":true,"data":[{"id":1,"name":"Acme"}],"meta":{"total":1,"page":1,"page_size":20,"total_pages":1}}`))

	body, err := c.Get(context.Background(), "/api/procurement/vendors")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":"Acme"}]`, string(body))
}

func TestClient_PassesPlainBodiesThrough(t *testing.T) {
	c, mt := newClient(t, Config{})
	mt.RegisterResponder(http.MethodGet, baseURL+"api/settings/company",
		httpmock.NewStringResponder(http.StatusOK, `{"name":"Hive Ltd","currency":"USD"}`))

	body, err := c.Get(context.Background(), "/api/settings/company")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Hive Ltd","currency":"USD"}`, string(body))
}

func TestClient_RequestHeaders(t *testing.T) {
	c, mt := newClient(t, Config{Token: "secret", Headers: map[string]string{"X-Tenant": "acme"}})

	var got http.Header
	var payload map[string]any
	mt.RegisterResponder(http.MethodPost, baseURL+"api/crm/leads",
		func(req *http.Request) (*http.Response, error) {
			got = req.Header.Clone()
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusCreated, `{"success":true,"data":{"id":7,"name":"Beta"}}`), nil
		})

	ctx := logging.WithRequestID(context.Background(), "req-42")
	body, err := c.Post(ctx, "/api/crm/leads", map[string]any{"name": "Beta"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"name":"Beta"}`, string(body))

	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "req-42", got.Get("X-Request-ID"))
	assert.Equal(t, "acme", got.Get("X-Tenant"))
	assert.Equal(t, "Beta", payload["name"])

	c.SetToken("")
	mt.RegisterResponder(http.MethodDelete, baseURL+"api/crm/leads/7",
		func(req *http.Request) (*http.Response, error) {
			got = req.Header.Clone()
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})
	_, err = c.Delete(context.Background(), "/api/crm/leads/7")
	require.NoError(t, err)
	assert.Empty(t, got.Get("Authorization"))
	assert.NotEmpty(t, got.Get("X-Request-ID"), "request id is generated when absent")
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "envelope error",
			status:     http.StatusUnprocessableEntity,
			body:       `{"success":false,"error":{"code":"VALIDATION_ERROR","message":"name is required"}}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "VALIDATION_ERROR",
			wantMsg:    "name is required",
		},
		{
			name:       "plain text",
			status:     http.StatusBadGateway,
			body:       "upstream unavailable\n",
			wantStatus: http.StatusBadGateway,
			wantMsg:    "upstream unavailable",
		},
		{
			name:       "html page",
			status:     http.StatusInternalServerError,
			body:       "<html>oops</html>",
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Internal Server Error",
		},
		{
			name:       "success false on 200",
			status:     http.StatusOK,
			body:       `{"success":false,"error":{"code":"CONFLICT","message":"vendor code taken"}}`,
			wantStatus: http.StatusOK,
			wantCode:   "CONFLICT",
			wantMsg:    "vendor code taken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mt := newClient(t, Config{})
			mt.RegisterResponder(http.MethodPut, baseURL+"api/procurement/vendors/1",
				httpmock.NewStringResponder(tt.status, tt.body))

			_, err := c.Put(context.Background(), "/api/procurement/vendors/1", map[string]any{"name": ""})
			require.Error(t, err)

			var te *transport.Error
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.wantStatus, te.Status)
			assert.Equal(t, tt.wantCode, te.Code)
			assert.Equal(t, tt.wantMsg, transport.Message(err))
			assert.Equal(t, http.MethodPut, te.Method)
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	c, mt := newClient(t, Config{})
	mt.RegisterResponder(http.MethodGet, baseURL+"api/tax/rates",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.Get(context.Background(), "/api/tax/rates")
	require.Error(t, err)

	var te *transport.Error
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.Status)
	assert.Equal(t, "connection refused", te.Message)
}

func TestClient_RateLimit(t *testing.T) {
	c, mt := newClient(t, Config{RateLimit: 50, Burst: 1})
	mt.RegisterResponder(http.MethodGet, baseURL+"api/tax/rates",
		httpmock.NewStringResponder(http.StatusOK, `[]`))

	start := time.Now()
	for range 3 {
		_, err := c.Get(context.Background(), "/api/tax/rates")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 3, mt.GetTotalCallCount())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "/api/tax/rates")
	require.Error(t, err)
	assert.Equal(t, 3, mt.GetTotalCallCount())
}

func TestParseEnvelope(t *testing.T) {
	_, ok := parseEnvelope([]byte(`[1,2]`))
	assert.False(t, ok)

	_, ok = parseEnvelope([]byte(`{"data":[]}`))
	assert.False(t, ok, "objects without a success flag are plain payloads")

	env, ok := parseEnvelope([]byte(`{"success":true,"data":[],"meta":{"total":42,"page":2,"page_size":20,"total_pages":3}}`))
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(env.Data))
	assert.Nil(t, env.Error)
}
