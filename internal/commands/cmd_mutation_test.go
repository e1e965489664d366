package commands

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

type request struct {
	method string
	path   string
	body   map[string]any
}

// recordingServer answers every request with respond and remembers it.
type recordingServer struct {
	mu   sync.Mutex
	reqs []request
}

func (s *recordingServer) handler(status int, respond string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req.body)
		}
		s.mu.Lock()
		s.reqs = append(s.reqs, req)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respond))
	}
}

func (s *recordingServer) requests() []request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]request(nil), s.reqs...)
}

func TestCreateCmd(t *testing.T) {
	var rs recordingServer
	cfg := newTestServer(t, rs.handler(http.StatusCreated, `{"id":42,"name":"Acme","rating":4}`))

	flags := &Flags{Config: cfg}
	out, status, err := runApp(t, flags, func(app *cli.Command) { NewCreateCmd(flags).Register(app) },
		"create", "--set", "name=Acme", "--set", "rating=4", "--json", vendors)
	require.NoError(t, err)

	reqs := rs.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, vendors, reqs[0].path)
	assert.Equal(t, map[string]any{"name": "Acme", "rating": 4.0}, reqs[0].body)

	assert.JSONEq(t, `{"id":42,"name":"Acme","rating":4}`, strings.TrimSpace(out))
	assert.Contains(t, status, "Created vendor: Acme")
}

func TestCreateCmd_FailureReportsQueue(t *testing.T) {
	var rs recordingServer
	cfg := newTestServer(t, rs.handler(http.StatusUnprocessableEntity, `{"message":"name is required"}`))

	flags := &Flags{Config: cfg}
	out, status, err := runApp(t, flags, func(app *cli.Command) { NewCreateCmd(flags).Register(app) },
		"create", "--set", "rating=4", vendors)

	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Empty(t, out)
	assert.Contains(t, status, "Create failed")
}

func TestUpdateCmd(t *testing.T) {
	var rs recordingServer
	cfg := newTestServer(t, rs.handler(http.StatusOK, `{"id":42,"name":"Acme AS"}`))

	flags := &Flags{Config: cfg}
	out, status, err := runApp(t, flags, func(app *cli.Command) { NewUpdateCmd(flags).Register(app) },
		"update", "--set", "name=Acme AS", vendors, "42")
	require.NoError(t, err)

	reqs := rs.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, vendors+"/42", reqs[0].path)

	assert.Contains(t, out, "Acme AS")
	assert.Contains(t, status, "Updated vendor: Acme AS")
}

func TestUpdateCmd_RequiresId(t *testing.T) {
	flags := &Flags{}
	_, _, err := runApp(t, flags, func(app *cli.Command) { NewUpdateCmd(flags).Register(app) },
		"update", "--set", "name=x", vendors)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint and id are required")
}

func TestDeleteCmd_Yes(t *testing.T) {
	var rs recordingServer
	cfg := newTestServer(t, rs.handler(http.StatusNoContent, ``))

	flags := &Flags{Config: cfg}
	_, status, err := runApp(t, flags, func(app *cli.Command) { NewDeleteCmd(flags).Register(app) },
		"delete", "--yes", vendors, "42")
	require.NoError(t, err)

	reqs := rs.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodDelete, reqs[0].method)
	assert.Equal(t, vendors+"/42", reqs[0].path)
	assert.Contains(t, status, "Deleted vendor: #42")
}
