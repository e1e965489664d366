// Package transporttest provides an in-memory transport.Transport for tests.
package transporttest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/colonyops/erpsync/internal/core/transport"
)

// Call records a single request made against the fake.
type Call struct {
	Method string
	Path   string
	Body   any
}

// Handler produces the response for a call. The returned value is JSON
// encoded unless it is already a json.RawMessage.
type Handler func(ctx context.Context, call Call) (any, error)

// Fake routes requests by "METHOD path" to handlers and records every call.
type Fake struct {
	mu     sync.Mutex
	routes map[string]Handler
	calls  []Call
}

var _ transport.Transport = (*Fake)(nil)

func New() *Fake {
	return &Fake{routes: make(map[string]Handler)}
}

// Handle registers h for method and path, replacing any previous handler.
func (f *Fake) Handle(method, path string, h Handler) {
	f.mu.Lock()
	f.routes[method+" "+path] = h
	f.mu.Unlock()
}

// Respond registers a static response.
func (f *Fake) Respond(method, path string, v any) {
	f.Handle(method, path, func(context.Context, Call) (any, error) { return v, nil })
}

// Fail registers a handler that always returns a transport error.
func (f *Fake) Fail(method, path string, status int, msg string) {
	f.Handle(method, path, func(_ context.Context, c Call) (any, error) {
		return nil, &transport.Error{Method: c.Method, Path: c.Path, Status: status, Message: msg}
	})
}

// Echo registers a handler that returns the request body, which must encode
// as a JSON object, merged with extra.
func (f *Fake) Echo(method, path string, extra map[string]any) {
	f.Handle(method, path, func(_ context.Context, c Call) (any, error) {
		out := map[string]any{}
		if c.Body != nil {
			b, err := json.Marshal(c.Body)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(b, &out); err != nil {
				return nil, err
			}
		}
		for k, v := range extra {
			out[k] = v
		}
		return out, nil
	})
}

// Calls returns a copy of every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many calls matched method and path.
func (f *Fake) Count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (f *Fake) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	call := Call{Method: method, Path: path, Body: body}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	h, ok := f.routes[method+" "+path]
	f.mu.Unlock()

	if !ok {
		return nil, &transport.Error{Method: method, Path: path, Status: http.StatusNotFound, Message: "not found"}
	}

	v, err := h(ctx, call)
	if err != nil {
		return nil, err
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

func (f *Fake) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return f.do(ctx, http.MethodGet, path, nil)
}

func (f *Fake) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return f.do(ctx, http.MethodPost, path, body)
}

func (f *Fake) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return f.do(ctx, http.MethodPut, path, body)
}

func (f *Fake) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return f.do(ctx, http.MethodDelete, path, nil)
}
