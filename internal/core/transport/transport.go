// Package transport defines the request/response collaborator the cache and
// fetch layers ride on. Implementations own base-URL resolution and bearer
// token attachment; callers only see paths and JSON bodies.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotInitialized is returned when an operation runs before a transport has
// been installed.
var ErrNotInitialized = errors.New("transport not initialized")

// Transport issues requests against the ERP API and returns the parsed body.
// Non-2xx responses and network failures are returned as errors.
type Transport interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
}

// Error is a failed request. Message is meant for display.
type Error struct {
	Method  string
	Path    string
	Status  int // 0 for network failures
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the human-readable message carried by err. Transport errors
// yield their Message; anything else falls back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return err.Error()
}

// Deferred forwards to a transport installed later via Set. Until then every
// call fails fast with ErrNotInitialized.
type Deferred struct {
	mu    sync.RWMutex
	inner Transport
}

var _ Transport = (*Deferred)(nil)

// Set installs the underlying transport. Passing nil uninstalls it.
func (d *Deferred) Set(t Transport) {
	d.mu.Lock()
	d.inner = t
	d.mu.Unlock()
}

// Ready reports whether a transport is installed.
func (d *Deferred) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inner != nil
}

func (d *Deferred) get() (Transport, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.inner == nil {
		return nil, ErrNotInitialized
	}
	return d.inner, nil
}

func (d *Deferred) Get(ctx context.Context, path string) (json.RawMessage, error) {
	t, err := d.get()
	if err != nil {
		return nil, err
	}
	return t.Get(ctx, path)
}

func (d *Deferred) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	t, err := d.get()
	if err != nil {
		return nil, err
	}
	return t.Post(ctx, path, body)
}

func (d *Deferred) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	t, err := d.get()
	if err != nil {
		return nil, err
	}
	return t.Put(ctx, path, body)
}

func (d *Deferred) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	t, err := d.get()
	if err != nil {
		return nil, err
	}
	return t.Delete(ctx, path)
}
