// Package desk wires the cache, notification queue and transport into one
// application object and hosts the actions that bridge them.
package desk

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/config"
	"github.com/colonyops/erpsync/internal/core/metrics"
	"github.com/colonyops/erpsync/internal/core/notify"
	"github.com/colonyops/erpsync/internal/core/query"
	"github.com/colonyops/erpsync/internal/core/transport"
	"github.com/colonyops/erpsync/internal/data/httptransport"
)

// Options customizes New.
type Options struct {
	// Transport replaces the HTTP client built from the config.
	Transport transport.Transport
	// Registerer enables Prometheus metrics when set.
	Registerer prometheus.Registerer
}

// App is the composition root: one cache, one queue, one transport per
// process.
type App struct {
	Config    *config.Config
	Transport *transport.Deferred
	Cache     *cache.Cache
	Queue     *notify.Queue
	Actions   *Actions
	Metrics   *metrics.Metrics

	ctx        context.Context
	cancel     context.CancelFunc
	unwatchQ   func()
	httpClient *httptransport.Client
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg, Transport: &transport.Deferred{}}

	if opts.Transport != nil {
		app.Transport.Set(opts.Transport)
	} else {
		client, err := httptransport.New(HTTPConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("http transport: %w", err)
		}
		app.httpClient = client
		app.Transport.Set(client)
	}

	var obs cache.Observer
	if opts.Registerer != nil {
		m, err := metrics.New(opts.Registerer)
		if err != nil {
			return nil, err
		}
		app.Metrics = m
		obs = m
	}

	app.ctx, app.cancel = context.WithCancel(ctx)
	app.Cache = cache.New(app.Transport, cfg.CacheConfig(obs))
	app.Queue = notify.New(cfg.NotifyConfig())
	app.Actions = NewActions(app.ctx, app.Cache, app.Queue)

	if app.Metrics != nil {
		app.unwatchQ = app.Metrics.WatchQueue(app.Queue)
	}
	return app, nil
}

// HTTPConfig maps the api section onto the HTTP transport settings.
func HTTPConfig(cfg *config.Config) httptransport.Config {
	return httptransport.Config{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
		Headers:   cfg.API.Headers,
	}
}

// SetToken swaps the bearer token used by the built-in HTTP transport.
func (a *App) SetToken(token string) {
	if a.httpClient != nil {
		a.httpClient.SetToken(token)
	}
}

// Live opens a real-time view of key with the configured retry policy.
func (a *App) Live(key string) *query.Live {
	return query.NewLive(a.ctx, a.Cache, key, query.LiveOptions{Retry: a.Config.RetryPolicy()})
}

// Close stops every poller and pending notification timer.
func (a *App) Close() {
	if a.unwatchQ != nil {
		a.unwatchQ()
	}
	a.cancel()
	a.Cache.Close()
	a.Queue.ClearAll()
}
