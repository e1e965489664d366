// Package config handles configuration loading and validation for erpsync.
package config

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/notify"
	"github.com/colonyops/erpsync/internal/core/retry"
)

// Config holds the application configuration.
type Config struct {
	API           APIConfig               `yaml:"api"`
	Cache         CacheConfig             `yaml:"cache"`
	Fetch         FetchConfig             `yaml:"fetch"`
	Notifications NotificationsConfig     `yaml:"notifications"`
	Endpoints     map[string]EndpointRule `yaml:"endpoints"`      // doublestar pattern -> rule
	EndpointFiles []string                `yaml:"endpoint_files"` // extra endpoint rule files, merged in order
	Watch         WatchConfig             `yaml:"watch"`
}

// APIConfig describes how to reach the ERP backend.
type APIConfig struct {
	BaseURL   string            `yaml:"base_url"`
	Token     string            `yaml:"token"`
	Timeout   time.Duration     `yaml:"timeout"`
	RateLimit float64           `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int               `yaml:"burst"`
	Headers   map[string]string `yaml:"headers"`
}

// CacheConfig tunes the subscription cache.
type CacheConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	IdentityField string        `yaml:"identity_field"`
}

// FetchConfig tunes retries of initial loads. A negative max_retries
// disables retrying.
type FetchConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// NotificationsConfig tunes the notification queue.
type NotificationsConfig struct {
	Capacity  int           `yaml:"capacity"`
	HideAfter time.Duration `yaml:"hide_after"`
	Grace     time.Duration `yaml:"grace"`
}

// EndpointRule overrides cache behavior for endpoints matching a pattern.
type EndpointRule struct {
	Kind         string        `yaml:"kind"` // list (default) or single
	PollInterval time.Duration `yaml:"poll_interval"`
}

// WatchConfig holds defaults for the watch view.
type WatchConfig struct {
	Endpoints   []string `yaml:"endpoints"`
	MetricsAddr string   `yaml:"metrics_addr"`
	Theme       string   `yaml:"theme"` // built-in palette name, empty = default
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			PollInterval:  cache.DefaultPollInterval,
			IdentityField: cache.DefaultIdentityField,
		},
		Fetch: FetchConfig{
			MaxRetries: retry.DefaultMaxRetries,
			RetryDelay: retry.DefaultDelay,
		},
		Notifications: NotificationsConfig{
			Capacity:  notify.DefaultCapacity,
			HideAfter: notify.DefaultHideAfter,
			Grace:     notify.DefaultGrace,
		},
		Endpoints: map[string]EndpointRule{},
	}
}

// Load reads configuration from the given path. If configPath is empty or
// doesn't exist, defaults are returned.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if len(cfg.EndpointFiles) > 0 {
		extra, err := loadEndpointFiles(filepath.Dir(configPath), cfg.EndpointFiles)
		if err != nil {
			return nil, err
		}
		cfg.Endpoints = mergeEndpoints(extra, cfg.Endpoints)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = defaults.API.Timeout
	}
	if c.Cache.PollInterval == 0 {
		c.Cache.PollInterval = defaults.Cache.PollInterval
	}
	if c.Cache.IdentityField == "" {
		c.Cache.IdentityField = defaults.Cache.IdentityField
	}
	if c.Fetch.MaxRetries == 0 {
		c.Fetch.MaxRetries = defaults.Fetch.MaxRetries
	}
	if c.Fetch.RetryDelay == 0 {
		c.Fetch.RetryDelay = defaults.Fetch.RetryDelay
	}
	if c.Notifications.Capacity == 0 {
		c.Notifications.Capacity = defaults.Notifications.Capacity
	}
	if c.Notifications.HideAfter == 0 {
		c.Notifications.HideAfter = defaults.Notifications.HideAfter
	}
	if c.Notifications.Grace == 0 {
		c.Notifications.Grace = defaults.Notifications.Grace
	}
	if c.Endpoints == nil {
		c.Endpoints = map[string]EndpointRule{}
	}
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url cannot be empty")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit cannot be negative")
	}
	if c.Cache.PollInterval < 0 {
		return fmt.Errorf("cache.poll_interval cannot be negative")
	}
	if c.Fetch.RetryDelay < 0 {
		return fmt.Errorf("fetch.retry_delay cannot be negative")
	}
	if c.Notifications.Capacity < 1 {
		return fmt.Errorf("notifications.capacity must be at least 1")
	}
	if c.Notifications.HideAfter < 0 || c.Notifications.Grace < 0 {
		return fmt.Errorf("notifications durations cannot be negative")
	}

	for pattern, rule := range c.Endpoints {
		if err := rule.Validate(pattern); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks that an endpoint rule is valid.
func (r EndpointRule) Validate(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("endpoint pattern cannot be empty")
	}
	if _, err := cache.ParseKind(r.Kind); err != nil {
		return fmt.Errorf("endpoint %q: %w", pattern, err)
	}
	if r.PollInterval < 0 {
		return fmt.Errorf("endpoint %q: poll_interval cannot be negative", pattern)
	}
	return nil
}

// CacheRules converts the endpoint rules for the cache, most specific
// (longest) pattern first.
func (c *Config) CacheRules() []cache.Rule {
	patterns := make([]string, 0, len(c.Endpoints))
	for p := range c.Endpoints {
		patterns = append(patterns, p)
	}
	slices.SortFunc(patterns, func(a, b string) int {
		if n := cmp.Compare(len(b), len(a)); n != 0 {
			return n
		}
		return cmp.Compare(a, b)
	})

	rules := make([]cache.Rule, 0, len(patterns))
	for _, p := range patterns {
		r := c.Endpoints[p]
		kind, _ := cache.ParseKind(r.Kind)
		rules = append(rules, cache.Rule{Pattern: p, Kind: kind, PollInterval: r.PollInterval})
	}
	return rules
}

// CacheConfig returns the cache settings with obs attached.
func (c *Config) CacheConfig(obs cache.Observer) cache.Config {
	return cache.Config{
		PollInterval:  c.Cache.PollInterval,
		IdentityField: c.Cache.IdentityField,
		Rules:         c.CacheRules(),
		Observer:      obs,
	}
}

// RetryPolicy returns the retry policy for initial loads.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxRetries: max(c.Fetch.MaxRetries, 0), Delay: c.Fetch.RetryDelay}
}

// NotifyConfig returns the notification queue settings.
func (c *Config) NotifyConfig() notify.Config {
	return notify.Config{
		Capacity:  c.Notifications.Capacity,
		HideAfter: c.Notifications.HideAfter,
		Grace:     c.Notifications.Grace,
	}
}
