package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"

	"github.com/colonyops/erpsync/internal/core/styles"
)

// minPollInterval is the shortest poll cadence that does not draw a warning.
const minPollInterval = time.Second

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration
// including URL syntax, endpoint patterns, and file accessibility. The
// configPath argument specifies the config file location to validate (empty
// string skips the config file check). This calls Validate() first for basic
// structural validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("api.base_url", c.API.BaseURL, isHTTPURL),
		c.validateEndpointFiles(configPath),
		c.validateEndpointPatterns(),
		c.validateWatch(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Cache.PollInterval > 0 && c.Cache.PollInterval < minPollInterval {
		warnings = append(warnings, ValidationWarning{
			Category: "Cache",
			Message:  fmt.Sprintf("poll_interval %s is below %s and may overload the API", c.Cache.PollInterval, minPollInterval),
		})
	}

	for _, p := range sortedPatterns(c.Endpoints) {
		rule := c.Endpoints[p]
		if rule.PollInterval > 0 && rule.PollInterval < minPollInterval {
			warnings = append(warnings, ValidationWarning{
				Category: "Endpoints",
				Item:     p,
				Message:  fmt.Sprintf("poll_interval %s is below %s", rule.PollInterval, minPollInterval),
			})
		}
	}

	if c.API.Token == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "API",
			Message:  "no token configured; requests are sent without Authorization",
		})
	}

	return warnings
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

func isHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func (c *Config) validateEndpointFiles(configPath string) error {
	if len(c.EndpointFiles) == 0 {
		return nil
	}

	configDir := filepath.Dir(configPath)
	var errs criterio.FieldErrorsBuilder

	for i, file := range c.EndpointFiles {
		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(configDir, path)
		}

		if _, err := os.Stat(path); err != nil {
			errs = errs.Append(fmt.Sprintf("endpoint_files[%d]", i), fmt.Errorf("file not found: %s", file))
		}
	}

	return errs.ToError()
}

// validateEndpointPatterns checks endpoint patterns are valid doublestar globs.
func (c *Config) validateEndpointPatterns() error {
	var errs criterio.FieldErrorsBuilder
	for _, p := range sortedPatterns(c.Endpoints) {
		if !doublestar.ValidatePattern(p) {
			errs = errs.Append(fmt.Sprintf("endpoints[%q]", p), fmt.Errorf("invalid pattern %q", p))
		}
	}
	return errs.ToError()
}

func (c *Config) validateWatch() error {
	var errs criterio.FieldErrorsBuilder
	for i, ep := range c.Watch.Endpoints {
		if ep == "" || ep[0] != '/' {
			errs = errs.Append(fmt.Sprintf("watch.endpoints[%d]", i), fmt.Errorf("endpoint %q must start with /", ep))
		}
	}
	if c.Watch.Theme != "" {
		if _, ok := styles.GetPalette(c.Watch.Theme); !ok {
			errs = errs.Append("watch.theme", fmt.Errorf("unknown theme %q, available: %s", c.Watch.Theme, strings.Join(styles.ThemeNames(), ", ")))
		}
	}
	return errs.ToError()
}

func sortedPatterns(m map[string]EndpointRule) []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
