package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// loadEndpointFiles reads YAML endpoint rule files and merges them in
// declaration order. Later files override earlier files for the same
// pattern.
func loadEndpointFiles(configDir string, files []string) (map[string]EndpointRule, error) {
	merged := make(map[string]EndpointRule)

	for _, file := range files {
		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(configDir, path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read endpoint file %q: %w", file, err)
		}

		var rules map[string]EndpointRule
		if err := yaml.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("parse endpoint file %q: %w", file, err)
		}

		maps.Copy(merged, rules)
	}

	return merged, nil
}

// mergeEndpoints returns base overlaid with override.
func mergeEndpoints(base, override map[string]EndpointRule) map[string]EndpointRule {
	result := make(map[string]EndpointRule, len(base)+len(override))
	maps.Copy(result, base)
	maps.Copy(result, override)
	return result
}
