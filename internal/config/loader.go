package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1 << 20

// Load builds the configuration from defaults, then the YAML file at
// configPath (if non-empty and present), then AGRAMA_-prefixed environment
// variables. Environment variables map underscores to nesting after the
// section name, e.g. AGRAMA_HNSW_EF_CONSTRUCTION -> hnsw.ef_construction.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			content, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
			if len(content) > maxConfigFileSize {
				return nil, fmt.Errorf("config: %s exceeds %d bytes", configPath, maxConfigFileSize)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("AGRAMA_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps AGRAMA_SECTION_FIELD_NAME to section.field_name: the
// first underscore separates the section, the rest stay underscores inside
// the field key.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "AGRAMA_"))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}
