package veccore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML-shaped mirror of Config, for hosts that prefer a
// declarative config file over a hand-written Option chain.
type FileConfig struct {
	StoragePath    string `yaml:"storage_path"`
	MetricsEnabled *bool  `yaml:"metrics_enabled"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
	MaxCollections int    `yaml:"max_collections"`
	StorageBackend string `yaml:"storage_backend"` // "lsm" (default) or "badger"
}

// LoadConfig reads a YAML file and translates it into the equivalent
// Option chain for New, so a host application can start a Database from a
// config file without hand-assembling options.
func LoadConfig(path string) ([]Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	var opts []Option
	if fc.StoragePath != "" {
		opts = append(opts, WithStoragePath(fc.StoragePath))
	}
	if fc.MetricsEnabled != nil {
		opts = append(opts, WithMetrics(*fc.MetricsEnabled))
	}
	if fc.TracingEnabled {
		opts = append(opts, WithTracing(true))
	}
	if fc.MaxCollections > 0 {
		opts = append(opts, WithMaxCollections(fc.MaxCollections))
	}
	switch fc.StorageBackend {
	case "badger":
		opts = append(opts, WithStorageBackend(BackendBadger))
	case "", "lsm":
	default:
		return nil, fmt.Errorf("unknown storage_backend %q", fc.StorageBackend)
	}
	return opts, nil
}
