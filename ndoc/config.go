package ndoc

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config controls how endpoints are documented
type Config struct {
	// Host is used to build endpoint URLs
	Host string `yaml:"host"`
	// ContextPath is prefixed to every endpoint path
	ContextPath string `yaml:"context_path"`
	// MaxDepth limits how deeply nested sample data is generated
	MaxDepth int `yaml:"max_depth"`
	// Seed makes sample data repeatable.  Zero means random.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig is used when no configuration is loaded
func DefaultConfig() Config {
	return Config{
		Host:     "localhost",
		MaxDepth: 8,
	}
}

// LoadConfig reads YAML configuration.  Missing keys keep their
// DefaultConfig values; unknown keys are an error.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, errors.Wrap(err, "read ndoc config")
	}
	err = yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return cfg, errors.Wrap(err, "parse ndoc config")
	}
	if cfg.MaxDepth <= 0 {
		return cfg, errors.Errorf("max_depth must be positive, not %d", cfg.MaxDepth)
	}
	return cfg, nil
}
