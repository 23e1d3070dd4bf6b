package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for ilfeat.
type Config struct {
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Geometry   GeometryConfig   `yaml:"geometry"`
	Generators GeneratorsConfig `yaml:"generators"`
	Cache      CacheConfig      `yaml:"cache"`
	Batch      BatchConfig      `yaml:"batch"`
	External   []ExternalTool   `yaml:"external"`
	PropertyDB PropertyDBConfig `yaml:"property_db"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// PipelineConfig selects generators and how ion columns are combined.
type PipelineConfig struct {
	Generators      []string `yaml:"generators"`
	Required        []string `yaml:"required"` // subset of Generators whose failure fails the row
	Combine         string   `yaml:"combine"`  // "concatenate", "sum", "mean", ...
	ValidateCharges bool     `yaml:"validate_charges"`
	AllowedElements []string `yaml:"allowed_elements"`
	AmbientLabels   bool     `yaml:"ambient_labels"` // keep labels at (298 ± 1) K and ~101 kPa only
}

// GeometryConfig holds embedding configuration.
type GeometryConfig struct {
	Seed          int64   `yaml:"seed"`
	AttemptLimit  int     `yaml:"attempt_limit"`
	BondTolerance float64 `yaml:"bond_tolerance"`
}

// GeneratorsConfig holds built-in generator settings.
type GeneratorsConfig struct {
	SurfacePoints int     `yaml:"surface_points"`
	GridSpacing   float64 `yaml:"grid_spacing"`
}

// CacheConfig holds descriptor cache configuration.
type CacheConfig struct {
	Dir        string        `yaml:"dir"` // relative paths resolve against the root directory
	MemorySize int           `yaml:"memory_size"`
	MemoryTTL  time.Duration `yaml:"memory_ttl"`
}

// BatchConfig holds batch run configuration.
type BatchConfig struct {
	Workers  int  `yaml:"workers"`
	Progress bool `yaml:"progress"`
}

// ExternalTool describes one out-of-process descriptor calculator. The
// command may use the {input} and {output} placeholders.
type ExternalTool struct {
	Name    string        `yaml:"name"`
	Version string        `yaml:"version"`
	Command []string      `yaml:"command"`
	Names   []string      `yaml:"names"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

// UnmarshalYAML fills in one retry and a 60s timeout before decoding.
func (t *ExternalTool) UnmarshalYAML(value *yaml.Node) error {
	type plain ExternalTool
	p := plain{Retries: 1, Timeout: 60 * time.Second}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = ExternalTool(p)
	return nil
}

// PropertyDBConfig selects the label source.
type PropertyDBConfig struct {
	Driver string `yaml:"driver"` // "none", "file", "postgres"
	Path   string `yaml:"path"`
	DSNEnv string `yaml:"dsn_env"` // environment variable holding the DSN
}

// DatasetConfig holds patterns used when a batch argument is a directory.
type DatasetConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // empty disables the export
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Generators: []string{"geometric", "topological"},
			Required:   []string{"topological"},
			Combine:    "concatenate",
		},
		Geometry: GeometryConfig{
			Seed:          42,
			AttemptLimit:  10,
			BondTolerance: 0.25,
		},
		Generators: GeneratorsConfig{
			SurfacePoints: 256,
			GridSpacing:   0.2,
		},
		Cache: CacheConfig{
			Dir:        ".ilfeat",
			MemorySize: 4096,
		},
		Batch: BatchConfig{
			Workers:  4,
			Progress: true,
		},
		PropertyDB: PropertyDBConfig{
			Driver: "none",
			DSNEnv: "ILFEAT_PROPERTY_DSN",
		},
		Dataset: DatasetConfig{
			Includes: []string{"**/*.csv"},
			Excludes: []string{"**/.ilfeat/**", "**/.git/**"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// LoadFromDir loads configuration from a directory (looks for ilfeat.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ilfeat.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ilfeat", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if len(c.Pipeline.Generators) == 0 {
		return errors.New("pipeline.generators must not be empty")
	}
	selected := make(map[string]bool, len(c.Pipeline.Generators))
	for _, g := range c.Pipeline.Generators {
		selected[g] = true
	}
	for _, r := range c.Pipeline.Required {
		if !selected[r] {
			return fmt.Errorf("pipeline.required names %q, which is not in pipeline.generators", r)
		}
	}
	if c.Geometry.AttemptLimit < 1 {
		return errors.New("geometry.attempt_limit must be at least 1")
	}
	if c.Batch.Workers < 1 {
		return errors.New("batch.workers must be at least 1")
	}
	if c.Cache.MemoryTTL < 0 {
		return errors.New("cache.memory_ttl must not be negative")
	}

	seen := make(map[string]bool, len(c.External))
	for i, t := range c.External {
		if t.Name == "" {
			return fmt.Errorf("external[%d]: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("external tool %q defined twice", t.Name)
		}
		seen[t.Name] = true
		if len(t.Command) == 0 || len(t.Names) == 0 {
			return fmt.Errorf("external tool %q needs a command and descriptor names", t.Name)
		}
	}

	switch c.PropertyDB.Driver {
	case "", "none":
	case "file":
		if c.PropertyDB.Path == "" {
			return errors.New("property_db.path is required for the file driver")
		}
	case "postgres":
		if c.PropertyDB.DSNEnv == "" {
			return errors.New("property_db.dsn_env is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown property_db.driver %q", c.PropertyDB.Driver)
	}
	return nil
}

// IsRequired reports whether generator failures fail the row.
func (c *Config) IsRequired(generator string) bool {
	for _, r := range c.Pipeline.Required {
		if r == generator {
			return true
		}
	}
	return false
}

// CacheDir returns the cache directory for root.
func (c *Config) CacheDir(root string) string {
	if filepath.IsAbs(c.Cache.Dir) {
		return c.Cache.Dir
	}
	return filepath.Join(root, c.Cache.Dir)
}

// CacheDBPath returns the path to the descriptor database in cacheDir.
func CacheDBPath(cacheDir string) string {
	return filepath.Join(cacheDir, "descriptors.db")
}

// EnsureCacheDir ensures the cache directory exists.
func EnsureCacheDir(cacheDir string) error {
	return os.MkdirAll(cacheDir, 0755)
}
