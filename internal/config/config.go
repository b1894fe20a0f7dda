package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/kartoza/stunting-risk/internal/inference"
)

// Config holds the application configuration
type Config struct {
	Port         int    `yaml:"port"`
	ModelDir     string `yaml:"model_dir"`
	ResourcesDir string `yaml:"resources_dir"`
	DataDir      string `yaml:"data_dir"`
	Headless     bool   `yaml:"headless"`
	Version      string `yaml:"-"`

	Model    ModelConfig    `yaml:"model"`
	Decision DecisionConfig `yaml:"decision"`
	History  HistoryConfig  `yaml:"history"`
	Log      LogConfig      `yaml:"log"`
}

// ModelConfig controls model pack loading
type ModelConfig struct {
	// Required makes a pack that fails to load fatal at startup. When false
	// the server starts without a model and waits for a pack install.
	Required bool `yaml:"required"`
}

// DecisionConfig is the threshold policy applied to the stunted probability
type DecisionConfig struct {
	Threshold     float64 `yaml:"threshold"`
	PositiveClass int     `yaml:"positive_class"`
}

// Options converts the policy into pipeline options
func (d DecisionConfig) Options() inference.Options {
	return inference.Options{Threshold: d.Threshold, PositiveClass: d.PositiveClass}
}

// HistoryConfig controls the screening log
type HistoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache_size"`
}

// LogConfig configures the zap logger and optional file rotation
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is present
func Default() Config {
	return Config{
		Port: 8080,
		Model: ModelConfig{
			Required: true,
		},
		Decision: DecisionConfig{
			Threshold:     0.70,
			PositiveClass: 1,
		},
		History: HistoryConfig{
			Enabled:   true,
			CacheSize: 256,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from STUNTING_* environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("STUNTING_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STUNTING_PORT: %w", err)
		}
		c.Port = port
	}
	if v := os.Getenv("STUNTING_MODEL_DIR"); v != "" {
		c.ModelDir = v
	}
	if v := os.Getenv("STUNTING_RESOURCES_DIR"); v != "" {
		c.ResourcesDir = v
	}
	if v := os.Getenv("STUNTING_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("STUNTING_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("STUNTING_THRESHOLD: %w", err)
		}
		c.Decision.Threshold = threshold
	}
	if v := os.Getenv("STUNTING_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("STUNTING_HISTORY_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STUNTING_HISTORY_ENABLED: %w", err)
		}
		c.History.Enabled = enabled
	}
	return nil
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if math.IsNaN(c.Decision.Threshold) || c.Decision.Threshold <= 0 || c.Decision.Threshold >= 1 {
		return fmt.Errorf("decision threshold must be in (0, 1), got %v", c.Decision.Threshold)
	}
	if c.Decision.PositiveClass != 0 && c.Decision.PositiveClass != 1 {
		return fmt.Errorf("positive class must be 0 or 1, got %d", c.Decision.PositiveClass)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.History.CacheSize < 0 {
		return fmt.Errorf("history cache size must not be negative")
	}
	return nil
}
