package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sugarme/fcn/fcn"
)

// Config is configuration of the fcn command line tool.
type Config struct {
	Model  ModelConfig  `yaml:"model"`
	Bench  BenchConfig  `yaml:"bench"`
	Device DeviceConfig `yaml:"device"`
	Log    LogConfig    `yaml:"log"`
}

// ModelConfig selects the network.
type ModelConfig struct {
	Variant  string  `yaml:"variant"`
	Backbone string  `yaml:"backbone"`
	Classes  int64   `yaml:"classes"`
	Hidden   int64   `yaml:"hidden"`
	Dropout  float64 `yaml:"dropout"`
	Weights  string  `yaml:"weights"` // pretrained backbone ".ot" file, optional
	Labels   string  `yaml:"labels"`  // class list CSV, optional
	SkipFC7  bool    `yaml:"skip_fc7"`
}

// BenchConfig holds forward pass benchmark settings.
type BenchConfig struct {
	Batch  int64  `yaml:"batch"`
	Height int64  `yaml:"height"`
	Width  int64  `yaml:"width"`
	Runs   int    `yaml:"runs"`
	CSV    string `yaml:"csv"`
	Plot   string `yaml:"plot"`
}

// DeviceConfig selects compute device.
type DeviceConfig struct {
	Cuda bool `yaml:"cuda"`
}

// LogConfig configures logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Variant:  "32s",
			Backbone: "vgg16",
			Classes:  fcn.DefaultClasses,
			Hidden:   fcn.DefaultHidden,
			Dropout:  fcn.DefaultDropout,
		},
		Bench: BenchConfig{
			Batch:  1,
			Height: 360,
			Width:  480,
			Runs:   1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks values.
func (c *Config) Validate() error {
	if _, err := c.FCNConfig(); err != nil {
		return err
	}
	if c.Bench.Batch < 1 || c.Bench.Height < 1 || c.Bench.Width < 1 {
		return fmt.Errorf("invalid bench input size: %vx3x%vx%v", c.Bench.Batch, c.Bench.Height, c.Bench.Width)
	}
	if c.Bench.Runs < 1 {
		return fmt.Errorf("invalid bench runs: %v", c.Bench.Runs)
	}
	return nil
}

// FCNConfig converts model section into fcn.Config.
func (c *Config) FCNConfig() (fcn.Config, error) {
	variant, err := fcn.ParseVariant(c.Model.Variant)
	if err != nil {
		return fcn.Config{}, err
	}
	backbone, err := fcn.ParseBackbone(c.Model.Backbone)
	if err != nil {
		return fcn.Config{}, err
	}

	mc := fcn.Config{
		Variant:  variant,
		Backbone: backbone,
		NClasses: c.Model.Classes,
		Hidden:   c.Model.Hidden,
		DropoutP: c.Model.Dropout,
		SkipFC7:  c.Model.SkipFC7,
	}
	if err := mc.Validate(); err != nil {
		return fcn.Config{}, err
	}

	return mc, nil
}
