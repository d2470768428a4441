// Package config provides configuration loading and management for ontodash.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ontodash configuration
type Config struct {
	Registry Registry `yaml:"registry"`
	Paths    Paths    `yaml:"paths"`
	Pipeline Pipeline `yaml:"pipeline"`
	Robot    Robot    `yaml:"robot"`
	Publish  Publish  `yaml:"publish"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Registry configures where the ontology registry is read from
type Registry struct {
	// Files is a list of registry file paths; doublestar glob patterns
	// are expanded and the resulting files merged in order.
	Files []string `yaml:"files"`
}

// Paths configures the on-disk working layout
type Paths struct {
	// BuildDir holds downloaded raw files, base files and metrics artifacts
	BuildDir string `yaml:"build_dir"`
	// DashboardDir holds one directory per ontology with its result record
	// and rendered report
	DashboardDir string `yaml:"dashboard_dir"`
}

// Pipeline configures change detection and run behavior
type Pipeline struct {
	// RedownloadAfter is the staleness window before a cached raw file is
	// downloaded again
	RedownloadAfter time.Duration `yaml:"redownload_after"`
	// ForceRegenerateAfter is the staleness window after which an unchanged
	// ontology is regenerated anyway
	ForceRegenerateAfter time.Duration `yaml:"force_regenerate_after"`
	// SkipExisting skips any ontology whose result record already exists
	SkipExisting bool `yaml:"skip_existing"`
	// VerifyMinLines is the number of leading lines the downloaded file
	// must have for the sanity check to run
	VerifyMinLines int `yaml:"verify_min_lines"`
	// ScorePrecision is the number of decimal places for impact and reuse scores
	ScorePrecision int `yaml:"score_precision"`
	// DownloadTimeout bounds a single ontology download
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

// Robot configures the external ontology toolchain invocation
type Robot struct {
	// Command is the toolchain executable (default: "robot")
	Command string `yaml:"command"`
	// ExtraPrefixes are additional CURIE prefixes passed to the toolchain
	ExtraPrefixes map[string]string `yaml:"extra_prefixes"`
	// Opts are extra command-line options appended to every invocation
	Opts string `yaml:"opts"`
}

// Publish configures optional NATS result publishing
type Publish struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL string `yaml:"url"`
	// SubjectPrefix is the subject prefix for result events
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Metrics configures the Prometheus endpoint served in watch mode
type Metrics struct {
	// ListenAddr is the address for the /metrics endpoint (empty = disabled)
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Registry: Registry{
			Files: []string{"registry/ontologies.yml"},
		},
		Paths: Paths{
			BuildDir:     "build/ontologies",
			DashboardDir: "dashboard",
		},
		Pipeline: Pipeline{
			RedownloadAfter:      24 * time.Hour,
			ForceRegenerateAfter: 7 * 24 * time.Hour,
			SkipExisting:         false,
			VerifyMinLines:       10,
			ScorePrecision:       2,
			DownloadTimeout:      10 * time.Minute,
		},
		Robot: Robot{
			Command: "robot",
		},
		Publish: Publish{
			SubjectPrefix: "dashboard.result",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Registry.Files) == 0 {
		return fmt.Errorf("registry.files is required")
	}
	if c.Paths.BuildDir == "" {
		return fmt.Errorf("paths.build_dir is required")
	}
	if c.Paths.DashboardDir == "" {
		return fmt.Errorf("paths.dashboard_dir is required")
	}
	if c.Pipeline.RedownloadAfter < 0 {
		return fmt.Errorf("pipeline.redownload_after must not be negative")
	}
	if c.Pipeline.ForceRegenerateAfter < 0 {
		return fmt.Errorf("pipeline.force_regenerate_after must not be negative")
	}
	if c.Pipeline.VerifyMinLines < 1 {
		return fmt.Errorf("pipeline.verify_min_lines must be at least 1")
	}
	if c.Pipeline.ScorePrecision < 0 || c.Pipeline.ScorePrecision > 10 {
		return fmt.Errorf("pipeline.score_precision must be between 0 and 10")
	}
	if c.Robot.Command == "" {
		return fmt.Errorf("robot.command is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if len(other.Registry.Files) > 0 {
		c.Registry.Files = other.Registry.Files
	}

	if other.Paths.BuildDir != "" {
		c.Paths.BuildDir = other.Paths.BuildDir
	}
	if other.Paths.DashboardDir != "" {
		c.Paths.DashboardDir = other.Paths.DashboardDir
	}

	if other.Pipeline.RedownloadAfter != 0 {
		c.Pipeline.RedownloadAfter = other.Pipeline.RedownloadAfter
	}
	if other.Pipeline.ForceRegenerateAfter != 0 {
		c.Pipeline.ForceRegenerateAfter = other.Pipeline.ForceRegenerateAfter
	}
	if other.Pipeline.SkipExisting {
		c.Pipeline.SkipExisting = true
	}
	if other.Pipeline.VerifyMinLines != 0 {
		c.Pipeline.VerifyMinLines = other.Pipeline.VerifyMinLines
	}
	if other.Pipeline.ScorePrecision != 0 {
		c.Pipeline.ScorePrecision = other.Pipeline.ScorePrecision
	}
	if other.Pipeline.DownloadTimeout != 0 {
		c.Pipeline.DownloadTimeout = other.Pipeline.DownloadTimeout
	}

	if other.Robot.Command != "" {
		c.Robot.Command = other.Robot.Command
	}
	if len(other.Robot.ExtraPrefixes) > 0 {
		c.Robot.ExtraPrefixes = other.Robot.ExtraPrefixes
	}
	if other.Robot.Opts != "" {
		c.Robot.Opts = other.Robot.Opts
	}

	if other.Publish.URL != "" {
		c.Publish.URL = other.Publish.URL
	}
	if other.Publish.SubjectPrefix != "" {
		c.Publish.SubjectPrefix = other.Publish.SubjectPrefix
	}

	if other.Metrics.ListenAddr != "" {
		c.Metrics.ListenAddr = other.Metrics.ListenAddr
	}
}
