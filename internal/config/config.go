// Package config loads the project configuration from .planmerge/config.yaml.
// The file is read once at startup; every component receives its settings
// from here rather than reading the file itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/planmerge/internal/budget"
	"github.com/felixgeelhaar/planmerge/internal/errors"
)

// DefaultDir is the project-local directory holding configuration and state.
const DefaultDir = ".planmerge"

// Config is the full project configuration.
type Config struct {
	// MergeThreshold is the minimum similarity for consolidating two
	// recommendations. Zero means the engine default.
	MergeThreshold float64 `yaml:"merge_threshold"`
	// RelatednessThreshold is the minimum similarity for treating a plan
	// section as covering a recommendation's topic. Zero means the
	// resolver default.
	RelatednessThreshold float64 `yaml:"relatedness_threshold"`
	// StrictResolve routes enhancements to manual review instead of
	// auto-applying them.
	StrictResolve bool `yaml:"strict_resolve"`
	// PhaseTablePath points at a YAML phase keyword table. Empty means
	// the built-in table.
	PhaseTablePath string `yaml:"phase_table"`
	// Exclusivity overrides the default mutual-exclusion groups.
	Exclusivity [][]string `yaml:"exclusivity"`

	Budget budget.Limits `yaml:"budget"`
	Backup BackupConfig  `yaml:"backup"`
	Paths  PathsConfig   `yaml:"paths"`
	Log    LogConfig     `yaml:"log"`
}

// BackupConfig controls archive retention.
type BackupConfig struct {
	// Dir is where archives and the backup manifest live.
	Dir string `yaml:"dir"`
	// Retention is how many backups to keep per phase when pruning.
	Retention int `yaml:"retention"`
}

// PathsConfig locates persisted state.
type PathsConfig struct {
	StorePath  string `yaml:"store"`
	StatusPath string `yaml:"status"`
	LedgerPath string `yaml:"ledger"`
	PlanDir    string `yaml:"plan_dir"`
	ReviewDir  string `yaml:"review_dir"`
}

// LogConfig controls logger setup.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Backup: BackupConfig{
			Dir:       filepath.Join(DefaultDir, "backups"),
			Retention: 5,
		},
		Paths: PathsConfig{
			StorePath:  filepath.Join(DefaultDir, "recommendations.json"),
			StatusPath: filepath.Join(DefaultDir, "phase-status.json"),
			LedgerPath: filepath.Join(DefaultDir, "costs.jsonl"),
			PlanDir:    "plans",
			ReviewDir:  filepath.Join(DefaultDir, "review"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath is the conventional config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir, "config.yaml")
}

// Load reads the configuration at path, falling back to defaults when the
// file does not exist. Fields left empty in the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// applyDefaults fills fields the file left empty.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Backup.Dir == "" {
		c.Backup.Dir = def.Backup.Dir
	}
	if c.Backup.Retention == 0 {
		c.Backup.Retention = def.Backup.Retention
	}
	if c.Paths.StorePath == "" {
		c.Paths.StorePath = def.Paths.StorePath
	}
	if c.Paths.StatusPath == "" {
		c.Paths.StatusPath = def.Paths.StatusPath
	}
	if c.Paths.LedgerPath == "" {
		c.Paths.LedgerPath = def.Paths.LedgerPath
	}
	if c.Paths.PlanDir == "" {
		c.Paths.PlanDir = def.Paths.PlanDir
	}
	if c.Paths.ReviewDir == "" {
		c.Paths.ReviewDir = def.Paths.ReviewDir
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.MergeThreshold < 0 || c.MergeThreshold > 1 {
		return errors.NewConfigInvalidError(
			fmt.Sprintf("merge_threshold must be in [0,1], got %v", c.MergeThreshold))
	}
	if c.RelatednessThreshold < 0 || c.RelatednessThreshold > 1 {
		return errors.NewConfigInvalidError(
			fmt.Sprintf("relatedness_threshold must be in [0,1], got %v", c.RelatednessThreshold))
	}
	if c.Backup.Retention < 0 {
		return errors.NewConfigInvalidError(
			fmt.Sprintf("backup.retention must be non-negative, got %d", c.Backup.Retention))
	}
	if err := c.Budget.Validate(); err != nil {
		return errors.NewConfigInvalidError(err.Error())
	}
	for i, group := range c.Exclusivity {
		if len(group) < 2 {
			return errors.NewConfigInvalidError(
				fmt.Sprintf("exclusivity group %d needs at least two terms", i))
		}
	}
	return nil
}
