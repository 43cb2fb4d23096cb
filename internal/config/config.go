package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/wcq/internal/ignore"
	"github.com/roach88/wcq/internal/queue"
)

// DuplicateProps selects how a finalization record with a repeated
// property name is treated.
type DuplicateProps string

const (
	DuplicatePropsReject   DuplicateProps = "reject"
	DuplicatePropsLastWins DuplicateProps = "last-wins"
)

// DefaultAdmDir is the administrative directory name inside a working copy.
const DefaultAdmDir = ".svn"

// DefaultDatabaseName is the metadata database file inside the adm dir.
const DefaultDatabaseName = "wcq.db"

// Config represents the complete wcq configuration
type Config struct {
	Database string       `yaml:"database"`
	AdmDir   string       `yaml:"adm_dir"`
	Log      LogConfig    `yaml:"log"`
	Queue    QueueConfig  `yaml:"queue"`
	Ignore   IgnoreConfig `yaml:"ignore"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// QueueConfig configures finalization queues
type QueueConfig struct {
	DuplicateProps DuplicateProps `yaml:"duplicate_props"`
}

// IgnoreConfig configures the global ignore list
type IgnoreConfig struct {
	Global []string `yaml:"global"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// IsAdmDir reports whether name is an administrative directory name.
// The default name is always recognised alongside the configured one.
func (c *Config) IsAdmDir(name string) bool {
	return name == c.AdmDir || name == DefaultAdmDir
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Database = os.ExpandEnv(c.Database)
	c.AdmDir = os.ExpandEnv(c.AdmDir)
	for i, p := range c.Ignore.Global {
		c.Ignore.Global[i] = os.ExpandEnv(p)
	}
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.AdmDir == "" {
		c.AdmDir = DefaultAdmDir
	}
	if c.Database == "" {
		c.Database = filepath.Join(c.AdmDir, DefaultDatabaseName)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Queue.DuplicateProps == "" {
		c.Queue.DuplicateProps = DuplicatePropsReject
	}
	if c.Ignore.Global == nil {
		c.Ignore.Global = append([]string(nil), ignore.DefaultGlobalIgnores...)
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format: %s (must be text or json)", c.Log.Format)
	}

	switch c.Queue.DuplicateProps {
	case DuplicatePropsReject, DuplicatePropsLastWins:
	default:
		return fmt.Errorf("invalid queue.duplicate_props: %s (must be reject or last-wins)", c.Queue.DuplicateProps)
	}

	if _, err := ignore.Compile(c.Ignore.Global); err != nil {
		return fmt.Errorf("ignore.global: %w", err)
	}

	return nil
}

// QueueOptions translates the queue section into queue options.
func (c *Config) QueueOptions() []queue.Option {
	if c.Queue.DuplicateProps == DuplicatePropsLastWins {
		return []queue.Option{queue.WithDuplicatePropPolicy(queue.LastPropWins)}
	}
	return nil
}
