package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codeworkout/nbfix/internal/cellid"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "nbfix.yml"

// DefaultRootDir is the directory holding the notebooks when no
// configuration overrides it.
const DefaultRootDir = "/home/gslee/wGitHub/code-workout-python"

// DefaultFiles are the notebooks repaired when no configuration overrides them.
var DefaultFiles = []string{
	"values.ipynb",
	"logical.ipynb",
	"expressions_dataTypes.ipynb",
	"inputs.ipynb",
	"starting.ipynb",
}

// IDConfig controls generated cell ids
type IDConfig struct {
	Length      *int `yaml:"length,omitempty"`       // Characters kept from a UUID (default 8)
	MaxAttempts *int `yaml:"max_attempts,omitempty"` // Short ids tried before a full UUID (default 16)
}

// RegistryConfig enables a Redis-backed seen-id set
type RegistryConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	Namespace string `yaml:"namespace,omitempty"` // default "default"
	TTL       string `yaml:"ttl,omitempty"`       // Go duration, default 24h

	ttl time.Duration
}

// GitConfig controls the uncommitted-changes guard
type GitConfig struct {
	RequireClean bool `yaml:"require_clean"`
}

// Config represents nbfix.yml
type Config struct {
	Version  string          `yaml:"version"`
	RootDir  string          `yaml:"root_dir"`
	Files    []string        `yaml:"files"`
	IDs      *IDConfig       `yaml:"ids,omitempty"`
	Registry *RegistryConfig `yaml:"registry,omitempty"`
	Git      *GitConfig      `yaml:"git,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Version: "1.0",
		RootDir: DefaultRootDir,
		Files:   append([]string(nil), DefaultFiles...),
	}
	// Defaults always validate
	_ = cfg.Validate()
	return cfg
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.RootDir == "" {
		c.RootDir = DefaultRootDir
	}

	if len(c.Files) == 0 {
		return fmt.Errorf("no files listed")
	}

	filesSeen := make(map[string]bool)
	for _, f := range c.Files {
		if f == "" {
			return fmt.Errorf("files: empty entry")
		}
		if filepath.IsAbs(f) {
			return fmt.Errorf("files: '%s' must be relative to root_dir", f)
		}
		clean := filepath.Clean(f)
		if filesSeen[clean] {
			return fmt.Errorf("files: duplicate entry '%s'", f)
		}
		filesSeen[clean] = true
	}

	if c.IDs == nil {
		c.IDs = &IDConfig{}
	}
	if err := c.IDs.validate(); err != nil {
		return err
	}

	if c.Registry != nil {
		if err := c.Registry.validate(); err != nil {
			return err
		}
	}

	if c.Git == nil {
		c.Git = &GitConfig{}
	}

	return nil
}

func (i *IDConfig) validate() error {
	if i.Length == nil {
		length := cellid.DefaultLength
		i.Length = &length
	}
	if *i.Length < cellid.MinLength || *i.Length > cellid.MaxLength {
		return fmt.Errorf("ids.length must be between %d and %d, got %d", cellid.MinLength, cellid.MaxLength, *i.Length)
	}

	if i.MaxAttempts == nil {
		attempts := cellid.DefaultMaxAttempts
		i.MaxAttempts = &attempts
	}
	if *i.MaxAttempts < 1 {
		return fmt.Errorf("ids.max_attempts must be >= 1, got %d", *i.MaxAttempts)
	}

	return nil
}

func (r *RegistryConfig) validate() error {
	if r.RedisAddr == "" {
		return fmt.Errorf("registry.redis_addr is required when registry is configured")
	}
	if r.Namespace == "" {
		r.Namespace = "default"
	}
	if r.TTL == "" {
		r.TTL = "24h"
	}

	ttl, err := time.ParseDuration(r.TTL)
	if err != nil {
		return fmt.Errorf("registry.ttl: %w", err)
	}
	if ttl < 0 {
		return fmt.Errorf("registry.ttl must be >= 0, got %s", r.TTL)
	}
	r.ttl = ttl

	return nil
}

// TTLDuration returns the parsed registry TTL. Valid after Validate.
func (r *RegistryConfig) TTLDuration() time.Duration {
	return r.ttl
}

// GeneratorOptions converts the id settings for cellid.NewGenerator.
func (c *Config) GeneratorOptions() []cellid.Option {
	return []cellid.Option{
		cellid.WithLength(*c.IDs.Length),
		cellid.WithMaxAttempts(*c.IDs.MaxAttempts),
	}
}

// Paths returns the absolute-or-rooted path of every listed file, in order.
func (c *Config) Paths() []string {
	paths := make([]string, len(c.Files))
	for i, f := range c.Files {
		paths[i] = filepath.Join(c.RootDir, f)
	}
	return paths
}

// Load reads and validates nbfix.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates nbfix.yml content
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist. The boolean reports whether a file was read.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return Default(), false, nil
	}
	return nil, false, err
}
