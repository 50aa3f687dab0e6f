// Package config provides configuration management for tag2changelog.
package config

import (
	"fmt"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

// Git backends.
const (
	GitBackendExec  = "exec"
	GitBackendGoGit = "gogit"
)

// Config represents the complete tag2changelog configuration.
type Config struct {
	Changelog ChangelogConfig `mapstructure:"changelog"`
	Package   PackageConfig   `mapstructure:"package"`
	Author    AuthorConfig    `mapstructure:"author"`
	Tags      TagsConfig      `mapstructure:"tags"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Git       GitConfig       `mapstructure:"git"`
	Compare   CompareConfig   `mapstructure:"compare"`
	Emitter   EmitterConfig   `mapstructure:"emitter"`
	Lock      LockConfig      `mapstructure:"lock"`
	Release   ReleaseConfig   `mapstructure:"release"`
}

// ChangelogConfig contains changelog file settings.
type ChangelogConfig struct {
	// Path is relative to the target directory unless absolute.
	Path    string `mapstructure:"path"`
	Urgency string `mapstructure:"urgency"`
}

// PackageConfig contains package metadata.
type PackageConfig struct {
	Name         string `mapstructure:"name"`
	Distribution string `mapstructure:"distribution"`
}

// AuthorConfig contains the stanza author identity.
type AuthorConfig struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

// TagsConfig contains tag selection and version derivation settings.
type TagsConfig struct {
	Filter string `mapstructure:"filter"`
	// Patterns run before any patterns given on the command line.
	Patterns []string `mapstructure:"patterns"`
	// Extended switches substitution regexes from BRE to ERE syntax.
	Extended bool `mapstructure:"extended"`
}

// SnapshotConfig contains snapshot entry settings.
type SnapshotConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// GitConfig contains version-control settings.
type GitConfig struct {
	Backend        string `mapstructure:"backend"`
	Command        string `mapstructure:"command"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CompareConfig contains version comparison settings.
type CompareConfig struct {
	Backend   string `mapstructure:"backend"`
	CacheSize int    `mapstructure:"cache_size"`
}

// EmitterConfig contains changelog writer settings.
type EmitterConfig struct {
	Command        string `mapstructure:"command"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LockConfig contains run lock settings.
type LockConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ReleaseConfig contains distribution codename lookup settings.
type ReleaseConfig struct {
	Command string `mapstructure:"command"`
}

// Validate checks values that cannot be checked by their consumers.
func (c *Config) Validate() error {
	switch c.Git.Backend {
	case GitBackendExec, GitBackendGoGit:
	default:
		return invalid("git.backend", c.Git.Backend, "use exec or gogit")
	}
	if c.Git.TimeoutSeconds <= 0 {
		return invalid("git.timeout_seconds", c.Git.TimeoutSeconds, "must be positive")
	}
	if c.Emitter.TimeoutSeconds <= 0 {
		return invalid("emitter.timeout_seconds", c.Emitter.TimeoutSeconds, "must be positive")
	}
	if c.Compare.CacheSize < 0 {
		return invalid("compare.cache_size", c.Compare.CacheSize, "must not be negative")
	}
	return nil
}

func invalid(key string, value interface{}, hint string) error {
	return apperrors.New(apperrors.ErrInvalidConfig,
		fmt.Sprintf("invalid value %v for %s: %s", value, key, hint)).
		WithContext("key", key)
}

// Manager defines the interface for configuration management.
type Manager interface {
	Load() (*Config, error)
	SetOverride(key string, value interface{})
	List() map[string]interface{}
	GetConfigPath() string
}
