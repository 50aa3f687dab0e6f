package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/gitsage/tag2changelog/internal/pkg/errors"
)

const (
	// DefaultConfigFileName is the config file looked up in the target directory.
	DefaultConfigFileName = ".tag2changelog.yaml"
	// DefaultConfigFileExt is the default config file extension.
	DefaultConfigFileExt = "yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TAG2CHANGELOG"
)

// keys lists every configuration key; each can be overridden from the
// environment as TAG2CHANGELOG_<KEY> with dots replaced by underscores.
var keys = []string{
	"changelog.path",
	"changelog.urgency",
	"package.name",
	"package.distribution",
	"author.name",
	"author.email",
	"tags.filter",
	"tags.patterns",
	"tags.extended",
	"snapshot.enabled",
	"git.backend",
	"git.command",
	"git.timeout_seconds",
	"compare.backend",
	"compare.cache_size",
	"emitter.command",
	"emitter.timeout_seconds",
	"lock.enabled",
	"release.command",
}

// ViperManager implements the Manager interface using Viper.
type ViperManager struct {
	v          *viper.Viper
	configPath string
}

// NewManager creates a new configuration manager.
// If configPath is empty, it uses DefaultConfigFileName inside dir.
func NewManager(configPath, dir string) *ViperManager {
	v := viper.New()
	v.SetConfigType(DefaultConfigFileExt)

	if configPath == "" {
		configPath = filepath.Join(dir, DefaultConfigFileName)
	}
	v.SetConfigFile(configPath)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults first, nested keys only bind to the environment once known.
	setDefaults(v)
	bindEnvVars(v)

	return &ViperManager{
		v:          v,
		configPath: configPath,
	}
}

// bindEnvVars explicitly binds environment variables for all config keys.
func bindEnvVars(v *viper.Viper) {
	for _, key := range keys {
		_ = v.BindEnv(key, EnvVar(key))
	}
}

// EnvVar returns the environment variable that overrides key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// setDefaults sets the default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("changelog.path", "debian/changelog")
	v.SetDefault("changelog.urgency", "low")

	v.SetDefault("package.name", "")
	v.SetDefault("package.distribution", "")

	v.SetDefault("author.name", "")
	v.SetDefault("author.email", "")

	v.SetDefault("tags.filter", "")
	v.SetDefault("tags.patterns", []string{})
	v.SetDefault("tags.extended", false)

	v.SetDefault("snapshot.enabled", false)

	v.SetDefault("git.backend", GitBackendExec)
	v.SetDefault("git.command", "git")
	v.SetDefault("git.timeout_seconds", 30)

	v.SetDefault("compare.backend", "dpkg")
	v.SetDefault("compare.cache_size", 512)

	v.SetDefault("emitter.command", "git-debchangelog")
	v.SetDefault("emitter.timeout_seconds", 300)

	v.SetDefault("lock.enabled", true)

	v.SetDefault("release.command", "lsb_release")
}

// GetConfigPath returns the path to the configuration file.
func (m *ViperManager) GetConfigPath() string {
	return m.configPath
}

// ConfigExists checks if the configuration file exists.
func (m *ViperManager) ConfigExists() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}

// Load loads the configuration from file, environment, and defaults.
// Priority: flags > env > file > defaults. A missing file is not an error.
func (m *ViperManager) Load() (*Config, error) {
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(err, apperrors.ErrInvalidConfig,
				fmt.Sprintf("failed to read config file %s", m.configPath))
		}
		apperrors.Debug("no config file at %s", m.configPath)
	} else {
		apperrors.Debug("loaded config file %s", m.v.ConfigFileUsed())
	}

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInvalidConfig, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetOverride sets a temporary override for a configuration key.
// This is used for command-line flag overrides that shouldn't persist.
func (m *ViperManager) SetOverride(key string, value interface{}) {
	m.v.Set(key, value)
}

// List returns all configuration values as a map.
func (m *ViperManager) List() map[string]interface{} {
	return m.v.AllSettings()
}
