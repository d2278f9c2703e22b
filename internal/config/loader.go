package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. AGENTMESH_SERVER_PORT.
const EnvPrefix = "AGENTMESH"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: EnvPrefix,
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: EnvPrefix,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (AGENTMESH_*)
// 3. Project config (.agentmesh.yaml in current directory)
// 4. User config (~/.config/agentmesh/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if err := l.readDiscovered(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// readDiscovered reads the user config first and merges the project config
// over it, so project keys win and unset keys fall through.
func (l *Loader) readDiscovered() error {
	l.v.SetConfigType("yaml")
	if dir, err := UserConfigDir(); err == nil {
		l.v.SetConfigName("config")
		l.v.AddConfigPath(dir)
		if err := l.v.ReadInConfig(); err != nil && !isNotFound(err) {
			return fmt.Errorf("reading user config: %w", err)
		}
	}

	project := viper.New()
	project.SetConfigName(ProjectConfigName)
	project.SetConfigType("yaml")
	project.AddConfigPath(".")
	if err := project.ReadInConfig(); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("reading project config: %w", err)
	}
	if err := l.v.MergeConfigMap(project.AllSettings()); err != nil {
		return fmt.Errorf("merging project config: %w", err)
	}
	l.v.SetConfigFile(project.ConfigFileUsed())
	return nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.cors", true)

	l.v.SetDefault("backend.mode", BackendSimulate)
	l.v.SetDefault("backend.url", "ws://localhost:8000/api/v1/task/process")
	l.v.SetDefault("backend.scenario", "search")
	l.v.SetDefault("backend.step_delay", "500ms")

	l.v.SetDefault("session.on_new_submission", "fail")
	l.v.SetDefault("session.title_length", 50)

	l.v.SetDefault("store.enabled", true)
	l.v.SetDefault("store.path", ".agentmesh/history.db")
	l.v.SetDefault("store.retention", "")

	l.v.SetDefault("tui.state_dir", ".agentmesh")
	l.v.SetDefault("tui.show_tasks", false)

	l.v.SetDefault("events.buffer_size", 100)
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns all settings as a map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}
