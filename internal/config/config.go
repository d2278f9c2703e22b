package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	TUI     TUIConfig     `mapstructure:"tui" yaml:"tui"`
	Events  EventsConfig  `mapstructure:"events" yaml:"events"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	CORS bool   `mapstructure:"cors" yaml:"cors"`
}

// Backend modes.
const (
	BackendSimulate  = "simulate"
	BackendWebSocket = "websocket"
)

// BackendConfig selects where agent activity comes from.
type BackendConfig struct {
	// Mode is simulate (in-process scenario) or websocket.
	Mode string `mapstructure:"mode" yaml:"mode"`
	// URL is the WebSocket endpoint in websocket mode.
	URL string `mapstructure:"url" yaml:"url"`
	// Scenario is a built-in scenario name or a YAML file path.
	Scenario  string `mapstructure:"scenario" yaml:"scenario"`
	StepDelay string `mapstructure:"step_delay" yaml:"step_delay"`
}

// StepDelayDuration parses StepDelay. Empty means zero.
func (c BackendConfig) StepDelayDuration() (time.Duration, error) {
	if c.StepDelay == "" {
		return 0, nil
	}
	return time.ParseDuration(c.StepDelay)
}

// SessionConfig configures task lifecycle rules.
type SessionConfig struct {
	// OnNewSubmission is one of fail, complete, reject, concurrent.
	OnNewSubmission string `mapstructure:"on_new_submission" yaml:"on_new_submission"`
	TitleLength     int    `mapstructure:"title_length" yaml:"title_length"`
}

// StoreConfig configures the SQLite task history.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
	// Retention purges finished tasks older than this on open. Empty keeps all.
	Retention string `mapstructure:"retention" yaml:"retention,omitempty"`
}

// RetentionDuration parses Retention. Empty means zero.
func (c StoreConfig) RetentionDuration() (time.Duration, error) {
	if c.Retention == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Retention)
}

// TUIConfig configures the terminal console.
type TUIConfig struct {
	StateDir  string `mapstructure:"state_dir" yaml:"state_dir"`
	ShowTasks bool   `mapstructure:"show_tasks" yaml:"show_tasks"`
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
}
