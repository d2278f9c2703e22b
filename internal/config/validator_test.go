package config

import (
	"errors"
	"strings"
	"testing"
)

// validConfig returns a valid configuration for testing.
func validConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
			CORS: true,
		},
		Backend: BackendConfig{
			Mode:      BackendSimulate,
			URL:       "ws://localhost:8000/api/v1/task/process",
			Scenario:  "search",
			StepDelay: "500ms",
		},
		Session: SessionConfig{
			OnNewSubmission: "fail",
			TitleLength:     50,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    ".agentmesh/history.db",
		},
		TUI: TUIConfig{
			StateDir: ".agentmesh",
		},
		Events: EventsConfig{
			BufferSize: 100,
		},
	}
}

func TestValidator_ValidConfig(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidator_InvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"empty host", func(c *Config) { c.Server.Host = " " }, "server.host"},
		{"port range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"backend mode", func(c *Config) { c.Backend.Mode = "grpc" }, "backend.mode"},
		{"unknown scenario", func(c *Config) { c.Backend.Scenario = "no-such-scenario" }, "backend.scenario"},
		{"websocket url scheme", func(c *Config) {
			c.Backend.Mode = BackendWebSocket
			c.Backend.URL = "http://localhost:8000"
		}, "backend.url"},
		{"step delay format", func(c *Config) { c.Backend.StepDelay = "soon" }, "backend.step_delay"},
		{"negative step delay", func(c *Config) { c.Backend.StepDelay = "-1s" }, "backend.step_delay"},
		{"policy", func(c *Config) { c.Session.OnNewSubmission = "queue" }, "session.on_new_submission"},
		{"title length", func(c *Config) { c.Session.TitleLength = 2 }, "session.title_length"},
		{"store path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"retention", func(c *Config) { c.Store.Retention = "forever" }, "store.retention"},
		{"state dir", func(c *Config) { c.TUI.StateDir = "" }, "tui.state_dir"},
		{"buffer size", func(c *Config) { c.Events.BufferSize = 0 }, "events.buffer_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error type = %T, want ValidationErrors", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %s in %v", tt.field, err)
			}
		})
	}
}

func TestValidator_DisabledStoreSkipsPath(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Enabled = false
	cfg.Store.Path = ""
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidator_WebSocketIgnoresScenario(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.Mode = BackendWebSocket
	cfg.Backend.Scenario = "not-used"
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "server.port", Value: -1, Message: "must be between 0 and 65535"},
		{Field: "log.level", Value: "loud", Message: "must be one of: debug, info, warn, error"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "server.port") || !strings.Contains(msg, "log.level") {
		t.Errorf("Error() = %q", msg)
	}
	if !errs.HasErrors() {
		t.Error("HasErrors() = false")
	}
}
