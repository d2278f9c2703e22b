package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/registry"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/simulate"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateServer(&cfg.Server)
	v.validateBackend(&cfg.Backend)
	v.validateSession(&cfg.Session)
	v.validateStore(&cfg.Store)
	v.validateTUI(&cfg.TUI)
	v.validateEvents(&cfg.Events)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if strings.TrimSpace(cfg.Host) == "" {
		v.addError("server.host", cfg.Host, "host required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 0 and 65535")
	}
}

func (v *Validator) validateBackend(cfg *BackendConfig) {
	switch cfg.Mode {
	case BackendSimulate:
		if _, err := simulate.Load(cfg.Scenario); err != nil {
			v.addError("backend.scenario", cfg.Scenario, "unknown scenario: "+strings.Join(simulate.BuiltinNames(), ", ")+" or a YAML file")
		}
	case BackendWebSocket:
		u, err := url.Parse(cfg.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			v.addError("backend.url", cfg.URL, "must be a ws:// or wss:// URL")
		}
	default:
		v.addError("backend.mode", cfg.Mode, "must be one of: simulate, websocket")
	}

	if d, err := cfg.StepDelayDuration(); err != nil {
		v.addError("backend.step_delay", cfg.StepDelay, "invalid duration format")
	} else if d < 0 {
		v.addError("backend.step_delay", cfg.StepDelay, "must be non-negative")
	}
}

func (v *Validator) validateSession(cfg *SessionConfig) {
	if _, err := registry.ParsePolicy(cfg.OnNewSubmission); err != nil {
		v.addError("session.on_new_submission", cfg.OnNewSubmission, "must be one of: fail, complete, reject, concurrent")
	}
	if cfg.TitleLength < 4 || cfg.TitleLength > 500 {
		v.addError("session.title_length", cfg.TitleLength, "must be between 4 and 500")
	}
}

func (v *Validator) validateStore(cfg *StoreConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Path == "" {
		v.addError("store.path", cfg.Path, "path required when enabled")
	} else if !isValidPath(cfg.Path) {
		v.addError("store.path", cfg.Path, "invalid file path")
	}

	if d, err := cfg.RetentionDuration(); err != nil {
		v.addError("store.retention", cfg.Retention, "invalid duration format")
	} else if d < 0 {
		v.addError("store.retention", cfg.Retention, "must be non-negative")
	}
}

func (v *Validator) validateTUI(cfg *TUIConfig) {
	if cfg.StateDir == "" {
		v.addError("tui.state_dir", cfg.StateDir, "directory required")
	}
}

func (v *Validator) validateEvents(cfg *EventsConfig) {
	if cfg.BufferSize <= 0 || cfg.BufferSize > 100000 {
		v.addError("events.buffer_size", cfg.BufferSize, "must be between 1 and 100000")
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
