package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/config"
)

// useTestConfig installs a config rooted in a temp dir for the duration of
// the test.
func useTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{
		Log:     config.LogConfig{Level: "error", Format: "text"},
		Server:  config.ServerConfig{Host: "localhost", Port: 8080, CORS: true},
		Backend: config.BackendConfig{Mode: config.BackendSimulate, Scenario: "search", StepDelay: "1ms"},
		Session: config.SessionConfig{OnNewSubmission: "fail", TitleLength: 50},
		Store:   config.StoreConfig{Enabled: true, Path: filepath.Join(dir, "history.db")},
		TUI:     config.TUIConfig{StateDir: dir},
		Events:  config.EventsConfig{BufferSize: 100},
	}
	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
	return c
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String()
}
