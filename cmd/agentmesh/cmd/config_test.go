package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/config"
)

func TestConfigInit(t *testing.T) {
	dir := isolate(t)
	configForce, configUser = false, false
	t.Cleanup(func() { configForce, configUser = false, false })

	var out bytes.Buffer
	configInitCmd.SetOut(&out)
	defer configInitCmd.SetOut(nil)

	require.NoError(t, runConfigInit(configInitCmd, nil))
	assert.Contains(t, out.String(), "Wrote .agentmesh.yaml")
	data, err := os.ReadFile(filepath.Join(dir, ".agentmesh.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, string(data))

	out.Reset()
	require.NoError(t, runConfigInit(configInitCmd, nil))
	assert.Contains(t, out.String(), "already exists")

	out.Reset()
	configForce = true
	require.NoError(t, runConfigInit(configInitCmd, nil))
	assert.Contains(t, out.String(), "Wrote")
}

func TestConfigInit_User(t *testing.T) {
	dir := isolate(t)
	configUser = true
	t.Cleanup(func() { configUser = false })

	var out bytes.Buffer
	configInitCmd.SetOut(&out)
	defer configInitCmd.SetOut(nil)

	require.NoError(t, runConfigInit(configInitCmd, nil))
	_, err := os.Stat(filepath.Join(dir, ".config", "agentmesh", "config.yaml"))
	assert.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	isolate(t)
	require.NoError(t, initConfig())

	var out bytes.Buffer
	configShowCmd.SetOut(&out)
	defer configShowCmd.SetOut(nil)

	require.NoError(t, runConfigShow(configShowCmd, nil))

	var shown map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &shown))
	assert.Equal(t, "simulate", shown["backend"]["mode"])
	assert.Equal(t, 100, shown["events"]["buffer_size"])
	assert.Equal(t, "fail", shown["session"]["on_new_submission"])
}
