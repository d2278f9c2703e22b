package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/fsutil"
)

// ProjectConfigName is the base name of the per-directory config file.
const ProjectConfigName = ".agentmesh"

// UserConfigDir returns ~/.config/agentmesh.
func UserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "agentmesh"), nil
}

// UserConfigPath returns the user-level config file path.
func UserConfigPath() (string, error) {
	dir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes DefaultConfigYAML to path. An existing file is kept
// unless force is set; the returned bool reports whether a file was written.
func WriteDefault(path string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !os.IsNotExist(err) {
			return false, fmt.Errorf("checking config: %w", err)
		}
	}
	if err := fsutil.WriteFileAtomic(path, []byte(DefaultConfigYAML), 0o600); err != nil {
		return false, fmt.Errorf("writing config: %w", err)
	}
	return true, nil
}
