package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUserConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := UserConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(home, ".config", "agentmesh", "config.yaml")
	if path != want {
		t.Errorf("UserConfigPath() = %q, want %q", path, want)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := WriteDefault(path, false)
	if err != nil || !written {
		t.Fatalf("WriteDefault() = %v, %v; want true, nil", written, err)
	}
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	written, err = WriteDefault(path, false)
	if err != nil || written {
		t.Fatalf("WriteDefault() on existing file = %v, %v; want false, nil", written, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "log:\n  level: debug\n" {
		t.Error("existing file was overwritten without force")
	}

	written, err = WriteDefault(path, true)
	if err != nil || !written {
		t.Fatalf("WriteDefault(force) = %v, %v; want true, nil", written, err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != DefaultConfigYAML {
		t.Error("force did not restore the default config")
	}
}
