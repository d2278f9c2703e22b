package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFileScoped_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	want := "{\"event\":\"agent_result\"}\n"
	if err := os.WriteFile(path, []byte(want), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFileScoped(path)
	if err != nil {
		t.Fatalf("ReadFileScoped() error = %v", err)
	}
	if string(got) != want {
		t.Errorf("ReadFileScoped() = %q, want %q", got, want)
	}
}

func TestReadFileScoped_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.jsonl")},
		{"missing directory", filepath.Join(dir, "nodir", "file.jsonl")},
		{"directory", dir},
		{"root", string(filepath.Separator)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadFileScoped(tt.path); err == nil {
				t.Errorf("ReadFileScoped(%q) expected error", tt.path)
			}
		})
	}
}

func TestWriteFileAtomic_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "tui.json")

	if err := WriteFileAtomic(path, []byte(`{"tasks_visible":true}`), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"tasks_visible":true}` {
		t.Errorf("content = %q", got)
	}
}

func TestWriteFileAtomic_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteFileAtomic(path, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("new"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFileScoped(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}
