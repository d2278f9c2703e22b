package state

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// StoreOptions configures store creation.
type StoreOptions struct {
	// Retention purges terminal tasks older than this on open. Zero keeps
	// everything.
	Retention time.Duration
}

// OpenTaskStore opens the task store at path, forcing a .db extension
// (e.g. ".agentmesh/history.db").
func OpenTaskStore(path string) (*TaskStore, error) {
	return OpenTaskStoreWithOptions(path, StoreOptions{})
}

// OpenTaskStoreWithOptions opens the task store and applies retention.
func OpenTaskStoreWithOptions(path string, opts StoreOptions) (*TaskStore, error) {
	if !strings.HasSuffix(path, ".db") {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
	}

	store, err := NewTaskStore(path)
	if err != nil {
		return nil, err
	}
	if opts.Retention > 0 {
		if _, err := store.Purge(context.Background(), time.Now().Add(-opts.Retention)); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}
