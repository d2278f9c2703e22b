package tui

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/fsutil"
)

// UIState is the console state restored between runs. It holds only
// toggles; everything else is derived from the registry.
type UIState struct {
	Version      int       `json:"version"`
	TasksVisible bool      `json:"tasks_visible"`
	LastTask     string    `json:"last_task,omitempty"`
	LastTool     string    `json:"last_tool,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CurrentUIStateVersion is the schema version for UI state.
const CurrentUIStateVersion = 1

// UIStateFile is the file name under the state directory.
const UIStateFile = "tui-state.json"

// DefaultUIState returns the default UI state.
func DefaultUIState() *UIState {
	return &UIState{
		Version:   CurrentUIStateVersion,
		UpdatedAt: time.Now(),
	}
}

// UIStateManager persists UIState in the background.
type UIStateManager struct {
	mu      sync.RWMutex
	path    string
	state   *UIState
	dirty   bool
	saveCh  chan struct{}
	closeCh chan struct{}
	closeWg sync.WaitGroup
	once    sync.Once

	debounce time.Duration
}

// NewUIStateManager creates a manager storing state under baseDir.
func NewUIStateManager(baseDir string) *UIStateManager {
	mgr := &UIStateManager{
		path:     filepath.Join(baseDir, UIStateFile),
		state:    DefaultUIState(),
		saveCh:   make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
		debounce: 500 * time.Millisecond,
	}

	mgr.closeWg.Add(1)
	go mgr.backgroundSaver()

	return mgr
}

// Path returns the state file path.
func (m *UIStateManager) Path() string {
	return m.path
}

// Load reads the state file. A missing or unreadable file leaves the
// defaults in place.
func (m *UIStateManager) Load() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var state UIState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil
	}
	if state.Version < CurrentUIStateVersion {
		state.Version = CurrentUIStateVersion
	}

	m.mu.Lock()
	m.state = &state
	m.mu.Unlock()
	return nil
}

// Save writes the state file atomically.
func (m *UIStateManager) Save() error {
	m.mu.RLock()
	state := *m.state
	m.mu.RUnlock()

	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(m.path, data, 0o600)
}

// Get returns the current UI state.
func (m *UIStateManager) Get() UIState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.state
}

// Update mutates the state and schedules a save.
func (m *UIStateManager) Update(fn func(*UIState)) {
	m.mu.Lock()
	fn(m.state)
	m.dirty = true
	m.mu.Unlock()

	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

// SetTasksVisible records the task list toggle.
func (m *UIStateManager) SetTasksVisible(visible bool) {
	m.Update(func(s *UIState) {
		s.TasksVisible = visible
	})
}

// SetSelection records the viewed task and selected tool.
func (m *UIStateManager) SetSelection(task core.TaskID, tool core.InvocationID) {
	m.Update(func(s *UIState) {
		s.LastTask = string(task)
		s.LastTool = string(tool)
	})
}

// Close stops the background saver and flushes pending changes.
func (m *UIStateManager) Close() error {
	var err error
	m.once.Do(func() {
		close(m.closeCh)
		m.closeWg.Wait()

		m.mu.Lock()
		dirty := m.dirty
		m.dirty = false
		m.mu.Unlock()
		if dirty {
			err = m.Save()
		}
	})
	return err
}

func (m *UIStateManager) backgroundSaver() {
	defer m.closeWg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.closeCh:
			return
		case <-m.saveCh:
			select {
			case <-time.After(m.debounce):
			case <-m.closeCh:
				return
			}
		case <-ticker.C:
		}

		m.mu.Lock()
		dirty := m.dirty
		m.dirty = false
		m.mu.Unlock()

		if dirty {
			if err := m.Save(); err != nil {
				m.mu.Lock()
				m.dirty = true
				m.mu.Unlock()
			}
		}
	}
}
