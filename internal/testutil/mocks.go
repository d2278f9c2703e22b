package testutil

import (
	"context"
	"sync"
)

// MockSubmitter records submitted requests. It satisfies the API's and
// the TUI's submission interfaces.
type MockSubmitter struct {
	mu    sync.Mutex
	texts []string
	err   error
	// OnSubmit, when set, runs after a successful submission.
	OnSubmit func(text string)
}

// NewMockSubmitter creates a submitter that accepts every request.
func NewMockSubmitter() *MockSubmitter {
	return &MockSubmitter{}
}

// SetError makes subsequent submissions fail with err.
func (m *MockSubmitter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Submit records text.
func (m *MockSubmitter) Submit(_ context.Context, text string) error {
	m.mu.Lock()
	err := m.err
	if err == nil {
		m.texts = append(m.texts, text)
	}
	hook := m.OnSubmit
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(text)
	}
	return nil
}

// Submitted returns the accepted requests in order.
func (m *MockSubmitter) Submitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}
