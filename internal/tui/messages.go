package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/clip"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
)

// StateChangedMsg signals that the snapshot changed. Bursts of change
// notifications are coalesced into one message.
type StateChangedMsg struct {
	Changes int
}

// NoticeMsg carries a backend status line.
type NoticeMsg struct {
	Event events.LogEvent
}

// AnomalyMsg reports an inbound event that was dropped.
type AnomalyMsg struct {
	Event events.AnomalyEvent
}

// SubmittedMsg reports the outcome of handing text to the backend.
type SubmittedMsg struct {
	Err error
}

// CopiedMsg reports the outcome of copying a tool result.
type CopiedMsg struct {
	Result clip.Result
	Err    error
}

// ErrorMsg signals an error.
type ErrorMsg struct {
	Error error
}

// waitForEventBusUpdate blocks until the adapter has a message. A closed
// adapter ends the chain.
func waitForEventBusUpdate(adapter *EventBusAdapter) tea.Cmd {
	return func() tea.Msg {
		return adapter.Next()
	}
}
