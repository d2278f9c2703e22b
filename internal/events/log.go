package events

// Event type constants for log events.
const (
	TypeLog = "log"
)

// LogEvent is a status line from a backend or transport, shown in the
// console status bar and streamed over SSE.
type LogEvent struct {
	BaseEvent
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// NewLogEvent creates a new log event.
func NewLogEvent(taskID, level, message string, fields map[string]interface{}) LogEvent {
	return LogEvent{
		BaseEvent: NewBaseEvent(TypeLog, taskID),
		Level:     level,
		Message:   message,
		Fields:    fields,
	}
}
