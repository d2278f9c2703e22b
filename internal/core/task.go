package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TaskID uniquely identifies a task.
type TaskID string

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// DefaultTitleLength is the number of characters kept from the request text.
const DefaultTitleLength = 50

// ParseTaskStatus parses a status string.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(strings.ToLower(strings.TrimSpace(s))) {
	case TaskStatusPending:
		return TaskStatusPending, nil
	case TaskStatusRunning:
		return TaskStatusRunning, nil
	case TaskStatusCompleted:
		return TaskStatusCompleted, nil
	case TaskStatusFailed:
		return TaskStatusFailed, nil
	}
	return "", ErrValidation(CodeInvalidStatus, fmt.Sprintf("unknown task status %q", s))
}

// IsTerminal reports whether no further transition can occur from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents one user-initiated unit of work.
type Task struct {
	ID          TaskID     `json:"id"`
	Seq         int64      `json:"seq"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask creates a running task from the originating request text.
func NewTask(id TaskID, seq int64, text string, titleLen int) *Task {
	now := time.Now()
	return &Task{
		ID:          id,
		Seq:         seq,
		Title:       Title(text, titleLen),
		Description: text,
		Status:      TaskStatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkCompleted transitions the task to completed state.
func (t *Task) MarkCompleted() error {
	if t.Status != TaskStatusRunning {
		return ErrTransition(CodeNotRunning, fmt.Sprintf("cannot complete task %s in %s state", t.ID, t.Status))
	}
	t.Status = TaskStatusCompleted
	t.UpdatedAt = time.Now()
	return nil
}

// MarkFailed transitions the task to failed state.
func (t *Task) MarkFailed(reason string) error {
	if t.Status != TaskStatusRunning {
		return ErrTransition(CodeNotRunning, fmt.Sprintf("cannot fail task %s in %s state", t.ID, t.Status))
	}
	t.Status = TaskStatusFailed
	t.Reason = reason
	t.UpdatedAt = time.Now()
	return nil
}

// IsRunning reports whether the task is running.
func (t *Task) IsRunning() bool {
	return t.Status == TaskStatusRunning
}

// Clone returns a copy safe to hand to readers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Title derives a short label from the request text. Whitespace runs are
// collapsed and text longer than maxLen characters is cut and ellipsized.
func Title(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultTitleLength
	}
	collapsed := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(collapsed) <= maxLen {
		return collapsed
	}
	runes := []rune(collapsed)
	return strings.TrimRight(string(runes[:maxLen]), " ") + "..."
}

// IsBlank reports whether text is empty or whitespace only.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
