package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

//go:embed migrations/002_add_event_turn.sql
var migrationV2 string

// Paging limits for Query. MaxPage keeps the row offset well inside int64.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 1_000_000
)

// TaskStore keeps task history and the journal of applied events in SQLite.
// Times are stored in UTC so that text comparison orders them.
type TaskStore struct {
	dbPath string
	db     *sql.DB
	mu     sync.RWMutex
	now    func() time.Time
}

// TaskStoreOption configures the store.
type TaskStoreOption func(*TaskStore)

// WithClock sets the clock used to stamp journal entries.
func WithClock(now func() time.Time) TaskStoreOption {
	return func(s *TaskStore) {
		s.now = now
	}
}

// NewTaskStore opens (creating if needed) the database at dbPath.
func NewTaskStore(dbPath string, opts ...TaskStoreOption) (*TaskStore, error) {
	s := &TaskStore{
		dbPath: dbPath,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *TaskStore) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *TaskStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *TaskStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet.
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	if version < 2 {
		if _, err := s.db.Exec(migrationV2); err != nil {
			return fmt.Errorf("applying migration v2: %w", err)
		}
	}
	return nil
}

// SaveTask inserts or updates a task.
func (s *TaskStore) SaveTask(ctx context.Context, task *core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, seq, title, description, status, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			updated_at = excluded.updated_at
	`,
		string(task.ID), task.Seq, task.Title, task.Description, string(task.Status),
		nullableString(task.Reason), task.CreatedAt.UTC(), task.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting task %s: %w", task.ID, err)
	}
	return nil
}

// AppendEvent journals an applied event.
func (s *TaskStore) AppendEvent(ctx context.Context, taskID core.TaskID, ev events.Inbound) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", ev.EventType(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_events (task_id, type, payload, recorded_at, turn_id)
		VALUES (?, ?, ?, ?, ?)
	`, nullableString(string(taskID)), ev.EventType(), string(payload), s.now().UTC(), nullableString(turnOf(ev)))
	if err != nil {
		return fmt.Errorf("appending %s event: %w", ev.EventType(), err)
	}
	return nil
}

func turnOf(ev events.Inbound) string {
	switch e := ev.(type) {
	case events.TurnStartedEvent:
		return e.TurnID
	case events.ThinkingUpdatedEvent:
		return e.TurnID
	case events.ToolInvokedEvent:
		return e.TurnID
	case events.ResponseAppendedEvent:
		return e.TurnID
	}
	return ""
}

// LoadTasks returns every task in creation order.
func (s *TaskStore) LoadTasks(ctx context.Context) ([]*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, title, description, status, reason, created_at, updated_at
		FROM tasks ORDER BY seq ASC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// GetTask returns one task, or a not_found error.
func (s *TaskStore) GetTask(ctx context.Context, id core.TaskID) (*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, title, description, status, reason, created_at, updated_at
		FROM tasks WHERE id = ?
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", id, err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, core.ErrNotFound("task", string(id))
	}
	return tasks[0], nil
}

// TaskQuery filters a page of task history.
type TaskQuery struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Status   string `json:"status,omitempty"`
	// Name matches task titles containing it.
	Name string `json:"task_name,omitempty"`
}

// TaskPage is one page of task history, newest first.
type TaskPage struct {
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Tasks    []*core.Task `json:"tasks"`
}

// Normalize applies defaults and validates the query.
func (q TaskQuery) Normalize() (TaskQuery, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Page < 1 || q.Page > MaxPage {
		return q, core.ErrValidation(core.CodeInvalidPage, fmt.Sprintf("page must be between 1 and %d", MaxPage))
	}
	if q.PageSize < 1 || q.PageSize > MaxPageSize {
		return q, core.ErrValidation(core.CodeInvalidPageSize, fmt.Sprintf("page_size must be between 1 and %d", MaxPageSize))
	}
	if q.Status != "" {
		status, err := parseQueryStatus(q.Status)
		if err != nil {
			return q, err
		}
		q.Status = string(status)
	}
	q.Name = strings.TrimSpace(q.Name)
	return q, nil
}

// parseQueryStatus also accepts the backend's "success" for completed.
func parseQueryStatus(s string) (core.TaskStatus, error) {
	if strings.EqualFold(strings.TrimSpace(s), "success") {
		return core.TaskStatusCompleted, nil
	}
	return core.ParseTaskStatus(s)
}

// Query returns a page of tasks ordered by creation time, newest first.
func (s *TaskStore) Query(ctx context.Context, q TaskQuery) (*TaskPage, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	var (
		conditions = []string{"1=1"}
		args       []any
	)
	if q.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, q.Status)
	}
	if q.Name != "" {
		conditions = append(conditions, "title LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q.Name)+"%")
	}
	where := strings.Join(conditions, " AND ")

	s.mu.RLock()
	defer s.mu.RUnlock()

	page := &TaskPage{Page: q.Page, PageSize: q.PageSize, Tasks: []*core.Task{}}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE "+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, title, description, status, reason, created_at, updated_at
		FROM tasks WHERE `+where+`
		ORDER BY created_at DESC, seq DESC
		LIMIT ? OFFSET ?
	`, append(args, q.PageSize, (q.Page-1)*q.PageSize)...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if tasks != nil {
		page.Tasks = tasks
	}
	return page, nil
}

// JournalEntry is one recorded event.
type JournalEntry struct {
	ID         int64          `json:"id"`
	TaskID     core.TaskID    `json:"task_id,omitempty"`
	TurnID     core.TurnID    `json:"turn_id,omitempty"`
	Type       string         `json:"type"`
	Event      events.Inbound `json:"event"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// Journal returns the events applied to a task, in order.
func (s *TaskStore) Journal(ctx context.Context, taskID core.TaskID) ([]JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, turn_id, type, payload, recorded_at
		FROM task_events WHERE task_id = ? ORDER BY id ASC
	`, string(taskID))
	if err != nil {
		return nil, fmt.Errorf("loading journal for %s: %w", taskID, err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			entry      JournalEntry
			task, turn sql.NullString
			payload    string
		)
		if err := rows.Scan(&entry.ID, &task, &turn, &entry.Type, &payload, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		entry.TaskID = core.TaskID(task.String)
		entry.TurnID = core.TurnID(turn.String)
		ev, err := events.DecodeInbound(entry.Type, []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decoding journal entry %d: %w", entry.ID, err)
		}
		entry.Event = ev
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}

// Purge deletes terminal tasks last updated before cutoff, with their
// journal entries. It returns how many tasks were removed.
func (s *TaskStore) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	terminal := []any{string(core.TaskStatusCompleted), string(core.TaskStatusFailed), cutoff.UTC()}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM task_events WHERE task_id IN (
			SELECT id FROM tasks WHERE status IN (?, ?) AND updated_at < ?
		)
	`, terminal...); err != nil {
		return 0, fmt.Errorf("purging journal: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE status IN (?, ?) AND updated_at < ?`, terminal...)
	if err != nil {
		return 0, fmt.Errorf("purging tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged tasks: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return int(n), nil
}

func scanTasks(rows *sql.Rows) ([]*core.Task, error) {
	var tasks []*core.Task
	for rows.Next() {
		var (
			task   core.Task
			id     string
			status string
			reason sql.NullString
		)
		if err := rows.Scan(&id, &task.Seq, &task.Title, &task.Description, &status,
			&reason, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		task.ID = core.TaskID(id)
		task.Status = core.TaskStatus(status)
		if reason.Valid {
			task.Reason = reason.String
		}
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
