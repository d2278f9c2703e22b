package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

// SubmitRequest is the body of POST /tasks.
type SubmitRequest struct {
	Text string `json:"text"`
}

// Envelope wraps history query results as {code, message, data}.
type Envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// TaskDetail is a task with its timeline and tool invocations.
type TaskDetail struct {
	Task    *core.Task             `json:"task"`
	Turns   []*core.AgentTurn      `json:"turns"`
	Tools   []*core.ToolInvocation `json:"tools"`
	Journal []state.JournalEntry   `json:"journal,omitempty"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Snapshot()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks":       snap.Tasks,
		"active_task": snap.ActiveTask,
		"running":     snap.RunningCount(),
	})
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	if s.submitter == nil {
		s.respondError(w, http.StatusServiceUnavailable, "no backend configured")
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondDomainError(w, core.ErrValidation(core.CodeEmptyText, "text must not be empty"))
		return
	}

	if err := s.submitter.Submit(r.Context(), req.Text); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.logger.Info("task submitted", "chars", len(req.Text))
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

// handleQueryTasks pages through persisted history. Every outcome,
// including failures, is wrapped in an Envelope.
func (s *Server) handleQueryTasks(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, Envelope{
			Code:    http.StatusServiceUnavailable,
			Message: "task history is disabled",
		})
		return
	}

	var q state.TaskQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil && !errors.Is(err, io.EOF) {
		s.respondJSON(w, http.StatusBadRequest, Envelope{
			Code:    http.StatusBadRequest,
			Message: "invalid request body",
		})
		return
	}

	page, err := s.history.Query(r.Context(), q)
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			s.logger.Error("task query failed", "error", err)
			msg = "internal server error while querying tasks"
		}
		s.respondJSON(w, status, Envelope{Code: status, Message: msg})
		return
	}
	s.respondJSON(w, http.StatusOK, Envelope{Code: http.StatusOK, Message: "success", Data: page})
}

// handleGetTask serves live state when the task is known to this process,
// and falls back to persisted history otherwise. ?journal=true adds the
// recorded inbound events.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "taskID"))

	detail := TaskDetail{
		Turns: []*core.AgentTurn{},
		Tools: []*core.ToolInvocation{},
	}
	snap := s.source.Snapshot()
	if task, ok := snap.Task(id); ok {
		detail.Task = task
		detail.Turns = snap.TurnsFor(id)
		detail.Tools = snap.ToolsFor(id)
	} else if s.history != nil {
		task, err := s.history.GetTask(r.Context(), id)
		if err != nil {
			s.respondDomainError(w, err)
			return
		}
		detail.Task = task
	} else {
		s.respondDomainError(w, core.ErrNotFound("task", string(id)))
		return
	}

	if r.URL.Query().Get("journal") == "true" && s.history != nil {
		journal, err := s.history.Journal(r.Context(), id)
		if err != nil {
			s.respondDomainError(w, err)
			return
		}
		detail.Journal = journal
	}
	s.respondJSON(w, http.StatusOK, detail)
}
