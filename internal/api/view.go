package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/view"
)

// handleView projects the live snapshot. Query parameters mirror
// view.Toggles: task, tool and tasks_visible.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	toggles := view.Toggles{
		Task: core.TaskID(q.Get("task")),
		Tool: core.InvocationID(q.Get("tool")),
	}
	if raw := q.Get("tasks_visible"); raw != "" {
		visible, err := strconv.ParseBool(raw)
		if err != nil {
			s.respondDomainError(w, core.ErrValidation(core.CodeInvalidSelection, "tasks_visible must be a boolean"))
			return
		}
		toggles.TasksVisible = visible
	}
	s.respondJSON(w, http.StatusOK, view.Project(s.source.Snapshot(), toggles))
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	id := core.InvocationID(chi.URLParam(r, "invocationID"))
	inv, ok := s.source.Tool(id)
	if !ok {
		s.respondDomainError(w, core.ErrNotFound("invocation", string(id)))
		return
	}
	s.respondJSON(w, http.StatusOK, view.Detail(inv))
}
