package api

import (
	"errors"
	"net/http"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
)

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatMalformed:
		return http.StatusBadRequest, true
	case core.ErrCatNotFound, core.ErrCatOrphaned:
		return http.StatusNotFound, true
	case core.ErrCatTransition:
		return http.StatusConflict, true
	case core.ErrCatTransport:
		return http.StatusBadGateway, true
	default:
		return http.StatusInternalServerError, true
	}
}

// statusFor maps any error to an HTTP status.
func statusFor(err error) int {
	if status, ok := httpStatusForDomainError(err); ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondDomainError writes err with its mapped status. Internal failures
// are logged and hidden from the client.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		s.respondError(w, status, "internal server error")
		return
	}
	s.respondError(w, status, err.Error())
}
