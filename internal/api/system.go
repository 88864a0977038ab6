package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/jarvis-core/internal/audit"
	"github.com/nerrad567/jarvis-core/internal/auth"
)

// handleStatus returns the cached status report for every registered
// device.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.registry.Snapshot(),
	})
}

// handleDeviceHealth returns reachability data for every registered
// device.
func (s *Server) handleDeviceHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.registry.HealthSnapshot(),
	})
}

// handleHistory returns the command audit trail.
//
// Regular users see only their own commands; admins may filter by any
// user or see everything.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "command history is not enabled")
		return
	}

	id := callerIdentity(r)
	q := r.URL.Query()

	filter := audit.Filter{
		UserID: q.Get("user_id"),
		Status: q.Get("status"),
		Kind:   q.Get("kind"),
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	if !id.hasRole(auth.RoleAdmin) {
		filter.UserID = id.userID
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing command history", "error", err)
		writeInternalError(w, "failed to read command history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSecurityStats returns authorization and rate-limit counters.
// Admin only.
func (s *Server) handleSecurityStats(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"auth":     s.gate.GetStats(),
		"registry": s.registry.GetStats(),
	}
	if s.limiter != nil {
		payload["rate_limit"] = map[string]any{
			"rejected": s.limiter.Rejected(),
		}
	}
	writeJSON(w, http.StatusOK, payload)
}
