package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/jarvis-core/internal/device"
	"github.com/nerrad567/jarvis-core/internal/intent"
	"github.com/nerrad567/jarvis-core/internal/orchestrator"
)

// commandRequest is the request body for the text and structured
// command endpoints.
type commandRequest struct {
	Input string `json:"input"`

	// Confidence carries the transcription confidence for voice-derived
	// text. Omitted or zero for typed input.
	Confidence float64 `json:"confidence,omitempty"`
}

// deviceCommandRequest is the request body for direct device commands.
type deviceCommandRequest struct {
	Room   string        `json:"room,omitempty"`
	Params device.Params `json:"params,omitempty"`
}

// handleCommand submits a free-text command.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	req, id, ok := s.decodeCommand(w, r)
	if !ok {
		return
	}

	out := s.orch.HandleText(r.Context(), orchestrator.Request{
		UserID:     id.userID,
		Token:      id.sessionToken,
		Input:      req.Input,
		Confidence: req.Confidence,
	})
	writeJSON(w, outcomeStatusCode(out), out)
}

// handleStructuredCommand submits a structured command line.
func (s *Server) handleStructuredCommand(w http.ResponseWriter, r *http.Request) {
	req, id, ok := s.decodeCommand(w, r)
	if !ok {
		return
	}

	out := s.orch.HandleStructured(r.Context(), orchestrator.Request{
		UserID: id.userID,
		Token:  id.sessionToken,
		Input:  req.Input,
	})
	writeJSON(w, outcomeStatusCode(out), out)
}

// handleDeviceCommand addresses one device kind and action directly,
// bypassing the parser.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	kind := device.Kind(chi.URLParam(r, "kind"))
	action := device.Action(chi.URLParam(r, "action"))

	if !device.IsValidKind(kind) {
		writeNotFound(w, "unknown device kind: "+string(kind))
		return
	}
	if _, ok := device.RequiredCapability(action); !ok {
		writeNotFound(w, "unknown action: "+string(action))
		return
	}

	var req deviceCommandRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	if err := device.ValidateParams(action, req.Params); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	id := callerIdentity(r)
	in := intent.New(kind, action, req.Room, req.Params, "", 1)
	out := s.orch.HandleIntent(r.Context(), orchestrator.Request{
		UserID: id.userID,
		Token:  id.sessionToken,
	}, in)
	writeJSON(w, outcomeStatusCode(out), out)
}

// decodeCommand reads the shared command request body and resolves the
// caller's identity.
func (s *Server) decodeCommand(w http.ResponseWriter, r *http.Request) (commandRequest, *identity, bool) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return req, nil, false
	}
	if req.Input == "" {
		writeBadRequest(w, "input is required")
		return req, nil, false
	}
	return req, callerIdentity(r), true
}

// outcomeStatusCode maps a terminal outcome to an HTTP status code. The
// outcome body is returned either way so clients see the full result.
func outcomeStatusCode(out *orchestrator.Outcome) int {
	switch out.Status {
	case orchestrator.StatusSuccess:
		return http.StatusOK
	case orchestrator.StatusRejected:
		switch out.Reason {
		case orchestrator.ReasonRateLimited:
			return http.StatusTooManyRequests
		case orchestrator.ReasonNotWhitelisted:
			return http.StatusForbidden
		case orchestrator.ReasonSessionExpired, orchestrator.ReasonTokenInvalid:
			return http.StatusUnauthorized
		case orchestrator.ReasonUnknownRoom, orchestrator.ReasonUnknownKind:
			return http.StatusNotFound
		default:
			return http.StatusUnprocessableEntity
		}
	case orchestrator.StatusFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
