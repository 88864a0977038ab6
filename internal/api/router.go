package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Liveness check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade cannot carry an Authorization header from a
		// browser; the single-use ticket authenticates it instead.
		r.Get(s.wsPath(), s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)

			// WS ticket requires authentication so the socket inherits
			// the caller's identity without a JWT in the URL.
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Command submission
			r.Post("/command", s.handleCommand)
			r.Post("/command/structured", s.handleStructuredCommand)
			r.Post("/devices/{kind}/{action}", s.handleDeviceCommand)

			// Read-only views
			r.Get("/status", s.handleStatus)
			r.Get("/devices/health", s.handleDeviceHealth)
			r.Get("/history", s.handleHistory)

			// Admin-only security statistics
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/security/stats", s.handleSecurityStats)
			})
		})
	})

	return r
}

// wsPath returns the configured WebSocket route, defaulting to /ws.
func (s *Server) wsPath() string {
	if s.wsCfg.Path != "" {
		return s.wsCfg.Path
	}
	return "/ws"
}

// handleHealth returns the server liveness status plus each registered
// controller's connection state. Device IDs and states only; reported
// attributes stay behind the authenticated endpoints.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"devices": s.registry.HealthSnapshot(),
	})
}
