// Package api provides the HTTP REST API and WebSocket server for the
// command engine.
//
// It exposes command submission (free text, structured and direct device
// addressing), session login, status and health queries, command history
// and real-time event broadcast to connected clients.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/jarvis-core/internal/audit"
	"github.com/nerrad567/jarvis-core/internal/auth"
	"github.com/nerrad567/jarvis-core/internal/device"
	"github.com/nerrad567/jarvis-core/internal/infrastructure/config"
	"github.com/nerrad567/jarvis-core/internal/infrastructure/logging"
	"github.com/nerrad567/jarvis-core/internal/orchestrator"
	"github.com/nerrad567/jarvis-core/internal/ratelimit"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Security     config.SecurityConfig
	Logger       *logging.Logger
	Gate         *auth.Gate
	Limiter      *ratelimit.Limiter
	Registry     *device.Registry
	Orchestrator *orchestrator.Orchestrator
	History      audit.Repository // optional; history endpoint 404s without it
	Version      string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	gate     *auth.Gate
	limiter  *ratelimit.Limiter
	registry *device.Registry
	orch     *orchestrator.Orchestrator
	history  audit.Repository
	version  string

	server  *http.Server
	hub     *Hub
	tickets *ticketStore
	cancel  context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("auth gate is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		gate:     deps.Gate,
		limiter:  deps.Limiter,
		registry: deps.Registry,
		orch:     deps.Orchestrator,
		history:  deps.History,
		version:  deps.Version,
		tickets:  newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and ticket cleanup,
// and launches the HTTP listener in a background goroutine. The server
// is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to gracefulShutdownTimeout for in-flight requests, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// NotifyOutcome broadcasts a terminal command outcome to WebSocket
// clients subscribed to the command channel. Implements
// orchestrator.Notifier.
func (s *Server) NotifyOutcome(o *orchestrator.Outcome) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ChannelCommands, o)
}

// OnDeviceStatus broadcasts a device status report to WebSocket clients.
// Wired as the registry status listener.
func (s *Server) OnDeviceStatus(report *device.StatusReport) {
	if s.hub == nil || report == nil {
		return
	}
	s.hub.Broadcast(ChannelDeviceStatus, report)
}
