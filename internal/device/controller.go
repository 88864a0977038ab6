package device

import (
	"context"
	"sync"
)

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ExecRequest carries everything a controller needs to execute one action
// against one logical device.
type ExecRequest struct {
	Device *Device
	Action Action
	Params Params

	// Last is the registry-cached status report, provided only when it is
	// younger than the configured staleness bound. Controllers use it for
	// idempotence checks; a nil Last forces a fresh read where one is needed.
	Last *StatusReport
}

// Controller translates abstract actions into one device kind's wire
// protocol. Implementations live in the light, tv and vacuum subpackages.
//
// Controllers connect lazily: Execute and Status establish the connection on
// first use. All methods must be safe for concurrent use, although the
// registry serialises Execute calls per logical device.
type Controller interface {
	// Connect establishes the wire connection. Callers normally rely on
	// lazy connection; Connect exists for eager startup checks.
	Connect(ctx context.Context) error

	// Execute performs the action and returns the resulting status report.
	// Failures are *Error values classifying the cause.
	Execute(ctx context.Context, req ExecRequest) (*StatusReport, error)

	// Status reads the device state over the wire.
	Status(ctx context.Context, dev *Device) (*StatusReport, error)

	// ConnState reports the connection lifecycle state.
	ConnState() ConnState

	// Capabilities advertises what the controller can do.
	Capabilities() []Capability

	// Close releases the wire connection.
	Close() error
}

// ConnTracker is the shared connection state machine embedded by controller
// implementations. It implements the Disconnected → Connecting → Connected →
// Degraded transitions with a single mutex.
type ConnTracker struct {
	mu    sync.Mutex
	state ConnState
}

// NewConnTracker returns a tracker in the Disconnected state.
func NewConnTracker() *ConnTracker {
	return &ConnTracker{state: ConnDisconnected}
}

// ConnState returns the current state.
func (t *ConnTracker) ConnState() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetConnecting marks the tracker as connecting.
func (t *ConnTracker) SetConnecting() { t.set(ConnConnecting) }

// SetConnected marks the tracker as connected.
func (t *ConnTracker) SetConnected() { t.set(ConnConnected) }

// SetDisconnected marks the tracker as disconnected.
func (t *ConnTracker) SetDisconnected() { t.set(ConnDisconnected) }

// SetDegraded marks the last wire operation as failed. The next command
// retries with backoff rather than failing fast.
func (t *ConnTracker) SetDegraded() { t.set(ConnDegraded) }

func (t *ConnTracker) set(s ConnState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// HasCapability reports whether the controller advertises the capability.
func HasCapability(c Controller, cap Capability) bool {
	for _, have := range c.Capabilities() {
		if have == cap {
			return true
		}
	}
	return false
}
