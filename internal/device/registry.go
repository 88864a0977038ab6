package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// RoomAll is the room token that expands to every device of a kind.
const RoomAll = "all"

// Entry is a registered logical device together with its runtime state: the
// controller reference, the per-device execution lock and the cached status.
type Entry struct {
	dev        Device
	controller Controller

	// execMu serialises wire operations per logical device. Commands to
	// different devices proceed fully in parallel.
	execMu sync.Mutex

	// status is replaced wholesale via atomic swap so readers never observe
	// a partially written report.
	status atomic.Pointer[StatusReport]
}

// Device returns a copy of the logical device description.
func (e *Entry) Device() Device {
	return e.dev
}

// Controller returns the controller responsible for this device.
func (e *Entry) Controller() Controller {
	return e.controller
}

// LastStatus returns the most recent cached report, or nil if none exists.
// The returned report is shared and must not be mutated.
func (e *Entry) LastStatus() *StatusReport {
	return e.status.Load()
}

// FreshStatus returns the cached report only if it is younger than bound.
// Used for idempotence decisions, which must not run on stale data.
func (e *Entry) FreshStatus(bound time.Duration) *StatusReport {
	r := e.status.Load()
	if r == nil || r.Age() > bound {
		return nil
	}
	return r
}

// setStatus atomically replaces the cached report.
func (e *Entry) setStatus(r *StatusReport) {
	e.status.Store(r)
}

// Registry maps device kind + room to controller-backed entries and owns the
// authoritative status cache.
//
// All public methods are thread-safe. The entry set is fixed after startup
// registration, so lookups after that point need no locking beyond the
// per-entry primitives.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*Entry
	byKind  map[Kind][]*Entry
	sealed  bool
	logger  Logger
	bound   time.Duration
	onState func(*StatusReport)
}

// NewRegistry creates an empty registry with the given staleness bound for
// idempotence-check status reads.
func NewRegistry(stalenessBound time.Duration) *Registry {
	return &Registry{
		byID:   make(map[string]*Entry),
		byKind: make(map[Kind][]*Entry),
		logger: noopLogger{},
		bound:  stalenessBound,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetStatusListener registers a callback invoked after every status cache
// replacement. Used for live event broadcast; may be nil.
func (r *Registry) SetStatusListener(fn func(*StatusReport)) {
	r.mu.Lock()
	r.onState = fn
	r.mu.Unlock()
}

// Register adds a logical device and its controller. Several devices may
// share one controller instance.
func (r *Registry) Register(dev Device, ctrl Controller) error {
	if !IsValidKind(dev.Kind) {
		return fmt.Errorf("%w: %q", ErrUnknownKind, dev.Kind)
	}
	if ctrl == nil {
		return fmt.Errorf("device %s: controller is required", dev.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[dev.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, dev.ID)
	}

	e := &Entry{dev: dev, controller: ctrl}
	r.byID[dev.ID] = e
	r.byKind[dev.Kind] = append(r.byKind[dev.Kind], e)

	r.logger.Info("device registered", "id", dev.ID, "kind", dev.Kind, "room", dev.Room)
	return nil
}

// Resolve maps a device kind and room token to one or more entries.
//
// The RoomAll token expands to every device of the kind (fan-out). An empty
// room resolves only when the kind has exactly one device. Unknown rooms and
// kinds are returned as lookup errors, never dispatched further.
func (r *Registry) Resolve(kind Kind, room string) ([]*Entry, error) {
	r.mu.RLock()
	entries := r.byKind[kind]
	r.mu.RUnlock()

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	switch room {
	case RoomAll:
		out := make([]*Entry, len(entries))
		copy(out, entries)
		return out, nil
	case "":
		if len(entries) == 1 {
			return []*Entry{entries[0]}, nil
		}
		return nil, fmt.Errorf("%w: room required for %s", ErrUnknownRoom, kind)
	default:
		for _, e := range entries {
			if e.dev.Room == room {
				return []*Entry{e}, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoom, room)
	}
}

// Get retrieves an entry by device ID.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	return e, ok
}

// Execute runs one action against one entry under the per-device execution
// lock, validating capability support and maintaining the status cache.
//
// The registry holds exactly one lock here (the entry's execMu); session and
// rate-limit locks are never held across this call, which keeps the system
// free of lock-ordering deadlocks.
func (r *Registry) Execute(ctx context.Context, e *Entry, action Action, params Params) (*StatusReport, error) {
	cap, known := RequiredCapability(action)
	if !known || !HasCapability(e.controller, cap) {
		return nil, NewError(ErrKindUnsupported, fmt.Sprintf("%s does not support %s", e.dev.Kind, action))
	}

	e.execMu.Lock()
	defer e.execMu.Unlock()

	req := ExecRequest{
		Device: &e.dev,
		Action: action,
		Params: params,
		Last:   e.FreshStatus(r.bound),
	}

	report, err := e.controller.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	if report != nil {
		r.storeStatus(e, report)
	}
	return report, nil
}

// RefreshStatus performs a wire read for one entry and updates the cache.
func (r *Registry) RefreshStatus(ctx context.Context, e *Entry) (*StatusReport, error) {
	report, err := e.controller.Status(ctx, &e.dev)
	if err != nil {
		return nil, err
	}
	r.storeStatus(e, report)
	return report, nil
}

// UpdateStatus replaces the cached report for a device. Used by controllers
// that receive asynchronous state pushes (the vacuum's MQTT state topic).
func (r *Registry) UpdateStatus(deviceID string, report *StatusReport) {
	e, ok := r.Get(deviceID)
	if !ok {
		r.logger.Warn("status update for unknown device", "id", deviceID)
		return
	}
	r.storeStatus(e, report)
}

func (r *Registry) storeStatus(e *Entry, report *StatusReport) {
	e.setStatus(report)
	r.logger.Debug("device status updated", "id", e.dev.ID)

	r.mu.RLock()
	fn := r.onState
	r.mu.RUnlock()
	if fn != nil {
		fn(report)
	}
}

// Snapshot returns the last known report for every device, ordered by device
// ID. Entries with no observation yet report offline with no attributes.
// Stale entries are served as-is: this surface is read-only and never feeds
// command decisions.
func (r *Registry) Snapshot() []*StatusReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*StatusReport, 0, len(r.byID))
	for id, e := range r.byID {
		if rep := e.LastStatus(); rep != nil {
			out = append(out, rep.Clone())
			continue
		}
		out = append(out, &StatusReport{DeviceID: id, Online: false})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Health describes one device's controller connection state.
type Health struct {
	DeviceID  string    `json:"device_id"`
	Kind      Kind      `json:"kind"`
	Room      string    `json:"room,omitempty"`
	ConnState ConnState `json:"conn_state"`
}

// HealthSnapshot returns per-device controller connection states, ordered by
// device ID.
func (r *Registry) HealthSnapshot() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Health, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, Health{
			DeviceID:  e.dev.ID,
			Kind:      e.dev.Kind,
			Room:      e.dev.Room,
			ConnState: e.controller.ConnState(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int          `json:"total_devices"`
	ByKind       map[Kind]int `json:"by_kind"`
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.byID),
		ByKind:       make(map[Kind]int),
	}
	for _, e := range r.byID {
		stats.ByKind[e.dev.Kind]++
	}
	return stats
}

// Rooms returns the sorted set of rooms known for a kind. The intent parser
// uses this to build its room vocabulary.
func (r *Registry) Rooms(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rooms []string
	for _, e := range r.byKind[kind] {
		if e.dev.Room != "" {
			rooms = append(rooms, e.dev.Room)
		}
	}
	sort.Strings(rooms)
	return rooms
}

// Close closes every distinct controller once.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[Controller]struct{})
	var firstErr error
	for _, e := range r.byID {
		if _, done := seen[e.controller]; done {
			continue
		}
		seen[e.controller] = struct{}{}
		if err := e.controller.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
