// Package vacuum drives the robot vacuum through the MQTT bridge.
//
// Commands are published to the vacuum's command topic and matched against
// per-command acknowledgements; the bridge pushes retained state updates on
// the state topic, which keep the controller's picture current without
// polling. Docking while already docked is idempotent, starting below the
// battery floor is refused without a wire call, and locate always executes.
package vacuum

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/jarvis-core/internal/device"
	"github.com/nerrad567/jarvis-core/internal/infrastructure/mqtt"
)

// protocol is the topic segment for the vacuum bridge.
const protocol = "vacuum"

// defaultAckTimeout bounds the wait for a command acknowledgement.
const defaultAckTimeout = 5 * time.Second

// commandQoS is at-least-once: a duplicated start or dock is harmless, a
// lost one is not.
const commandQoS = 1

// Broker is the MQTT surface the controller needs. *mqtt.Client satisfies
// it; tests substitute a fake.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Config holds vacuum settings.
type Config struct {
	DeviceID string

	// MinBattery refuses a start below this charge percentage.
	MinBattery int

	// AckTimeout overrides the default acknowledgement wait when non-zero.
	AckTimeout time.Duration

	Retry device.RetryPolicy
}

// wireCommand is the payload published to the command topic.
type wireCommand struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// wireAck is the bridge's acknowledgement payload.
type wireAck struct {
	ID    string     `json:"id"`
	Error string     `json:"error,omitempty"`
	State *wireState `json:"state,omitempty"`
}

// wireState is the bridge's state payload, also published standalone on the
// retained state topic.
type wireState struct {
	State     string `json:"state"`
	Battery   int    `json:"battery"`
	FanPower  int    `json:"fan_power"`
	CleanArea int    `json:"clean_area"`
	CleanTime int    `json:"clean_time"`
}

// Controller drives one vacuum over the broker.
//
// Thread Safety: pending acknowledgements and the state snapshot are
// guarded by mu; the registry serialises Execute calls per device.
type Controller struct {
	tracker    *device.ConnTracker
	broker     Broker
	cfg        Config
	ackTimeout time.Duration
	retry      device.RetryPolicy
	logger     device.Logger

	mu      sync.Mutex
	pending map[string]chan wireAck
	last    *device.StatusReport

	// onState forwards asynchronous state pushes, wired to the registry's
	// UpdateStatus.
	onState func(deviceID string, report *device.StatusReport)
}

// New creates a vacuum controller. Call Connect before use: commands need
// the acknowledgement subscription.
func New(cfg Config, broker Broker, logger device.Logger) *Controller {
	ackTimeout := cfg.AckTimeout
	if ackTimeout == 0 {
		ackTimeout = defaultAckTimeout
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialBackoff == 0 {
		retry = device.DefaultRetryPolicy()
	}
	return &Controller{
		tracker:    device.NewConnTracker(),
		broker:     broker,
		cfg:        cfg,
		ackTimeout: ackTimeout,
		retry:      retry,
		logger:     logger,
		pending:    make(map[string]chan wireAck),
	}
}

// SetStateListener registers a callback for asynchronous state pushes.
func (c *Controller) SetStateListener(fn func(deviceID string, report *device.StatusReport)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Connect subscribes to the acknowledgement and retained state topics.
func (c *Controller) Connect(ctx context.Context) error {
	c.tracker.SetConnecting()

	topics := mqtt.Topics{}
	if err := c.broker.Subscribe(topics.DeviceAck(protocol, c.cfg.DeviceID), commandQoS, c.handleAck); err != nil {
		c.tracker.SetDisconnected()
		return device.WrapError(device.ErrKindConnection, "subscribing to vacuum acks", err)
	}
	if err := c.broker.Subscribe(topics.DeviceState(protocol, c.cfg.DeviceID), commandQoS, c.handleState); err != nil {
		c.tracker.SetDisconnected()
		return device.WrapError(device.ErrKindConnection, "subscribing to vacuum state", err)
	}

	c.tracker.SetConnected()
	return nil
}

// Execute performs one vacuum action.
func (c *Controller) Execute(ctx context.Context, req device.ExecRequest) (*device.StatusReport, error) {
	switch req.Action {
	case device.ActionStart:
		if battery, ok := c.batteryLevel(req); ok && battery < c.cfg.MinBattery {
			return nil, device.NewError(device.ErrKindInsufficientBattery,
				fmt.Sprintf("battery at %d%%, need at least %d%%", battery, c.cfg.MinBattery))
		}
		if report := c.inState(req, "cleaning"); report != nil {
			return report, nil
		}
		return c.command(ctx, req, "app_start", nil, map[string]any{"state": "cleaning"})

	case device.ActionPause:
		return c.command(ctx, req, "app_pause", nil, map[string]any{"state": "paused"})

	case device.ActionStop:
		return c.command(ctx, req, "app_stop", nil, map[string]any{"state": "idle"})

	case device.ActionDock:
		if report := c.inState(req, "docked"); report != nil {
			return report, nil
		}
		return c.command(ctx, req, "app_charge", nil, map[string]any{"state": "returning"})

	case device.ActionLocate:
		// Locate is a beep, never idempotent.
		return c.command(ctx, req, "find_me", nil, map[string]any{"locating": true})

	case device.ActionSetFanPower:
		power, _ := req.Params.Int("power")
		return c.command(ctx, req, "set_custom_mode", []any{power}, map[string]any{"fan_power": power})

	default:
		return nil, device.NewError(device.ErrKindUnsupported, fmt.Sprintf("vacuum does not support %s", req.Action))
	}
}

// Status returns the last state push. The bridge publishes state retained,
// so a fresh subscription repopulates this shortly after connect.
func (c *Controller) Status(ctx context.Context, dev *device.Device) (*device.StatusReport, error) {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()

	if last == nil {
		return nil, device.NewError(device.ErrKindConnection, "no state received from vacuum yet")
	}
	return last, nil
}

// ConnState reports the tracked connection state.
func (c *Controller) ConnState() device.ConnState {
	if !c.broker.IsConnected() {
		return device.ConnDisconnected
	}
	return c.tracker.ConnState()
}

// Capabilities advertises cleaning, docking, locating and fan control.
func (c *Controller) Capabilities() []device.Capability {
	return []device.Capability{device.CapClean, device.CapDock, device.CapLocate, device.CapFanPower}
}

// Close drops pending acknowledgement waiters. The broker connection is
// shared and closed by its owner.
func (c *Controller) Close() error {
	c.mu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	c.tracker.SetDisconnected()
	return nil
}

// command publishes one command and waits for its acknowledgement, with
// bounded retry on transient failures.
func (c *Controller) command(ctx context.Context, req device.ExecRequest, method string, params []any, attrs map[string]any) (*device.StatusReport, error) {
	var report *device.StatusReport
	err := device.Retry(ctx, c.retry, func(ctx context.Context) error {
		var err error
		report, err = c.roundTrip(ctx, req, method, params, attrs)
		return err
	})
	if err != nil {
		c.tracker.SetDegraded()
		return nil, err
	}
	c.tracker.SetConnected()
	return report, nil
}

func (c *Controller) roundTrip(ctx context.Context, req device.ExecRequest, method string, params []any, attrs map[string]any) (*device.StatusReport, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(wireCommand{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, device.WrapError(device.ErrKindUnsupported, "encoding vacuum command", err)
	}

	ackCh := make(chan wireAck, 1)
	c.mu.Lock()
	c.pending[id] = ackCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	topic := mqtt.Topics{}.DeviceCommand(protocol, c.cfg.DeviceID)
	if err := c.broker.Publish(topic, payload, commandQoS, false); err != nil {
		return nil, device.WrapError(device.ErrKindConnection, "publishing vacuum command", err)
	}

	select {
	case <-ctx.Done():
		return nil, device.WrapError(device.ErrKindTimeout, "cancelled waiting for vacuum ack", ctx.Err())
	case <-time.After(c.ackTimeout):
		return nil, device.NewError(device.ErrKindTimeout,
			fmt.Sprintf("no acknowledgement for %s within %s", method, c.ackTimeout))
	case ack, ok := <-ackCh:
		if !ok {
			return nil, device.NewError(device.ErrKindConnection, "controller closed while awaiting ack")
		}
		if ack.Error != "" {
			return nil, device.NewError(device.ErrKindConnection,
				fmt.Sprintf("vacuum rejected %s: %s", method, ack.Error))
		}
		if ack.State != nil {
			return c.storeState(req.Device.ID, ack.State), nil
		}
		return device.NewStatusReport(req.Device.ID, true, attrs), nil
	}
}

// handleAck routes an acknowledgement to its waiting command.
func (c *Controller) handleAck(_ string, payload []byte) error {
	var ack wireAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding vacuum ack: %w", err)
	}

	c.mu.Lock()
	ch, ok := c.pending[ack.ID]
	c.mu.Unlock()
	if !ok {
		// Late ack after timeout; nothing is waiting.
		return nil
	}

	select {
	case ch <- ack:
	default:
	}
	return nil
}

// handleState ingests a retained state push and forwards it upstream.
func (c *Controller) handleState(_ string, payload []byte) error {
	var state wireState
	if err := json.Unmarshal(payload, &state); err != nil {
		return fmt.Errorf("decoding vacuum state: %w", err)
	}

	report := c.storeState(c.cfg.DeviceID, &state)

	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(c.cfg.DeviceID, report)
	}
	return nil
}

// storeState converts a wire state into a report and caches it.
func (c *Controller) storeState(deviceID string, state *wireState) *device.StatusReport {
	report := device.NewStatusReport(deviceID, true, map[string]any{
		"state":      state.State,
		"battery":    state.Battery,
		"fan_power":  state.FanPower,
		"clean_area": state.CleanArea,
		"clean_time": state.CleanTime,
	})
	c.mu.Lock()
	c.last = report
	c.mu.Unlock()
	return report
}

// batteryLevel reads the battery from the fresh report, falling back to the
// last state push.
func (c *Controller) batteryLevel(req device.ExecRequest) (int, bool) {
	if req.Last != nil {
		if b, ok := req.Last.Int("battery"); ok {
			return b, true
		}
	}
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last != nil {
		if b, ok := last.Int("battery"); ok {
			return b, true
		}
	}
	return 0, false
}

// inState returns the last fresh report when the vacuum is already in the
// target state.
func (c *Controller) inState(req device.ExecRequest, want string) *device.StatusReport {
	if req.Last == nil || !req.Last.Online {
		return nil
	}
	if s, ok := req.Last.String("state"); ok && s == want {
		return req.Last
	}
	return nil
}
