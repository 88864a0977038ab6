// Package light drives room lights through the gateway's HTTP API.
//
// One controller instance serves every room: the gateway hosts one logical
// light per room, addressed by the light_id in the device address. State-
// changing commands are idempotent against the last fresh status report, so
// turning on a light that is already on makes no wire call.
package light

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/jarvis-core/internal/device"
)

// brightnessTolerance is the band within which a requested brightness is
// considered already applied.
const brightnessTolerance = 3

// defaultHTTPTimeout bounds a single gateway round trip.
const defaultHTTPTimeout = 10 * time.Second

// Config holds gateway connection settings.
type Config struct {
	Host  string
	Port  int
	Token string

	// Retry overrides the default transient-failure policy when non-zero.
	Retry device.RetryPolicy
}

// Controller talks to the light gateway. Safe for concurrent use; the
// registry additionally serialises commands per logical light.
type Controller struct {
	tracker *device.ConnTracker
	http    *http.Client
	base    string
	token   string
	retry   device.RetryPolicy
	logger  device.Logger
}

// New creates a gateway controller. The connection is verified lazily.
func New(cfg Config, logger device.Logger) *Controller {
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialBackoff == 0 {
		retry = device.DefaultRetryPolicy()
	}
	return &Controller{
		tracker: device.NewConnTracker(),
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		base:    fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		token:   cfg.Token,
		retry:   retry,
		logger:  logger,
	}
}

// gatewayCommand is the wire format for device commands.
type gatewayCommand struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

// gatewayState is the wire format for device state reads.
type gatewayState struct {
	Status     string `json:"status"`
	Brightness int    `json:"brightness"`
}

// Connect probes the gateway API root.
func (c *Controller) Connect(ctx context.Context) error {
	c.tracker.SetConnecting()
	if err := c.get(ctx, "/api", nil); err != nil {
		c.tracker.SetDisconnected()
		return err
	}
	c.tracker.SetConnected()
	return nil
}

// Execute performs one light action, skipping the wire call when the last
// fresh report already shows the target state.
func (c *Controller) Execute(ctx context.Context, req device.ExecRequest) (*device.StatusReport, error) {
	lightID, ok := req.Device.Address["light_id"].(string)
	if !ok || lightID == "" {
		return nil, device.NewError(device.ErrKindUnsupported, "device has no light_id address")
	}

	if report := alreadyApplied(req); report != nil {
		return report, nil
	}

	cmd, attrs, err := buildCommand(req)
	if err != nil {
		return nil, err
	}

	err = device.Retry(ctx, c.retry, func(ctx context.Context) error {
		return c.post(ctx, "/api/devices/"+lightID+"/commands", cmd)
	})
	if err != nil {
		c.tracker.SetDegraded()
		return nil, err
	}

	c.tracker.SetConnected()
	return device.NewStatusReport(req.Device.ID, true, attrs), nil
}

// Status reads one light's state from the gateway.
func (c *Controller) Status(ctx context.Context, dev *device.Device) (*device.StatusReport, error) {
	lightID, ok := dev.Address["light_id"].(string)
	if !ok || lightID == "" {
		return nil, device.NewError(device.ErrKindUnsupported, "device has no light_id address")
	}

	var state gatewayState
	if err := c.get(ctx, "/api/devices/"+lightID, &state); err != nil {
		c.tracker.SetDegraded()
		return nil, err
	}

	c.tracker.SetConnected()
	return device.NewStatusReport(dev.ID, true, map[string]any{
		"on":         state.Status == "on",
		"brightness": state.Brightness,
	}), nil
}

// ConnState reports the tracked connection state.
func (c *Controller) ConnState() device.ConnState {
	return c.tracker.ConnState()
}

// Capabilities advertises power and brightness control.
func (c *Controller) Capabilities() []device.Capability {
	return []device.Capability{device.CapPower, device.CapBrightness}
}

// Close releases idle gateway connections.
func (c *Controller) Close() error {
	c.http.CloseIdleConnections()
	c.tracker.SetDisconnected()
	return nil
}

// alreadyApplied returns the last report when it already shows the
// requested state. Only fresh reports reach here: the registry withholds
// stale ones.
func alreadyApplied(req device.ExecRequest) *device.StatusReport {
	last := req.Last
	if last == nil || !last.Online {
		return nil
	}
	on, ok := last.Bool("on")
	if !ok {
		return nil
	}

	switch req.Action {
	case device.ActionOn:
		if on {
			return last
		}
	case device.ActionOff:
		if !on {
			return last
		}
	case device.ActionSetBrightness:
		target, _ := req.Params.Int("brightness")
		current, hasBrightness := last.Int("brightness")
		if on && hasBrightness && abs(current-target) <= brightnessTolerance {
			return last
		}
	}
	return nil
}

// buildCommand maps an action to the gateway wire command and the resulting
// status attributes.
func buildCommand(req device.ExecRequest) (gatewayCommand, map[string]any, error) {
	switch req.Action {
	case device.ActionOn:
		attrs := map[string]any{"on": true}
		if b, ok := defaultBrightness(req); ok {
			attrs["brightness"] = b
		}
		return gatewayCommand{Command: "power", Params: map[string]any{"status": "on"}}, attrs, nil

	case device.ActionOff:
		return gatewayCommand{Command: "power", Params: map[string]any{"status": "off"}}, map[string]any{"on": false}, nil

	case device.ActionSetBrightness:
		b, _ := req.Params.Int("brightness")
		return gatewayCommand{Command: "brightness", Params: map[string]any{"value": b}},
			map[string]any{"on": true, "brightness": b}, nil

	default:
		return gatewayCommand{}, nil, device.NewError(device.ErrKindUnsupported,
			fmt.Sprintf("light does not support %s", req.Action))
	}
}

// defaultBrightness resolves the brightness a light returns to on power-on:
// the last known value, else the room's configured default.
func defaultBrightness(req device.ExecRequest) (int, bool) {
	if req.Last != nil {
		if b, ok := req.Last.Int("brightness"); ok {
			return b, true
		}
	}
	if b, ok := device.Params(req.Device.Address).Int("default_brightness"); ok {
		return b, true
	}
	return 0, false
}

func (c *Controller) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return device.WrapError(device.ErrKindUnsupported, "encoding gateway command", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return device.WrapError(device.ErrKindConnection, "building gateway request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return classifyStatus(resp.StatusCode)
}

func (c *Controller) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return device.WrapError(device.ErrKindConnection, "building gateway request", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return device.WrapError(device.ErrKindConnection, "decoding gateway response", err)
		}
	}
	return nil
}

// classifyTransportError maps transport failures onto the device error
// taxonomy so the retry policy can distinguish transient from permanent.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return device.WrapError(device.ErrKindTimeout, "gateway request timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return device.WrapError(device.ErrKindTimeout, "gateway request timed out", err)
	}
	return device.WrapError(device.ErrKindConnection, "gateway unreachable", err)
}

// classifyStatus treats 5xx as transient and other non-2xx as permanent.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 500:
		return device.NewError(device.ErrKindConnection, fmt.Sprintf("gateway returned %d", code))
	default:
		return device.NewError(device.ErrKindUnsupported, fmt.Sprintf("gateway rejected command with %d", code))
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
