package device

import "time"

// Kind identifies a controllable device family.
type Kind string

// Kind constants.
const (
	KindLight  Kind = "light"
	KindTV     Kind = "tv"
	KindVacuum Kind = "vacuum"
)

// AllKinds returns all valid device kinds.
func AllKinds() []Kind {
	return []Kind{KindLight, KindTV, KindVacuum}
}

// IsValidKind returns true if the kind is recognised.
func IsValidKind(k Kind) bool {
	for _, v := range AllKinds() {
		if k == v {
			return true
		}
	}
	return false
}

// Action is an abstract operation requested of a device.
type Action string

// Light actions.
const (
	ActionOn            Action = "on"
	ActionOff           Action = "off"
	ActionSetBrightness Action = "set_brightness"
)

// TV actions.
const (
	ActionLaunchApp Action = "launch_app"
	ActionSetVolume Action = "set_volume"
	ActionSendInput Action = "send_input"
)

// Vacuum actions.
const (
	ActionStart       Action = "start"
	ActionPause       Action = "pause"
	ActionStop        Action = "stop"
	ActionDock        Action = "dock"
	ActionLocate      Action = "locate"
	ActionSetFanPower Action = "set_fan_power"
)

// Capability represents what a controller can do.
type Capability string

// Capability constants.
const (
	CapPower      Capability = "power"
	CapBrightness Capability = "brightness"
	CapApp        Capability = "app"
	CapVolume     Capability = "volume"
	CapInput      Capability = "input"
	CapClean      Capability = "clean"
	CapDock       Capability = "dock"
	CapLocate     Capability = "locate"
	CapFanPower   Capability = "fan_power"
)

// actionCapabilities maps each action to the capability a controller must
// advertise for the action to be dispatched to it.
var actionCapabilities = map[Action]Capability{
	ActionOn:            CapPower,
	ActionOff:           CapPower,
	ActionSetBrightness: CapBrightness,
	ActionLaunchApp:     CapApp,
	ActionSetVolume:     CapVolume,
	ActionSendInput:     CapInput,
	ActionStart:         CapClean,
	ActionPause:         CapClean,
	ActionStop:          CapClean,
	ActionDock:          CapDock,
	ActionLocate:        CapLocate,
	ActionSetFanPower:   CapFanPower,
}

// RequiredCapability returns the capability an action requires, and whether
// the action is recognised at all.
func RequiredCapability(a Action) (Capability, bool) {
	c, ok := actionCapabilities[a]
	return c, ok
}

// Params holds action parameters as a JSON-compatible map.
//
// Examples:
//   - set_brightness: {"brightness": 75}
//   - launch_app:     {"app": "netflix"}
//   - set_volume:     {"direction": "up"} or {"volume": 40}
type Params map[string]any

// Int extracts an integer parameter. JSON decoding produces float64, so both
// numeric representations are accepted.
func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// String extracts a string parameter.
func (p Params) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// Clone returns an independent shallow copy of the parameter map.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	cpy := make(Params, len(p))
	for k, v := range p {
		cpy[k] = v
	}
	return cpy
}

// Device is a logical device instance. Several devices may share one
// controller: the light gateway hosts one logical device per room.
type Device struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	// Room is empty for devices that are not room-scoped (TV, vacuum).
	Room string `json:"room,omitempty"`

	// Address holds controller-specific addressing, e.g. the gateway-side
	// light identifier: {"light_id": "light_002"}.
	Address map[string]any `json:"address,omitempty"`
}

// StatusReport is an immutable snapshot of a device's last observed state.
// It is replaced wholesale on every successful read and never mutated in
// place, so readers can hold a reference without locking.
type StatusReport struct {
	DeviceID   string         `json:"device_id"`
	Online     bool           `json:"online"`
	Attributes map[string]any `json:"attributes"`
	ObservedAt time.Time      `json:"observed_at"`
}

// NewStatusReport builds a report stamped with the current time.
func NewStatusReport(deviceID string, online bool, attrs map[string]any) *StatusReport {
	return &StatusReport{
		DeviceID:   deviceID,
		Online:     online,
		Attributes: attrs,
		ObservedAt: time.Now().UTC(),
	}
}

// Age returns how old the report is.
func (r *StatusReport) Age() time.Duration {
	return time.Since(r.ObservedAt)
}

// Bool extracts a boolean attribute.
func (r *StatusReport) Bool(key string) (bool, bool) {
	if r == nil || r.Attributes == nil {
		return false, false
	}
	b, ok := r.Attributes[key].(bool)
	return b, ok
}

// Int extracts an integer attribute, accepting float64 from JSON decoding.
func (r *StatusReport) Int(key string) (int, bool) {
	if r == nil || r.Attributes == nil {
		return 0, false
	}
	switch v := r.Attributes[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// String extracts a string attribute.
func (r *StatusReport) String(key string) (string, bool) {
	if r == nil || r.Attributes == nil {
		return "", false
	}
	s, ok := r.Attributes[key].(string)
	return s, ok
}

// Clone returns an independent copy so cached reports cannot be mutated by
// callers.
func (r *StatusReport) Clone() *StatusReport {
	if r == nil {
		return nil
	}
	cpy := *r
	if r.Attributes != nil {
		cpy.Attributes = make(map[string]any, len(r.Attributes))
		for k, v := range r.Attributes {
			cpy.Attributes[k] = v
		}
	}
	return &cpy
}

// ConnState tracks a controller's connection lifecycle.
type ConnState string

// ConnState constants.
const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"

	// ConnDegraded marks a controller whose last wire operation failed.
	// The next command retries with backoff instead of failing fast.
	ConnDegraded ConnState = "degraded"
)
