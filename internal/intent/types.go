package intent

import (
	"github.com/nerrad567/jarvis-core/internal/device"
)

// Target distinguishes device commands from read-only queries.
type Target string

const (
	// TargetDevice is a command for a device controller.
	TargetDevice Target = "device"

	// TargetStatus requests the per-device status snapshot.
	TargetStatus Target = "status"

	// TargetHealth requests controller connection health.
	TargetHealth Target = "health"
)

// Intent is the structured interpretation of one command. Immutable once
// created: construct via New and treat all fields as read-only.
type Intent struct {
	Target Target
	Kind   device.Kind
	Action device.Action
	Room   string
	Params device.Params

	// RawText is the input the intent was parsed from.
	RawText string

	// Confidence is the match quality in [0,1]. Structured commands parse
	// with confidence 1.
	Confidence float64
}

// New constructs a device-command intent, cloning params so later mutation
// of the caller's map cannot leak in.
func New(kind device.Kind, action device.Action, room string, params device.Params, raw string, confidence float64) *Intent {
	return &Intent{
		Target:     TargetDevice,
		Kind:       kind,
		Action:     action,
		Room:       room,
		Params:     params.Clone(),
		RawText:    raw,
		Confidence: confidence,
	}
}

// NewQuery constructs a status or health query intent.
func NewQuery(target Target, raw string) *Intent {
	return &Intent{Target: target, RawText: raw, Confidence: 1}
}
