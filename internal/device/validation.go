package device

import "fmt"

// Closed vocabularies for string-valued parameters. Anything outside these
// sets is rejected before dispatch.
var (
	knownApps = map[string]struct{}{
		"netflix": {},
		"youtube": {},
	}

	knownInputKeys = map[string]struct{}{
		"home":  {},
		"back":  {},
		"menu":  {},
		"enter": {},
		"up":    {},
		"down":  {},
		"left":  {},
		"right": {},
	}

	volumeDirections = map[string]struct{}{
		"up":   {},
		"down": {},
	}
)

// percentRange validates a 0..100 integer parameter.
func percentRange(p Params, key string, required bool) error {
	v, ok := p.Int(key)
	if !ok {
		if required {
			return fmt.Errorf("%w: %s is required", ErrInvalidParams, key)
		}
		return nil
	}
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: %s must be between 0 and 100, got %d", ErrInvalidParams, key, v)
	}
	return nil
}

// ValidateParams checks action parameters against the action-specific
// schema. Every Intent that reaches the orchestrator has passed this check,
// so controllers may assume well-formed parameters.
func ValidateParams(action Action, p Params) error {
	switch action {
	case ActionOn, ActionOff, ActionStart, ActionPause, ActionStop, ActionDock, ActionLocate:
		return nil

	case ActionSetBrightness:
		return percentRange(p, "brightness", true)

	case ActionSetFanPower:
		return percentRange(p, "power", true)

	case ActionLaunchApp:
		app, ok := p.String("app")
		if !ok || app == "" {
			return fmt.Errorf("%w: app is required", ErrInvalidParams)
		}
		if _, known := knownApps[app]; !known {
			return fmt.Errorf("%w: unknown app %q", ErrInvalidParams, app)
		}
		return nil

	case ActionSetVolume:
		// Either a relative direction or an absolute level, never both.
		dir, hasDir := p.String("direction")
		_, hasVol := p.Int("volume")
		switch {
		case hasDir && hasVol:
			return fmt.Errorf("%w: direction and volume are mutually exclusive", ErrInvalidParams)
		case hasDir:
			if _, known := volumeDirections[dir]; !known {
				return fmt.Errorf("%w: direction must be up or down, got %q", ErrInvalidParams, dir)
			}
			return nil
		case hasVol:
			return percentRange(p, "volume", true)
		default:
			return fmt.Errorf("%w: direction or volume is required", ErrInvalidParams)
		}

	case ActionSendInput:
		key, ok := p.String("key")
		if !ok || key == "" {
			return fmt.Errorf("%w: key is required", ErrInvalidParams)
		}
		if _, known := knownInputKeys[key]; !known {
			return fmt.Errorf("%w: unknown input key %q", ErrInvalidParams, key)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidParams, action)
	}
}

// KnownApp reports whether the app name is in the closed vocabulary.
func KnownApp(app string) bool {
	_, ok := knownApps[app]
	return ok
}

// KnownInputKey reports whether the key name is in the closed vocabulary.
func KnownInputKey(key string) bool {
	_, ok := knownInputKeys[key]
	return ok
}
