package intent

import (
	"fmt"
	"strconv"

	"github.com/google/shlex"

	"github.com/nerrad567/jarvis-core/internal/device"
)

// ParseStructured parses the structured command surface:
//
//	light_on|light_off [room|all]
//	light_brightness [room|all] <0-100>
//	tv_on | tv_off | tv <app> | tv_volume <up|down|0-100>
//	vacuum_start|vacuum_pause|vacuum_stop|vacuum_dock|vacuum_find
//	vacuum_power <0-100>
//	status | health
//
// Tokens follow shell quoting rules. Parameters are schema-validated before
// the intent is returned, so a well-formed result is always dispatchable.
func ParseStructured(raw string) (*Intent, error) {
	args, err := shlex.Split(raw)
	if err != nil {
		return nil, NewParseError(ErrKindUnknown, "unbalanced quoting: "+err.Error())
	}
	if len(args) == 0 {
		return nil, NewParseError(ErrKindUnknown, "empty command")
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "light_on":
		return buildIntent(device.KindLight, device.ActionOn, roomArg(args), nil, raw)
	case "light_off":
		return buildIntent(device.KindLight, device.ActionOff, roomArg(args), nil, raw)
	case "light_brightness":
		return parseBrightness(args, raw)

	case "tv_on":
		return buildIntent(device.KindTV, device.ActionOn, "", nil, raw)
	case "tv_off":
		return buildIntent(device.KindTV, device.ActionOff, "", nil, raw)
	case "tv":
		if len(args) != 1 {
			return nil, NewParseError(ErrKindUnknown, "usage: tv <app>")
		}
		return buildIntent(device.KindTV, device.ActionLaunchApp, "", device.Params{"app": args[0]}, raw)
	case "tv_volume":
		return parseVolume(args, raw)
	case "tv_input":
		if len(args) != 1 {
			return nil, NewParseError(ErrKindUnknown, "usage: tv_input <key>")
		}
		return buildIntent(device.KindTV, device.ActionSendInput, "", device.Params{"key": args[0]}, raw)

	case "vacuum_start":
		return buildIntent(device.KindVacuum, device.ActionStart, "", nil, raw)
	case "vacuum_pause":
		return buildIntent(device.KindVacuum, device.ActionPause, "", nil, raw)
	case "vacuum_stop":
		return buildIntent(device.KindVacuum, device.ActionStop, "", nil, raw)
	case "vacuum_dock":
		return buildIntent(device.KindVacuum, device.ActionDock, "", nil, raw)
	case "vacuum_find":
		return buildIntent(device.KindVacuum, device.ActionLocate, "", nil, raw)
	case "vacuum_power":
		if len(args) != 1 {
			return nil, NewParseError(ErrKindUnknown, "usage: vacuum_power <0-100>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, NewParseError(ErrKindUnknown, "vacuum_power level must be a number")
		}
		return buildIntent(device.KindVacuum, device.ActionSetFanPower, "", device.Params{"power": n}, raw)

	case "status":
		return NewQuery(TargetStatus, raw), nil
	case "health":
		return NewQuery(TargetHealth, raw), nil

	default:
		return nil, NewParseError(ErrKindUnknown, fmt.Sprintf("unknown command %q", cmd))
	}
}

// buildIntent validates params against the action schema and constructs the
// intent with full confidence.
func buildIntent(kind device.Kind, action device.Action, room string, params device.Params, raw string) (*Intent, error) {
	if err := device.ValidateParams(action, params); err != nil {
		return nil, err
	}
	return New(kind, action, room, params, raw, 1), nil
}

// roomArg canonicalises an optional room argument. Unknown room words pass
// through for the registry to reject by name.
func roomArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	tokens := Normalize(args[0])
	if len(tokens) == 1 {
		if canonical := findRoom(tokens); canonical != "" {
			return canonical
		}
	}
	return args[0]
}

// parseBrightness handles light_brightness [room|all] <0-100>.
func parseBrightness(args []string, raw string) (*Intent, error) {
	room := ""
	var levelArg string
	switch len(args) {
	case 1:
		levelArg = args[0]
	case 2:
		room = roomArg(args[:1])
		levelArg = args[1]
	default:
		return nil, NewParseError(ErrKindUnknown, "usage: light_brightness [room|all] <0-100>")
	}

	n, err := strconv.Atoi(levelArg)
	if err != nil {
		return nil, NewParseError(ErrKindUnknown, "brightness must be a number")
	}
	return buildIntent(device.KindLight, device.ActionSetBrightness, room, device.Params{"brightness": n}, raw)
}

// parseVolume handles tv_volume <up|down|0-100>.
func parseVolume(args []string, raw string) (*Intent, error) {
	if len(args) != 1 {
		return nil, NewParseError(ErrKindUnknown, "usage: tv_volume <up|down|0-100>")
	}
	if args[0] == "up" || args[0] == "down" {
		return buildIntent(device.KindTV, device.ActionSetVolume, "", device.Params{"direction": args[0]}, raw)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, NewParseError(ErrKindUnknown, "volume must be up, down or a number")
	}
	return buildIntent(device.KindTV, device.ActionSetVolume, "", device.Params{"volume": n}, raw)
}
