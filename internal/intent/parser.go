package intent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/jarvis-core/internal/device"
)

// RoomSource exposes the registered rooms per device kind. The device
// registry implements it.
type RoomSource interface {
	Rooms(kind device.Kind) []string
}

// Options configures a Parser.
type Options struct {
	// MinConfidence rejects fuzzy matches below this score as
	// low-confidence. Zero means the default of 0.6.
	MinConfidence float64

	// DefaultRoom is used when text names no room and exactly one
	// room-capable device exists.
	DefaultRoom string

	// Rooms supplies registered rooms for the default-room rule.
	Rooms RoomSource
}

// Parser maps free text to intents. Safe for concurrent use: all state is
// immutable after construction.
type Parser struct {
	minConfidence float64
	defaultRoom   string
	rooms         RoomSource
}

// NewParser constructs a parser with the given options.
func NewParser(opts Options) *Parser {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.6
	}
	return &Parser{
		minConfidence: opts.MinConfidence,
		defaultRoom:   opts.DefaultRoom,
		rooms:         opts.Rooms,
	}
}

// MinConfidence returns the score floor below which readings are
// rejected as low-confidence.
func (p *Parser) MinConfidence() float64 {
	return p.minConfidence
}

// candidate is one possible reading of the input.
type candidate struct {
	action device.Action
	params device.Params
	score  float64
}

// Parse maps free text to an intent or a classified parse error.
func (p *Parser) Parse(text string) (*Intent, error) {
	tokens := Normalize(text)
	if len(tokens) == 0 {
		return nil, NewParseError(ErrKindUnknown, "empty input")
	}

	if bestMatch(tokens, statusStems) == 1 {
		return NewQuery(TargetStatus, text), nil
	}
	if bestMatch(tokens, healthStems) == 1 {
		return NewQuery(TargetHealth, text), nil
	}

	kind, kindScore, err := p.detectKind(tokens)
	if err != nil {
		return nil, err
	}

	best, err := p.selectAction(kind, tokens)
	if err != nil {
		return nil, err
	}

	confidence := kindScore
	if best.score < confidence {
		confidence = best.score
	}
	if confidence < p.minConfidence {
		return nil, NewParseError(ErrKindLowConfidence,
			fmt.Sprintf("best match %q scored %.2f, below threshold %.2f", best.action, confidence, p.minConfidence))
	}

	room := ""
	if roomCapableKinds[kind] {
		room = findRoom(tokens)
		if room == "" {
			room, err = p.fallbackRoom(kind)
			if err != nil {
				return nil, err
			}
		}
	}

	if err := device.ValidateParams(best.action, best.params); err != nil {
		return nil, err
	}
	return New(kind, best.action, room, best.params, text, confidence), nil
}

// detectKind finds the device kind the text is about. Exactly one kind must
// match convincingly.
func (p *Parser) detectKind(tokens []string) (device.Kind, float64, error) {
	var matched []device.Kind
	scores := make(map[device.Kind]float64)
	for kind, stems := range kindStems {
		if score := bestMatch(tokens, stems); score >= p.minConfidence {
			matched = append(matched, kind)
			scores[kind] = score
		}
	}

	switch len(matched) {
	case 0:
		return "", 0, NewParseError(ErrKindUnknown, "no recognisable device keyword")
	case 1:
		return matched[0], scores[matched[0]], nil
	default:
		names := make([]string, len(matched))
		for i, k := range matched {
			names[i] = string(k)
		}
		return "", 0, NewParseError(ErrKindAmbiguous,
			"multiple device kinds mentioned: "+strings.Join(names, ", "))
	}
}

// selectAction scores every pattern of the kind and picks the winner. Equal
// scores are broken by parameter count; a remaining tie is ambiguous.
func (p *Parser) selectAction(kind device.Kind, tokens []string) (candidate, error) {
	pct, hasPct := findNumber(tokens)

	var candidates []candidate
	for _, pat := range actionPatterns[kind] {
		score := bestMatch(tokens, pat.stems)
		if score == 0 {
			continue
		}
		candidates = append(candidates, candidate{
			action: pat.action,
			params: pat.params.Clone(),
			score:  score,
		})
	}

	// A bare percentage with a light keyword is a brightness request even
	// without an action verb.
	if len(candidates) == 0 {
		if kind == device.KindLight && hasPct {
			return candidate{
				action: device.ActionSetBrightness,
				params: device.Params{"brightness": pct},
				score:  1,
			}, nil
		}
		return candidate{}, NewParseError(ErrKindUnknown,
			fmt.Sprintf("no recognisable %s action", kind))
	}

	for i := range candidates {
		p.bindParams(kind, &candidates[i], tokens, pct, hasPct)
	}

	best := candidates[0]
	tied := false
	for _, c := range candidates[1:] {
		switch {
		case c.score > best.score:
			best, tied = c, false
		case c.score == best.score && len(c.params) > len(best.params):
			best, tied = c, false
		case c.score == best.score && len(c.params) == len(best.params) && !sameReading(c, best):
			tied = true
		}
	}
	if tied {
		return candidate{}, NewParseError(ErrKindAmbiguous, "multiple readings match equally well")
	}
	return best, nil
}

// bindParams fills in parameters extracted from the token stream.
func (p *Parser) bindParams(kind device.Kind, c *candidate, tokens []string, pct int, hasPct bool) {
	switch {
	case kind == device.KindLight && hasPct && (c.action == device.ActionOn || c.action == device.ActionSetBrightness):
		// "включи свет на 50%" is a brightness request, not a plain on.
		c.action = device.ActionSetBrightness
		c.params = device.Params{"brightness": pct}

	case c.action == device.ActionSetVolume:
		if _, bound := c.params.String("direction"); bound {
			return
		}
		if c.params == nil {
			c.params = device.Params{}
		}
		if dir := findDirection(tokens); dir != "" {
			c.params["direction"] = dir
		} else if hasPct {
			c.params["volume"] = pct
		}

	case c.action == device.ActionSetFanPower && hasPct:
		c.params = device.Params{"power": pct}
	}
}

// fallbackRoom applies the default-room rule: an unnamed room resolves to
// the configured default only when exactly one room-capable device exists.
func (p *Parser) fallbackRoom(kind device.Kind) (string, error) {
	if p.defaultRoom != "" && p.rooms != nil && len(p.rooms.Rooms(kind)) == 1 {
		return p.defaultRoom, nil
	}
	return "", NewParseError(ErrKindAmbiguous,
		fmt.Sprintf("room required for %s command", kind))
}

// findRoom scans tokens for a room name and returns its canonical form.
func findRoom(tokens []string) string {
	for _, t := range tokens {
		for stem, canonical := range roomStems {
			if matchToken(t, stem) == 1 {
				return canonical
			}
		}
	}
	return ""
}

// findNumber extracts the first numeric token, with or without a trailing
// percent sign. Range checks happen in schema validation, not here.
func findNumber(tokens []string) (int, bool) {
	for _, t := range tokens {
		t = strings.TrimSuffix(t, "%")
		n, err := strconv.Atoi(t)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// findDirection scans for a volume direction token.
func findDirection(tokens []string) string {
	for _, t := range tokens {
		switch t {
		case "up", "вверх", "выше":
			return "up"
		case "down", "вниз", "ниже":
			return "down"
		}
	}
	return ""
}

// sameReading reports whether two candidates would produce the same intent.
func sameReading(a, b candidate) bool {
	if a.action != b.action || len(a.params) != len(b.params) {
		return false
	}
	for k, v := range a.params {
		if b.params[k] != v {
			return false
		}
	}
	return true
}
