package intent

import (
	"errors"
	"testing"

	"github.com/nerrad567/jarvis-core/internal/device"
)

// stubRooms is a fixed RoomSource.
type stubRooms map[device.Kind][]string

func (s stubRooms) Rooms(kind device.Kind) []string { return s[kind] }

var multiRoom = stubRooms{
	device.KindLight: {"bathroom", "hallway", "kitchen", "room", "toilet"},
}

func newTestParser() *Parser {
	return NewParser(Options{Rooms: multiRoom})
}

func TestParse_LightCommands(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		text   string
		action device.Action
		room   string
	}{
		{"Включи свет в кухне", device.ActionOn, "kitchen"},
		{"включи свет на кухне", device.ActionOn, "kitchen"},
		{"turn on the lights in the kitchen", device.ActionOn, "kitchen"},
		{"выключи свет в ванной", device.ActionOff, "bathroom"},
		{"turn off the light in the hallway", device.ActionOff, "hallway"},
		{"включи весь свет", device.ActionOn, device.RoomAll},
		{"turn on all the lights", device.ActionOn, device.RoomAll},
		{"выключи свет в туалете", device.ActionOff, "toilet"},
		{"зажги свет в коридоре", device.ActionOn, "hallway"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in, err := p.Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.text, err)
			}
			if in.Kind != device.KindLight {
				t.Errorf("kind = %s, want light", in.Kind)
			}
			if in.Action != tt.action {
				t.Errorf("action = %s, want %s", in.Action, tt.action)
			}
			if in.Room != tt.room {
				t.Errorf("room = %q, want %q", in.Room, tt.room)
			}
			if in.Confidence < 0.6 {
				t.Errorf("confidence = %.2f, want >= 0.6", in.Confidence)
			}
		})
	}
}

func TestParse_BrightnessFromPercent(t *testing.T) {
	p := newTestParser()

	in, err := p.Parse("включи свет на 50% в кухне")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if in.Action != device.ActionSetBrightness {
		t.Errorf("action = %s, want set_brightness", in.Action)
	}
	if v, _ := in.Params.Int("brightness"); v != 50 {
		t.Errorf("brightness = %d, want 50", v)
	}
	if in.Room != "kitchen" {
		t.Errorf("room = %q, want kitchen", in.Room)
	}
}

func TestParse_BrightnessOutOfRange(t *testing.T) {
	p := newTestParser()

	_, err := p.Parse("свет 150% в кухне")
	if !errors.Is(err, device.ErrInvalidParams) {
		t.Errorf("Parse() error = %v, want ErrInvalidParams", err)
	}
}

func TestParse_TVCommands(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		text   string
		action device.Action
		key    string
		value  any
	}{
		{"включи телевизор", device.ActionOn, "", nil},
		{"выключи телек", device.ActionOff, "", nil},
		{"включи нетфликс на телевизоре", device.ActionLaunchApp, "app", "netflix"},
		{"открой ютуб на тв", device.ActionLaunchApp, "app", "youtube"},
		{"сделай телевизор громче", device.ActionSetVolume, "direction", "up"},
		{"тише телевизор", device.ActionSetVolume, "direction", "down"},
		{"телевизор громкость 40", device.ActionSetVolume, "volume", 40},
		{"turn up the volume on the tv", device.ActionSetVolume, "direction", "up"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in, err := p.Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.text, err)
			}
			if in.Kind != device.KindTV {
				t.Errorf("kind = %s, want tv", in.Kind)
			}
			if in.Action != tt.action {
				t.Errorf("action = %s, want %s", in.Action, tt.action)
			}
			if tt.key != "" {
				if got := in.Params[tt.key]; got != tt.value {
					t.Errorf("params[%s] = %v, want %v", tt.key, got, tt.value)
				}
			}
		})
	}
}

func TestParse_VacuumCommands(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		text   string
		action device.Action
	}{
		{"пылесос начни уборку", device.ActionStart},
		{"start the vacuum", device.ActionStart},
		{"пылесос пауза", device.ActionPause},
		{"робот на базу", device.ActionDock},
		{"пылесос домой", device.ActionDock},
		{"send the vacuum home", device.ActionDock},
		{"где пылесос", device.ActionLocate},
		{"find the vacuum", device.ActionLocate},
		{"останови пылесос", device.ActionStop},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in, err := p.Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.text, err)
			}
			if in.Kind != device.KindVacuum {
				t.Errorf("kind = %s, want vacuum", in.Kind)
			}
			if in.Action != tt.action {
				t.Errorf("action = %s, want %s", in.Action, tt.action)
			}
		})
	}
}

func TestParse_StatusQuery(t *testing.T) {
	p := newTestParser()

	for _, text := range []string{"статус", "status", "какое состояние устройств"} {
		in, err := p.Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", text, err)
		}
		if in.Target != TargetStatus {
			t.Errorf("Parse(%q) target = %s, want status", text, in.Target)
		}
	}
}

func TestParse_NoDeviceKeyword(t *testing.T) {
	p := newTestParser()

	_, err := p.Parse("сделай что-нибудь")
	pe, ok := AsParseError(err)
	if !ok || pe.Kind != ErrKindUnknown {
		t.Errorf("Parse() error = %v, want unknown parse error", err)
	}
}

func TestParse_MultipleKindsAmbiguous(t *testing.T) {
	p := newTestParser()

	_, err := p.Parse("включи свет и телевизор")
	pe, ok := AsParseError(err)
	if !ok || pe.Kind != ErrKindAmbiguous {
		t.Errorf("Parse() error = %v, want ambiguous parse error", err)
	}
}

func TestParse_ConflictingActionsAmbiguous(t *testing.T) {
	p := newTestParser()

	_, err := p.Parse("tv on off")
	pe, ok := AsParseError(err)
	if !ok || pe.Kind != ErrKindAmbiguous {
		t.Errorf("Parse() error = %v, want ambiguous parse error", err)
	}
}

func TestParse_RoomRequiredWithManyRooms(t *testing.T) {
	p := NewParser(Options{DefaultRoom: "room", Rooms: multiRoom})

	_, err := p.Parse("включи свет")
	pe, ok := AsParseError(err)
	if !ok || pe.Kind != ErrKindAmbiguous {
		t.Errorf("Parse() error = %v, want ambiguous parse error", err)
	}
}

func TestParse_DefaultRoomWithSingleDevice(t *testing.T) {
	p := NewParser(Options{
		DefaultRoom: "room",
		Rooms:       stubRooms{device.KindLight: {"room"}},
	})

	in, err := p.Parse("включи свет")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if in.Room != "room" {
		t.Errorf("room = %q, want default room", in.Room)
	}
}

func TestParse_LowConfidence(t *testing.T) {
	p := NewParser(Options{MinConfidence: 0.9, Rooms: multiRoom})

	// "яркост" is one edit from the brightness stem: matched, but below
	// the raised threshold.
	_, err := p.Parse("яркост свет 50 в кухне")
	pe, ok := AsParseError(err)
	if !ok || pe.Kind != ErrKindLowConfidence {
		t.Errorf("Parse() error = %v, want low-confidence parse error", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Включи свет, пожалуйста!", []string{"включи", "свет"}},
		{"Turn ON the Lights", []string{"on", "lights"}},
		{"свет на 50%", []string{"свет", "50%"}},
		{"всё выключи", []string{"все", "выключи"}},
		{"", nil},
	}

	for _, tt := range tests {
		got := Normalize(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("Normalize(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Normalize(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitchen", "kitchen", 0},
		{"kitchen", "kitchn", 1},
		{"кухня", "кухне", 1},
		{"свет", "light", 5},
		{"", "abc", 3},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
