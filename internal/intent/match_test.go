package intent

import "testing"

func TestMatchToken(t *testing.T) {
	tests := []struct {
		token string
		stem  string
		want  float64
	}{
		{"кух", "кухня", 0}, // truncated token, too far for one edit
		{"кухне", "кухн", 1}, // inflection suffix
		{"кухнями", "кухн", 1},
		{"свет", "свет", 1},
		{"статус", "статус", 1},
		{"включи", "включ", 1},
		{"here", "свет", 0},
		{"150%", "зал", 0},
	}

	for _, tt := range tests {
		t.Run(tt.token+"/"+tt.stem, func(t *testing.T) {
			if got := matchToken(tt.token, tt.stem); got != tt.want {
				t.Errorf("matchToken(%q, %q) = %.2f, want %.2f", tt.token, tt.stem, got, tt.want)
			}
		})
	}
}

// Mixed-script pairs where the token holds more runes than the stem but
// fewer bytes must score zero, not slice past the token's end.
func TestMatchToken_MixedScripts(t *testing.T) {
	pairs := []struct{ token, stem string }{
		{"kitchen", "статус"},
		{"brightness", "здоровье"},
		{"all", "зал"},
		{"свет", "brightness"},
	}

	for _, p := range pairs {
		if got := matchToken(p.token, p.stem); got != 0 {
			t.Errorf("matchToken(%q, %q) = %.2f, want 0", p.token, p.stem, got)
		}
	}
}
