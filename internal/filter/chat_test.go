package filter

import (
	"testing"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain"
)

func TestShouldTranslate(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		category string
		expected bool
	}{
		{"npc dialogue", 61, "dialogue", true},
		{"npc announcement", 68, "dialogue", true},
		{"cutscene subtitle", 71, "cutscene", true},
		{"battle talk", 72, "battle", true},
		{"combat spam", 2857, "battle", false},
		{"system message", 57, "system", false},
		{"error message", 60, "system", false},
		{"blocked code wins over cutscene", 2874, "cutscene", false},
		{"unmapped cutscene code", 9999, "cutscene", true},
		{"unmapped dialogue code fails open", 12345, "dialogue", true},
		{"zero code unknown category", 0, "unknown", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldTranslate(tt.code, tt.category); got != tt.expected {
				t.Errorf("ShouldTranslate(%d, %q) = %v, expected %v", tt.code, tt.category, got, tt.expected)
			}
		})
	}
}

func TestCodeSetsAreDisjoint(t *testing.T) {
	for code := range allowed {
		if Blocked(code) {
			t.Errorf("code %d is both allowed and blocked", code)
		}
	}
}

func TestAllow(t *testing.T) {
	if Allow(domain.IngestEvent{ChatCode: 2857, Category: "battle", Text: "x"}) {
		t.Error("Blocked event should not be allowed")
	}
	if !Allow(domain.IngestEvent{ChatCode: 61, Category: "dialogue", Text: "x"}) {
		t.Error("Dialogue event should be allowed")
	}
	if !Allowed(61) || Allowed(57) {
		t.Error("Allowed helper disagrees with the allowed set")
	}
}
