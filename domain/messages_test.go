package domain

import "testing"

func TestParsePluginMessage(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected IngestEvent
		wantErr  bool
	}{
		{
			name:     "full dialogue line",
			line:     `{"Type":"dialogue","Speaker":"Aria","Message":"Hello","Timestamp":1700000000,"ChatType":61}`,
			expected: IngestEvent{Category: "dialogue", Speaker: "Aria", Text: "Hello", ChatCode: 61, Timestamp: 1700000000},
		},
		{
			name:     "missing fields default",
			line:     `{"Message":"narration"}`,
			expected: IngestEvent{Category: CategoryUnknown, Text: "narration"},
		},
		{
			name:     "string timestamp and unknown fields",
			line:     `{"Type":"Cutscene","Message":"x","Timestamp":"42","Extra":true}`,
			expected: IngestEvent{Category: CategoryCutscene, Text: "x", Timestamp: 42},
		},
		{
			name:     "garbage timestamp decodes to zero",
			line:     `{"Type":"battle","Message":"hit","Timestamp":"soon"}`,
			expected: IngestEvent{Category: CategoryBattle, Text: "hit"},
		},
		{
			name:    "invalid json",
			line:    `{"Type":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParsePluginMessage([]byte(tt.line))
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if event != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, event)
			}
		})
	}
}

func TestIngestEventValid(t *testing.T) {
	if (IngestEvent{Text: "  \t\n"}).Valid() {
		t.Error("Whitespace-only text should be invalid")
	}
	if !(IngestEvent{Text: " hi "}).Valid() {
		t.Error("Non-empty text should be valid")
	}
}
