package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"
)

type fakeModels struct {
	calls     int
	failFirst int
	reply     string
	lastModel string
	lastCfg   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.lastModel = model
	f.lastCfg = config
	if f.calls <= f.failFirst {
		return nil, errors.New("503 unavailable")
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(f.reply, genai.RoleModel),
		}},
	}, nil
}

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{"missing key", GeminiConfig{}, true},
		{"valid", GeminiConfig{APIKey: "k"}, false},
		{"bad temperature", GeminiConfig{APIKey: "k", Temperature: 1.5}, true},
		{"bad topP", GeminiConfig{APIKey: "k", TopP: -0.1}, true},
		{"negative timeout", GeminiConfig{APIKey: "k", TimeoutSeconds: -1}, true},
		{"negative attempts", GeminiConfig{APIKey: "k", MaxAttempts: -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGeminiConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGeminiTranslator_Translate(t *testing.T) {
	models := &fakeModels{reply: "  Aria: สวัสดี \n"}
	translator := newGeminiTranslator(models, GeminiConfig{APIKey: "k"}, zaptest.NewLogger(t))

	got, err := translator.Translate(context.Background(), "Aria: Hello")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "Aria: สวัสดี" {
		t.Errorf("Expected trimmed translation, got %q", got)
	}
	if models.lastModel != defaultModel {
		t.Errorf("Expected default model %s, got %s", defaultModel, models.lastModel)
	}
	instruction := models.lastCfg.SystemInstruction.Parts[0].Text
	if !strings.Contains(instruction, defaultTargetLanguage) {
		t.Errorf("Expected instruction to name the target language, got %q", instruction)
	}
}

func TestGeminiTranslator_RetriesThenSucceeds(t *testing.T) {
	models := &fakeModels{reply: "ok", failFirst: 2}
	translator := newGeminiTranslator(models, GeminiConfig{APIKey: "k"}, zaptest.NewLogger(t))
	translator.retryDelay = time.Millisecond

	got, err := translator.Translate(context.Background(), "text")
	if err != nil || got != "ok" {
		t.Fatalf("Expected success on third attempt, got %q, %v", got, err)
	}
	if models.calls != 3 {
		t.Errorf("Expected 3 calls, got %d", models.calls)
	}
}

func TestGeminiTranslator_GivesUp(t *testing.T) {
	models := &fakeModels{reply: "ok", failFirst: 10}
	translator := newGeminiTranslator(models, GeminiConfig{APIKey: "k", MaxAttempts: 2}, zaptest.NewLogger(t))
	translator.retryDelay = time.Millisecond

	if _, err := translator.Translate(context.Background(), "text"); err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if models.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", models.calls)
	}
}

func TestGeminiTranslator_EmptyInputAndResponse(t *testing.T) {
	translator := newGeminiTranslator(&fakeModels{reply: ""}, GeminiConfig{APIKey: "k", MaxAttempts: 1}, zaptest.NewLogger(t))

	if _, err := translator.Translate(context.Background(), "   "); err == nil {
		t.Error("Expected error for empty input")
	}
	if _, err := translator.Translate(context.Background(), "hello"); err == nil {
		t.Error("Expected error for empty response")
	}
}

func TestMockTranslator(t *testing.T) {
	m := NewMockTranslator()

	tests := []struct {
		in       string
		expected string
	}{
		{"Hello", "สวัสดี"},
		{"Aria: Hello", "Aria: สวัสดี"},
		{"Something new", "[TH] Something new"},
	}
	for _, tt := range tests {
		got, err := m.Translate(context.Background(), tt.in)
		if err != nil || got != tt.expected {
			t.Errorf("Translate(%q) = %q, %v; expected %q", tt.in, got, err, tt.expected)
		}
	}

	m.Add("Something new", "ของใหม่")
	if got, _ := m.Translate(context.Background(), "Something new"); got != "ของใหม่" {
		t.Errorf("Expected added phrase, got %q", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Translate(ctx, "Hello"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
