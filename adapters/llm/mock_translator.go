package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/repositories"
)

// MockTranslator is a placeholder Translator for development without an API key
type MockTranslator struct {
	mu         sync.RWMutex
	dictionary map[string]string
	prefix     string
}

// NewMockTranslator creates a new mock translator
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{
		dictionary: map[string]string{
			"Hello":     "สวัสดี",
			"Thank you": "ขอบคุณ",
			"Farewell":  "ลาก่อน",
		},
		prefix: "[TH]",
	}
}

var _ repositories.Translator = (*MockTranslator)(nil)

// Add registers a fixed translation
func (m *MockTranslator) Add(source, translated string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dictionary[source] = translated
}

// Translate implements repositories.Translator. Known phrases are looked up
// by the text after any "Speaker: " prefix; everything else is tagged.
func (m *MockTranslator) Translate(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	speaker, body := "", text
	if idx := strings.Index(text, ": "); idx > 0 {
		speaker, body = text[:idx], text[idx+2:]
	}

	m.mu.RLock()
	translated, ok := m.dictionary[body]
	m.mu.RUnlock()
	if !ok {
		translated = fmt.Sprintf("%s %s", m.prefix, body)
	}

	if speaker != "" {
		return speaker + ": " + translated, nil
	}
	return translated, nil
}
