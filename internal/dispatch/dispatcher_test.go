package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain"
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/entities"
)

// stubTranslator returns fn(text). When gate is set, each call blocks
// until the gate is closed.
type stubTranslator struct {
	calls atomic.Int32
	gate  chan struct{}
	fn    func(call int32, text string) (string, error)
}

func (s *stubTranslator) Translate(ctx context.Context, text string) (string, error) {
	call := s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.fn != nil {
		return s.fn(call, text)
	}
	return "translated: " + text, nil
}

type recordingDisplay struct {
	mu    sync.Mutex
	shown []string
	err   error
}

func (r *recordingDisplay) Show(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, text)
	return r.err
}

func (r *recordingDisplay) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.shown...)
}

type recordingHistory struct {
	mu      sync.Mutex
	entries []*entities.DialogueEntry
	err     error
}

func (r *recordingHistory) Record(ctx context.Context, entry *entities.DialogueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return r.err
}

func dialogue(speaker, text string) domain.IngestEvent {
	return domain.IngestEvent{Category: "dialogue", Speaker: speaker, Text: text, ChatCode: 61}
}

func TestDispatcher_TranslatesDialogue(t *testing.T) {
	translator := &stubTranslator{fn: func(int32, string) (string, error) { return "สวัสดี", nil }}
	display := &recordingDisplay{}
	history := &recordingHistory{}
	d := NewDispatcher(Config{}, zaptest.NewLogger(t),
		WithTranslator(translator), WithDisplay(display), WithHistory(history))

	d.Handle(dialogue("Aria", "Hello"))
	d.Wait()

	shown := display.snapshot()
	if len(shown) != 1 || shown[0] != "สวัสดี" {
		t.Errorf("Expected one display of สวัสดี, got %v", shown)
	}
	if _, ok := d.Cached("Aria: Hello"); !ok {
		t.Error("Expected translation to be cached")
	}

	stats := d.Stats()
	if stats.MessagesTranslated != 1 || stats.MessagesReceived != 1 || stats.ImmediateDisplays != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	if len(history.entries) != 1 {
		t.Fatalf("Expected one history entry, got %d", len(history.entries))
	}
	entry := history.entries[0]
	if entry.Original != "Aria: Hello" || entry.Translated != "สวัสดี" || entry.Speaker != "Aria" || entry.ChatCode != 61 {
		t.Errorf("Unexpected history entry: %+v", entry)
	}
}

func TestDispatcher_AtMostOneInFlightPerMessage(t *testing.T) {
	translator := &stubTranslator{gate: make(chan struct{})}
	display := &recordingDisplay{}
	d := NewDispatcher(Config{}, zaptest.NewLogger(t), WithTranslator(translator), WithDisplay(display))

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Handle(dialogue("Aria", "Hello"))
		}()
	}
	wg.Wait()

	if got := translator.calls.Load(); got > 1 {
		t.Errorf("Expected at most one translator call while in flight, got %d", got)
	}
	if got := d.Stats().InFlight; got != 1 {
		t.Errorf("Expected one in-flight task, got %d", got)
	}

	close(translator.gate)
	d.Wait()

	if got := translator.calls.Load(); got != 1 {
		t.Errorf("Expected exactly one translator call, got %d", got)
	}
	if got := len(display.snapshot()); got != 1 {
		t.Errorf("Expected one live display, got %d", got)
	}

	// Once cached, repeats are served without a new task
	for i := 0; i < n-1; i++ {
		d.Handle(dialogue("Aria", "Hello"))
	}
	if got := len(display.snapshot()); got != n {
		t.Errorf("Expected %d displays after cache hits, got %d", n, got)
	}
	stats := d.Stats()
	if stats.CacheHits != n-1 || translator.calls.Load() != 1 {
		t.Errorf("Expected %d cache hits and one call, got %+v calls=%d", n-1, stats, translator.calls.Load())
	}
}

func TestDispatcher_DistinctMessagesRunConcurrently(t *testing.T) {
	translator := &stubTranslator{gate: make(chan struct{})}
	d := NewDispatcher(Config{}, zaptest.NewLogger(t), WithTranslator(translator), WithDisplay(&recordingDisplay{}))

	d.Handle(dialogue("", "one"))
	d.Handle(dialogue("", "two"))
	d.Handle(dialogue("", "three"))

	deadline := time.Now().Add(time.Second)
	for translator.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := translator.calls.Load(); got != 3 {
		t.Errorf("Expected three concurrent translator calls, got %d", got)
	}
	if got := d.Stats().InFlight; got != 3 {
		t.Errorf("Expected three in-flight tasks, got %d", got)
	}

	close(translator.gate)
	d.Wait()
}

func TestDispatcher_DisplaysInCompletionOrder(t *testing.T) {
	slowRelease := make(chan struct{})
	translator := &stubTranslator{fn: func(_ int32, text string) (string, error) {
		if text == "slow" {
			<-slowRelease
		}
		return strings.ToUpper(text), nil
	}}
	display := &recordingDisplay{}
	d := NewDispatcher(Config{}, zaptest.NewLogger(t), WithTranslator(translator), WithDisplay(display))

	d.Handle(dialogue("", "slow"))
	d.Handle(dialogue("", "fast"))

	deadline := time.Now().Add(time.Second)
	for len(display.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(slowRelease)
	d.Wait()

	shown := display.snapshot()
	if len(shown) != 2 || shown[0] != "FAST" || shown[1] != "SLOW" {
		t.Errorf("Expected [FAST SLOW], got %v", shown)
	}
}

func TestDispatcher_StaleResultIsCachedButNotShown(t *testing.T) {
	translator := &stubTranslator{gate: make(chan struct{})}
	display := &recordingDisplay{}
	history := &recordingHistory{}
	d := NewDispatcher(Config{}, zaptest.NewLogger(t),
		WithTranslator(translator), WithDisplay(display), WithHistory(history))

	d.Handle(dialogue("Aria", "Hello"))
	d.SetEnabled(false)
	close(translator.gate)
	d.Wait()

	if got := len(display.snapshot()); got != 0 {
		t.Errorf("Expected no display after disabling, got %d", got)
	}
	if len(history.entries) != 0 {
		t.Errorf("Expected no history after disabling, got %d", len(history.entries))
	}
	if _, ok := d.Cached("Aria: Hello"); !ok {
		t.Error("Completed task should still fill the cache")
	}
	if d.Stats().MessagesTranslated != 1 {
		t.Errorf("Expected translated count 1, got %d", d.Stats().MessagesTranslated)
	}
}

func TestDispatcher_DisabledStillRecordsLastOriginal(t *testing.T) {
	translator := &stubTranslator{}
	display := &recordingDisplay{}
	d := NewDispatcher(Config{}, zaptest.NewLogger(t),
		WithTranslator(translator), WithDisplay(display), WithEnabled(false))

	if d.Retrigger() {
		t.Error("Retrigger should report false before any message")
	}

	d.Handle(dialogue("Aria", "Hello"))
	d.Wait()

	if translator.calls.Load() != 0 {
		t.Error("Translator must not run while disabled")
	}
	last, ok := d.LastOriginal()
	if !ok || last != "Aria: Hello" {
		t.Errorf("Expected last original to be recorded, got %q (ok=%v)", last, ok)
	}
	if d.Stats().MessagesReceived != 1 {
		t.Errorf("Expected received count 1, got %d", d.Stats().MessagesReceived)
	}

	d.SetEnabled(true)
	if !d.Retrigger() {
		t.Fatal("Retrigger should succeed once a message was seen")
	}
	d.Wait()

	if shown := display.snapshot(); len(shown) != 1 || shown[0] != "translated: Aria: Hello" {
		t.Errorf("Expected re-triggered translation, got %v", shown)
	}
}

func TestDispatcher_MissingCollaborators(t *testing.T) {
	d := NewDispatcher(Config{}, zaptest.NewLogger(t))
	d.Handle(dialogue("", "nobody listening"))
	d.Wait()

	if stats := d.Stats(); stats.MessagesReceived != 1 || stats.InFlight != 0 || stats.CacheSize != 0 {
		t.Errorf("Expected only the receive counter to move, got %+v", stats)
	}

	translator := &stubTranslator{}
	display := &recordingDisplay{}
	d.SetTranslator(translator)
	d.SetDisplay(display)
	d.Handle(dialogue("", "now listening"))
	d.Wait()

	if len(display.snapshot()) != 1 {
		t.Error("Expected display once collaborators are set")
	}
}

func TestDispatcher_TranslatorErrorAllowsRetry(t *testing.T) {
	translator := &stubTranslator{fn: func(call int32, text string) (string, error) {
		if call == 1 {
			return "", errors.New("quota exceeded")
		}
		return "ok", nil
	}}
	display := &recordingDisplay{}
	d := NewDispatcher(Config{}, zaptest.NewLogger(t), WithTranslator(translator), WithDisplay(display))

	d.Handle(dialogue("", "retry me"))
	d.Wait()

	stats := d.Stats()
	if stats.Errors != 1 || stats.InFlight != 0 {
		t.Errorf("Expected one error and nothing in flight, got %+v", stats)
	}
	if _, ok := d.Cached("retry me"); ok {
		t.Error("Failed translation must not be cached")
	}

	d.Handle(dialogue("", "retry me"))
	d.Wait()

	if translator.calls.Load() != 2 {
		t.Errorf("Expected a second translator call, got %d", translator.calls.Load())
	}
	if shown := display.snapshot(); len(shown) != 1 || shown[0] != "ok" {
		t.Errorf("Expected the retry to display, got %v", shown)
	}
}

func TestDispatcher_EmptyTranslationIsAnError(t *testing.T) {
	translator := &stubTranslator{fn: func(int32, string) (string, error) { return "  ", nil }}
	display := &recordingDisplay{}
	d := NewDispatcher(Config{}, zaptest.NewLogger(t), WithTranslator(translator), WithDisplay(display))

	d.Handle(dialogue("", "blank"))
	d.Wait()

	if d.Stats().Errors != 1 || len(display.snapshot()) != 0 {
		t.Errorf("Expected empty result to count as an error, got %+v", d.Stats())
	}
}

func TestDispatcher_CacheEvictsOldestFirst(t *testing.T) {
	translator := &stubTranslator{}
	d := NewDispatcher(Config{CacheSize: 2}, zaptest.NewLogger(t),
		WithTranslator(translator), WithDisplay(&recordingDisplay{}))

	for _, text := range []string{"a", "b", "c"} {
		d.Handle(dialogue("", text))
		d.Wait()
	}

	if _, ok := d.Cached("a"); ok {
		t.Error("Oldest entry should have been evicted")
	}
	for _, text := range []string{"b", "c"} {
		if _, ok := d.Cached(text); !ok {
			t.Errorf("Expected %q to be cached", text)
		}
	}
	if d.Stats().CacheSize != 2 {
		t.Errorf("Expected cache size 2, got %d", d.Stats().CacheSize)
	}

	d.ClearCache()
	if d.Stats().CacheSize != 0 {
		t.Error("ClearCache should empty the cache")
	}
}

func TestDispatcher_EvictionDoesNotTouchInFlight(t *testing.T) {
	gate := make(chan struct{})
	translator := &stubTranslator{fn: func(_ int32, text string) (string, error) {
		if text == "long" {
			<-gate
		}
		return text, nil
	}}
	d := NewDispatcher(Config{CacheSize: 1}, zaptest.NewLogger(t),
		WithTranslator(translator), WithDisplay(&recordingDisplay{}))

	d.Handle(dialogue("", "long"))
	for _, text := range []string{"x", "y", "z"} {
		d.Handle(dialogue("", text))
	}

	deadline := time.Now().Add(time.Second)
	for d.Stats().MessagesTranslated < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// "long" must still be deduplicated while the cache churns
	d.Handle(dialogue("", "long"))
	if got := d.Stats().InFlight; got != 1 {
		t.Errorf("Expected the long task to stay in flight, got %d", got)
	}

	close(gate)
	d.Wait()

	if got := translator.calls.Load(); got != 4 {
		t.Errorf("Expected 4 translator calls, got %d", got)
	}
}

func TestDispatcher_SinkFailuresAreSwallowed(t *testing.T) {
	display := &recordingDisplay{err: errors.New("overlay gone")}
	history := &recordingHistory{err: errors.New("disk full")}
	d := NewDispatcher(Config{}, zaptest.NewLogger(t),
		WithTranslator(&stubTranslator{}), WithDisplay(display), WithHistory(history))

	d.Handle(dialogue("", "fragile"))
	d.Wait()
	d.Handle(dialogue("", "fragile"))

	stats := d.Stats()
	if stats.Errors != 0 || stats.MessagesTranslated != 1 || stats.CacheHits != 1 {
		t.Errorf("Sink errors must not affect the pipeline, got %+v", stats)
	}
}

func TestComposeDisplayText(t *testing.T) {
	longSpeaker := strings.Repeat("ก", 150)
	longText := strings.Repeat("x", 6000)

	tests := []struct {
		name     string
		speaker  string
		text     string
		expected string
	}{
		{"with speaker", "Aria", "Hello", "Aria: Hello"},
		{"narration", "", "The wind howls.", "The wind howls."},
		{"trims whitespace", "  Aria ", " Hello\n", "Aria: Hello"},
		{"caps speaker by runes", longSpeaker, "hi", strings.Repeat("ก", 100) + ": hi"},
		{"caps body", "", longText, strings.Repeat("x", 5000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComposeDisplayText(tt.speaker, tt.text, defaultMaxSpeakerLen, defaultMaxTextLen)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestKeyIsStable(t *testing.T) {
	if Key("Aria: Hello") != Key("Aria: Hello") {
		t.Error("Key must be deterministic")
	}
	if Key("a") == Key("b") {
		t.Error("Different text should hash differently")
	}
}
