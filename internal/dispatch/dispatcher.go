package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain"
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/entities"
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/repositories"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/metrics"
)

const (
	defaultCacheSize        = 100
	defaultMaxSpeakerLen    = 100
	defaultMaxTextLen       = 5000
	defaultTranslateTimeout = 30 * time.Second
	historyTimeout          = 5 * time.Second
)

var errEmptyTranslation = errors.New("translator returned empty text")

// Config holds configuration for the Dispatcher
type Config struct {
	CacheSize        int
	MaxSpeakerLen    int // in runes
	MaxTextLen       int // in runes
	TranslateTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CacheSize <= 0 {
		c.CacheSize = defaultCacheSize
	}
	if c.MaxSpeakerLen <= 0 {
		c.MaxSpeakerLen = defaultMaxSpeakerLen
	}
	if c.MaxTextLen <= 0 {
		c.MaxTextLen = defaultMaxTextLen
	}
	if c.TranslateTimeout <= 0 {
		c.TranslateTimeout = defaultTranslateTimeout
	}
	return c
}

// Stats is a read-only snapshot of dispatcher counters
type Stats struct {
	MessagesReceived   int64 `json:"messages_received"`
	MessagesTranslated int64 `json:"messages_translated"`
	CacheHits          int64 `json:"cache_hits"`
	ImmediateDisplays  int64 `json:"immediate_displays"`
	Errors             int64 `json:"errors"`
	CacheSize          int   `json:"cache_size"`
	InFlight           int   `json:"in_flight"`
	Enabled            bool  `json:"enabled"`
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithTranslator sets the translation provider
func WithTranslator(t repositories.Translator) Option {
	return func(d *Dispatcher) { d.translator = t }
}

// WithDisplay sets the display sink
func WithDisplay(s repositories.DisplaySink) Option {
	return func(d *Dispatcher) { d.display = s }
}

// WithHistory sets the dialogue history sink
func WithHistory(h repositories.HistorySink) Option {
	return func(d *Dispatcher) { d.history = h }
}

// WithEnabled sets whether translation starts enabled
func WithEnabled(enabled bool) Option {
	return func(d *Dispatcher) { d.enabled = enabled }
}

// Dispatcher deduplicates, caches and runs translations. At most one
// translation per unique message is in flight at any time; distinct
// messages translate concurrently and display as soon as each finishes.
type Dispatcher struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	translator repositories.Translator
	display    repositories.DisplaySink
	history    repositories.HistorySink
	enabled    bool

	cache    map[string]string
	order    []string // cache keys, oldest first
	inFlight map[string]struct{}

	lastText  string
	lastEvent domain.IngestEvent
	hasLast   bool

	stats Stats
	tasks sync.WaitGroup
}

// NewDispatcher creates a new translation dispatcher. Translation is
// enabled unless WithEnabled(false) is given.
func NewDispatcher(cfg Config, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		enabled:  true,
		cache:    make(map[string]string),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Key returns the cache key for a display string
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ComposeDisplayText joins speaker and text, capping each independently
func ComposeDisplayText(speaker, text string, maxSpeaker, maxText int) string {
	speaker = truncateRunes(strings.TrimSpace(speaker), maxSpeaker)
	text = truncateRunes(strings.TrimSpace(text), maxText)
	if speaker == "" {
		return text
	}
	return speaker + ": " + text
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// Handle processes one filtered event
func (d *Dispatcher) Handle(event domain.IngestEvent) {
	text := ComposeDisplayText(event.Speaker, event.Text, d.cfg.MaxSpeakerLen, d.cfg.MaxTextLen)
	event.Speaker = truncateRunes(strings.TrimSpace(event.Speaker), d.cfg.MaxSpeakerLen)

	d.mu.Lock()
	d.stats.MessagesReceived++
	// Always remembered so a manual re-trigger works while paused
	d.lastText = text
	d.lastEvent = event
	d.hasLast = true
	d.mu.Unlock()

	d.submit(text, event)
}

// Retrigger runs the last seen message through the pipeline again.
// It reports false when nothing has been received yet.
func (d *Dispatcher) Retrigger() bool {
	d.mu.Lock()
	if !d.hasLast {
		d.mu.Unlock()
		return false
	}
	text, event := d.lastText, d.lastEvent
	d.mu.Unlock()

	d.logger.Info("Re-triggering last message", zap.Int("length", len(text)))
	d.submit(text, event)
	return true
}

// LastOriginal returns the last display string seen
func (d *Dispatcher) LastOriginal() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastText, d.hasLast
}

func (d *Dispatcher) submit(text string, event domain.IngestEvent) {
	d.mu.Lock()
	if !d.enabled || d.translator == nil || d.display == nil {
		d.mu.Unlock()
		return
	}

	key := Key(text)
	if cached, ok := d.cache[key]; ok {
		d.stats.CacheHits++
		d.stats.ImmediateDisplays++
		display := d.display
		d.mu.Unlock()

		metrics.CacheHits.Inc()
		d.show(display, cached)
		return
	}

	if _, busy := d.inFlight[key]; busy {
		d.mu.Unlock()
		d.logger.Debug("Translation already in flight", zap.String("key", key[:12]))
		return
	}

	d.inFlight[key] = struct{}{}
	translator := d.translator
	d.tasks.Add(1)
	d.mu.Unlock()

	go d.translate(translator, key, text, event)
}

func (d *Dispatcher) translate(translator repositories.Translator, key, text string, event domain.IngestEvent) {
	defer d.tasks.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.TranslateTimeout)
	start := time.Now()
	result, err := translator.Translate(ctx, text)
	cancel()
	metrics.TranslationDuration.Observe(time.Since(start).Seconds())

	if err == nil && strings.TrimSpace(result) == "" {
		err = errEmptyTranslation
	}

	d.mu.Lock()
	delete(d.inFlight, key)
	if err != nil {
		d.stats.Errors++
		d.mu.Unlock()

		metrics.TranslationErrors.Inc()
		d.logger.Error("Translation failed",
			zap.String("key", key[:12]),
			zap.Int("length", len(text)),
			zap.Error(err))
		return
	}

	d.storeLocked(key, result)
	d.stats.MessagesTranslated++
	enabled, display, history := d.enabled, d.display, d.history
	if enabled && display != nil {
		d.stats.ImmediateDisplays++
	}
	d.mu.Unlock()

	metrics.TranslationsTotal.Inc()

	if !enabled || display == nil {
		d.logger.Debug("Translation disabled before completion, result cached only",
			zap.String("key", key[:12]))
		return
	}

	d.show(display, result)
	if history != nil {
		d.record(history, entities.NewDialogueEntry(text, result, event.Speaker, event.ChatCode))
	}
}

// storeLocked inserts into the FIFO cache. In-flight keys are tracked
// separately, so evicting never affects a running task.
func (d *Dispatcher) storeLocked(key, value string) {
	if _, exists := d.cache[key]; exists {
		d.cache[key] = value
		return
	}
	for len(d.order) >= d.cfg.CacheSize {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.cache, oldest)
	}
	d.cache[key] = value
	d.order = append(d.order, key)
}

func (d *Dispatcher) show(display repositories.DisplaySink, text string) {
	if err := display.Show(text); err != nil {
		d.logger.Warn("Display sink failed", zap.Error(err))
	}
}

func (d *Dispatcher) record(history repositories.HistorySink, entry *entities.DialogueEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := history.Record(ctx, entry); err != nil {
		d.logger.Warn("Failed to record dialogue history",
			zap.String("entryID", entry.ID),
			zap.Error(err))
	}
}

// SetEnabled turns active translation on or off. Tasks already running
// still finish and fill the cache but no longer display.
func (d *Dispatcher) SetEnabled(enabled bool) {
	d.mu.Lock()
	changed := d.enabled != enabled
	d.enabled = enabled
	d.mu.Unlock()

	if changed {
		d.logger.Info("Translation toggled", zap.Bool("enabled", enabled))
	}
}

// Enabled reports whether active translation is on
func (d *Dispatcher) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// SetTranslator swaps the translation provider
func (d *Dispatcher) SetTranslator(t repositories.Translator) {
	d.mu.Lock()
	d.translator = t
	d.mu.Unlock()
}

// SetDisplay swaps the display sink
func (d *Dispatcher) SetDisplay(s repositories.DisplaySink) {
	d.mu.Lock()
	d.display = s
	d.mu.Unlock()
}

// SetHistory swaps the history sink
func (d *Dispatcher) SetHistory(h repositories.HistorySink) {
	d.mu.Lock()
	d.history = h
	d.mu.Unlock()
}

// Cached returns the cached translation of a display string
func (d *Dispatcher) Cached(text string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.cache[Key(text)]
	return v, ok
}

// ClearCache drops every cached translation
func (d *Dispatcher) ClearCache() {
	d.mu.Lock()
	d.cache = make(map[string]string)
	d.order = nil
	d.mu.Unlock()
}

// Stats returns a snapshot of the counters
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.CacheSize = len(d.cache)
	s.InFlight = len(d.inFlight)
	s.Enabled = d.enabled
	return s
}

// Wait blocks until every translation started so far has finished
func (d *Dispatcher) Wait() {
	d.tasks.Wait()
}
