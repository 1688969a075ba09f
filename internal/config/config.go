package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Translator backends
const (
	TranslatorGemini = "gemini"
	TranslatorMock   = "mock"
)

// History backends
const (
	HistoryMemory = "memory"
	HistoryMongo  = "mongo"
	HistorySQLite = "sqlite"
)

// Config holds all configuration for the bridge.
type Config struct {
	Port string
	Env  string

	// Endpoint connection
	PipeName          string
	FastRetry         time.Duration
	MaxBackoff        time.Duration
	FailFastThreshold int
	MaxFailures       int
	ConnectWait       time.Duration

	// Translation
	Translator         string
	GeminiAPIKey       string
	GeminiModel        string
	TargetLanguage     string
	TranslationEnabled bool

	// History
	HistoryBackend  string
	MongoURI        string
	MongoDatabase   string
	SQLitePath      string
	HistoryCapacity int

	// Overlay
	AuthSecret     string
	StatusInterval time.Duration

	problems []error
}

// Load reads configuration from environment variables, loading a .env file
// first when one is present. Values that fail to parse keep their default
// and are reported by Validate.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("BRIDGE_ENV", "production"),
		PipeName:       getEnv("BRIDGE_PIPE_NAME", "mbb_dalamud_bridge"),
		Translator:     strings.ToLower(getEnv("TRANSLATOR", TranslatorGemini)),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    os.Getenv("GEMINI_MODEL"),
		TargetLanguage: getEnv("TARGET_LANGUAGE", "Thai"),
		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", HistoryMemory)),
		MongoURI:       os.Getenv("MONGODB_URI"),
		MongoDatabase:  os.Getenv("MONGODB_DATABASE"),
		SQLitePath:     getEnv("SQLITE_PATH", "./data/history.db"),
		AuthSecret:     os.Getenv("AUTH_SECRET"),
	}

	cfg.FastRetry = cfg.duration("BRIDGE_FAST_RETRY", 2*time.Second)
	cfg.MaxBackoff = cfg.duration("BRIDGE_MAX_BACKOFF", 30*time.Second)
	cfg.ConnectWait = cfg.duration("BRIDGE_CONNECT_WAIT", 10*time.Second)
	cfg.StatusInterval = cfg.duration("STATUS_INTERVAL", 5*time.Second)
	cfg.FailFastThreshold = cfg.integer("BRIDGE_FAIL_FAST_THRESHOLD", 5)
	cfg.MaxFailures = cfg.integer("BRIDGE_MAX_FAILURES", 20)
	cfg.HistoryCapacity = cfg.integer("HISTORY_CAPACITY", 1000)
	cfg.TranslationEnabled = cfg.boolean("TRANSLATION_ENABLED", true)

	return cfg
}

// Validate reports parse problems and inconsistent settings
func (c *Config) Validate() error {
	errs := append([]error(nil), c.problems...)

	switch c.Translator {
	case TranslatorGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when TRANSLATOR=gemini"))
		}
	case TranslatorMock:
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSLATOR %q", c.Translator))
	}

	switch c.HistoryBackend {
	case HistoryMemory, HistorySQLite:
	case HistoryMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when HISTORY_BACKEND=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown HISTORY_BACKEND %q", c.HistoryBackend))
	}

	if c.FailFastThreshold < 0 || c.MaxFailures <= c.FailFastThreshold {
		errs = append(errs, fmt.Errorf("BRIDGE_MAX_FAILURES (%d) must exceed BRIDGE_FAIL_FAST_THRESHOLD (%d)", c.MaxFailures, c.FailFastThreshold))
	}
	if c.FastRetry <= 0 || c.MaxBackoff <= 0 || c.ConnectWait <= 0 {
		errs = append(errs, errors.New("connection durations must be positive"))
	}

	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// AuthEnabled reports whether overlay and control endpoints require a token
func (c *Config) AuthEnabled() bool {
	return c.AuthSecret != ""
}

func (c *Config) duration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func (c *Config) integer(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func (c *Config) boolean(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return b
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
