package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/repositories"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultTargetLanguage  = "Thai"
	defaultTemperature     = 0.3
	defaultTopP            = 0.9
	defaultMaxTokens       = 1024
	defaultTimeoutSeconds  = 20
	defaultMaxAttempts     = 3
	translationInstruction = "You translate dialogue from a fantasy MMORPG into %s. " +
		"Lines may start with a speaker name followed by a colon; keep that name untranslated and keep the colon. " +
		"Preserve the tone of the character. Reply with the translation only, without quotes or commentary."
)

// GeminiConfig holds configuration for the Gemini translator
type GeminiConfig struct {
	APIKey          string  // Required: Google AI API key
	Model           string  // Optional: model name
	TargetLanguage  string  // Optional: language to translate into
	Temperature     float32 // Optional: between 0 and 1
	TopP            float32 // Optional: between 0 and 1
	MaxOutputTokens int     // Optional
	TimeoutSeconds  int     // Optional: per attempt
	MaxAttempts     int     // Optional
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	if config.TopP != 0 && (config.TopP < 0 || config.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	if config.MaxAttempts < 0 {
		return fmt.Errorf("maxAttempts must be positive, got %d", config.MaxAttempts)
	}

	return nil
}

// contentGenerator is the part of *genai.Models the translator uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiTranslator implements the Translator interface using Google's Gemini API
type GeminiTranslator struct {
	models          contentGenerator
	logger          *zap.Logger
	model           string
	targetLanguage  string
	temperature     float32
	topP            float32
	maxOutputTokens int
	timeout         time.Duration
	maxAttempts     int
	retryDelay      time.Duration
}

// Ensure GeminiTranslator implements the Translator interface
var _ repositories.Translator = (*GeminiTranslator)(nil)

// NewGeminiTranslator creates a new Gemini translator
func NewGeminiTranslator(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiTranslator, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiTranslator(client.Models, config, logger), nil
}

func newGeminiTranslator(models contentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiTranslator {
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	targetLanguage := config.TargetLanguage
	if targetLanguage == "" {
		targetLanguage = defaultTargetLanguage
		logger.Info("Using default target language", zap.String("targetLanguage", targetLanguage))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
	}

	topP := config.TopP
	if topP == 0 {
		topP = float32(defaultTopP)
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &GeminiTranslator{
		models:          models,
		logger:          logger,
		model:           model,
		targetLanguage:  targetLanguage,
		temperature:     temperature,
		topP:            topP,
		maxOutputTokens: maxOutputTokens,
		timeout:         time.Duration(timeoutSeconds) * time.Second,
		maxAttempts:     maxAttempts,
		retryDelay:      time.Second,
	}
}

// Translate implements repositories.Translator
func (g *GeminiTranslator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text cannot be empty")
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(fmt.Sprintf(translationInstruction, g.targetLanguage), genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		TopP:              genai.Ptr(g.topP),
		MaxOutputTokens:   int32(g.maxOutputTokens),
	}

	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		translated, err := g.generate(ctx, contents, config)
		if err == nil {
			g.logger.Debug("Translation generated",
				zap.Int("attempt", attempt+1),
				zap.String("source_preview", preview(text)),
				zap.String("result_preview", preview(translated)))
			return translated, nil
		}
		lastErr = err

		g.logger.Warn("Failed to generate translation, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < g.maxAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt+1) * g.retryDelay):
			}
		}
	}

	return "", fmt.Errorf("translation failed after %d attempts: %w", g.maxAttempts, lastErr)
}

func (g *GeminiTranslator) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	response, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", err
	}

	if response == nil || len(response.Candidates) == 0 ||
		response.Candidates[0].Content == nil || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var builder strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			builder.WriteString(part.Text)
		}
	}

	translated := strings.TrimSpace(builder.String())
	if translated == "" {
		return "", fmt.Errorf("empty response")
	}
	return translated, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 50 {
		return string(r[:50])
	}
	return s
}
