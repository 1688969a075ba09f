package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iarcanar99/MBB-Dalamud-sub001/adapters"
	"github.com/iarcanar99/MBB-Dalamud-sub001/adapters/llm"
	"github.com/iarcanar99/MBB-Dalamud-sub001/adapters/mongo"
	"github.com/iarcanar99/MBB-Dalamud-sub001/adapters/sqlite"
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/repositories"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/api"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/auth"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/config"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/dispatch"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/ipc"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/store"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/websocket"
	"github.com/iarcanar99/MBB-Dalamud-sub001/usecase"
)

func newLogger(cfg *config.Config) *zap.Logger {
	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runServe(ctx context.Context) error {
	cfg := config.Load()
	logger := newLogger(cfg)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	translator, err := newTranslator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	history, closeHistory, err := newHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	dispatcher := dispatch.NewDispatcher(dispatch.Config{}, logger,
		dispatch.WithTranslator(translator),
		dispatch.WithHistory(history),
		dispatch.WithEnabled(cfg.TranslationEnabled))

	// Initialize WebSocket hub as the display
	hub := websocket.NewHub(dispatcher, logger)
	dispatcher.SetDisplay(hub)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	bridge := usecase.NewBridge(ipcConfig(cfg), ipc.NewPipeDialer(cfg.PipeName),
		store.NewMessageStore(store.DefaultCapacity), dispatcher, logger)
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}
	defer bridge.Stop()

	broadcaster := websocket.NewStatusBroadcaster(hub, statusFunc(bridge), cfg.StatusInterval, logger)
	broadcaster.Start()
	defer broadcaster.Stop()

	var tokens *auth.TokenIssuer
	if cfg.AuthEnabled() {
		tokens, err = auth.NewTokenIssuer(cfg.AuthSecret, 0)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("AUTH_SECRET not set, API and overlay websocket are unauthenticated")
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(api.Metrics)

	api.InitRoutes(e, api.Dependencies{
		Bridge:  bridge,
		Hub:     hub,
		History: history,
		Tokens:  tokens,
		Logger:  logger,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	logger.Info("Bridge service started",
		zap.String("port", cfg.Port),
		zap.String("pipe", ipc.EndpointAddress(cfg.PipeName)),
		zap.String("translator", cfg.Translator),
		zap.String("history", cfg.HistoryBackend))

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
		return err
	}

	logger.Info("Bridge is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Bridge exited", zap.Any("stats", bridge.Stats()))
	return nil
}

func ipcConfig(cfg *config.Config) ipc.Config {
	return ipc.Config{
		ConnectWait: cfg.ConnectWait,
		Backoff: ipc.BackoffPolicy{
			FastRetry:         cfg.FastRetry,
			MaxDelay:          cfg.MaxBackoff,
			FailFastThreshold: cfg.FailFastThreshold,
			MaxFailures:       cfg.MaxFailures,
		},
	}
}

func newTranslator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.Translator, error) {
	switch cfg.Translator {
	case config.TranslatorMock:
		logger.Info("Using mock translator")
		return llm.NewMockTranslator(), nil
	case config.TranslatorGemini:
		translator, err := llm.NewGeminiTranslator(ctx, llm.GeminiConfig{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			TargetLanguage: cfg.TargetLanguage,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini translator: %w", err)
		}
		return translator, nil
	default:
		return nil, fmt.Errorf("unknown translator %q", cfg.Translator)
	}
}

// newHistory opens the configured history backend and returns its closer
func newHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.HistoryRepository, func(), error) {
	switch cfg.HistoryBackend {
	case config.HistoryMemory:
		return adapters.NewMemoryHistoryRepository(cfg.HistoryCapacity), func() {}, nil

	case config.HistorySQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite history: %w", err)
		}
		logger.Info("Using sqlite history", zap.String("path", cfg.SQLitePath))
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Error("Failed to close sqlite history", zap.Error(err))
			}
		}, nil

	case config.HistoryMongo:
		client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := mongo.NewHistoryRepository(client.Database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to ensure history indexes", zap.Error(err))
		}
		return repo, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Close(closeCtx)
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}

func statusFunc(bridge *usecase.Bridge) websocket.StatusFunc {
	return func() websocket.Status {
		stats := bridge.Stats()
		return websocket.Status{
			Connected:          stats.Connection.Connected,
			Health:             string(stats.Connection.Health),
			TranslationEnabled: stats.Dispatcher.Enabled,
			Stored:             stats.Stored,
		}
	}
}
