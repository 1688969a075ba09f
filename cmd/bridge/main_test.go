package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/iarcanar99/MBB-Dalamud-sub001/adapters/llm"
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/entities"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/auth"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/config"
)

func TestTokenCmd(t *testing.T) {
	t.Setenv("AUTH_SECRET", "cmd-secret")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "panel", "--role", "control"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("token command failed: %v", err)
	}

	issuer, _ := auth.NewTokenIssuer("cmd-secret", 0)
	claims, err := issuer.ValidateToken(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.ClientID != "panel" || !claims.CanControl() {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestTokenCmd_Errors(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "panel"})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected error without AUTH_SECRET")
	}

	t.Setenv("AUTH_SECRET", "cmd-secret")
	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "panel", "--role", "admin"})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected error for unknown role")
	}
}

func TestNewTranslator(t *testing.T) {
	logger := zaptest.NewLogger(t)

	translator, err := newTranslator(context.Background(), &config.Config{Translator: config.TranslatorMock}, logger)
	if err != nil {
		t.Fatalf("newTranslator failed: %v", err)
	}
	if _, ok := translator.(*llm.MockTranslator); !ok {
		t.Errorf("Expected mock translator, got %T", translator)
	}

	if _, err := newTranslator(context.Background(), &config.Config{Translator: config.TranslatorGemini}, logger); err == nil {
		t.Error("Expected error for gemini without API key")
	}
	if _, err := newTranslator(context.Background(), &config.Config{Translator: "deepl"}, logger); err == nil {
		t.Error("Expected error for unknown translator")
	}
}

func TestNewHistory(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	for _, backend := range []string{config.HistoryMemory, config.HistorySQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := &config.Config{
				HistoryBackend:  backend,
				HistoryCapacity: 10,
				SQLitePath:      filepath.Join(t.TempDir(), "history.db"),
			}
			history, closeHistory, err := newHistory(ctx, cfg, logger)
			if err != nil {
				t.Fatalf("newHistory failed: %v", err)
			}
			defer closeHistory()

			entry := entities.NewDialogueEntry("Hello", "สวัสดี", "", 61)
			if err := history.Record(ctx, entry); err != nil {
				t.Fatalf("Record failed: %v", err)
			}
			if _, err := history.GetByID(ctx, entry.ID); err != nil {
				t.Errorf("GetByID failed: %v", err)
			}
		})
	}

	if _, _, err := newHistory(ctx, &config.Config{HistoryBackend: "redis"}, logger); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestIPCConfig(t *testing.T) {
	cfg := &config.Config{FailFastThreshold: 3, MaxFailures: 9}
	ipcCfg := ipcConfig(cfg)
	if ipcCfg.Backoff.FailFastThreshold != 3 || ipcCfg.Backoff.MaxFailures != 9 {
		t.Errorf("Unexpected backoff policy: %+v", ipcCfg.Backoff)
	}
}
