package api

import (
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain"
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/entities"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/dispatch"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/ipc"
)

// StatusResponse is the bridge status snapshot
type StatusResponse struct {
	Connected  bool           `json:"connected"`
	Connection ipc.Stats      `json:"connection"`
	Dispatcher dispatch.Stats `json:"dispatcher"`
	Stored     int            `json:"stored"`
	Clients    int            `json:"overlay_clients"`
}

// TranslationToggleRequest enables or disables translation
type TranslationToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// TranslationToggleResponse reports the translation state
type TranslationToggleResponse struct {
	Enabled bool `json:"enabled"`
}

// RetriggerResponse reports whether a message was re-submitted
type RetriggerResponse struct {
	Retriggered bool   `json:"retriggered"`
	Original    string `json:"original,omitempty"`
}

// MessagesResponse lists stored plugin messages, oldest first
type MessagesResponse struct {
	Messages []domain.IngestEvent `json:"messages"`
	Count    int                  `json:"count"`
}

// HistoryResponse lists translated dialogue, newest first
type HistoryResponse struct {
	Entries []*entities.DialogueEntry `json:"entries"`
	Count   int                       `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
