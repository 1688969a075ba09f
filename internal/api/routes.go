package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/repositories"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/auth"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/websocket"
	"github.com/iarcanar99/MBB-Dalamud-sub001/usecase"
)

const defaultHistoryLimit = 50

// Dependencies are the collaborators the routes read from
type Dependencies struct {
	Bridge  *usecase.Bridge
	Hub     *websocket.Hub
	History repositories.HistoryRepository // optional
	Tokens  *auth.TokenIssuer              // nil disables authentication
	Logger  *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handlers{Dependencies: deps}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "mbb-dalamud-bridge",
			"connected": deps.Bridge.IsConnected(),
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/api/v1")
	read := RequireToken(deps.Tokens, false)
	control := RequireToken(deps.Tokens, true)

	v1.GET("/status", h.status, read)
	v1.GET("/dispatcher/stats", h.dispatcherStats, read)

	// Message store
	v1.GET("/messages/latest", h.latestMessage, read)
	v1.GET("/messages", h.messages, read)

	// Dialogue history
	v1.GET("/history", h.history, read)
	v1.GET("/history/:id", h.historyEntry, read)

	// Control
	v1.POST("/connection/reset", h.resetConnection, control)
	v1.GET("/translation", h.translationState, read)
	v1.POST("/translation", h.setTranslation, control)
	v1.POST("/translation/retrigger", h.retrigger, control)
	v1.DELETE("/translation/cache", h.clearCache, control)

	// WebSocket endpoint for overlays
	e.GET("/ws", h.websocketWithAuth)
}

type handlers struct {
	Dependencies
}

func (h *handlers) status(c echo.Context) error {
	stats := h.Bridge.Stats()
	return c.JSON(http.StatusOK, StatusResponse{
		Connected:  stats.Connection.Connected,
		Connection: stats.Connection,
		Dispatcher: stats.Dispatcher,
		Stored:     stats.Stored,
		Clients:    h.Hub.ClientCount(),
	})
}

func (h *handlers) dispatcherStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Bridge.Dispatcher().Stats())
}

// latestMessage returns the most recent message. With consume=true it is
// handed out only once.
func (h *handlers) latestMessage(c echo.Context) error {
	messages := h.Bridge.Store()

	consume, _ := strconv.ParseBool(c.QueryParam("consume"))
	event, ok := messages.PeekLatest()
	if consume {
		event, ok = messages.TakeLatest()
	}

	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "no_message",
			Message: "No new message",
		})
	}
	return c.JSON(http.StatusOK, event)
}

// messages drains the store unless peek=true
func (h *handlers) messages(c echo.Context) error {
	messages := h.Bridge.Store()

	peek, _ := strconv.ParseBool(c.QueryParam("peek"))
	events := messages.Recent()
	if !peek {
		events = messages.DrainAll()
	}

	return c.JSON(http.StatusOK, MessagesResponse{Messages: events, Count: len(events)})
}

func (h *handlers) history(c echo.Context) error {
	if h.History == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "history_disabled",
			Message: "No history backend configured",
		})
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = n
	}

	entries, err := h.History.Recent(c.Request().Context(), limit)
	if err != nil {
		h.Logger.Error("Failed to read dialogue history", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to read history",
		})
	}
	return c.JSON(http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}

func (h *handlers) historyEntry(c echo.Context) error {
	if h.History == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "history_disabled",
			Message: "No history backend configured",
		})
	}

	entry, err := h.History.GetByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repositories.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Dialogue entry not found",
		})
	}
	if err != nil {
		h.Logger.Error("Failed to read dialogue entry", zap.String("id", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to read history",
		})
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *handlers) resetConnection(c echo.Context) error {
	h.Bridge.Manager().Reset()
	h.Logger.Info("Connection state reset via API", zap.String("by", requester(c)))
	return c.JSON(http.StatusOK, h.Bridge.Manager().Stats())
}

func (h *handlers) translationState(c echo.Context) error {
	return c.JSON(http.StatusOK, TranslationToggleResponse{Enabled: h.Bridge.Dispatcher().Enabled()})
}

func (h *handlers) setTranslation(c echo.Context) error {
	var req TranslationToggleRequest
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Body must contain a boolean enabled field",
		})
	}

	h.Bridge.Dispatcher().SetEnabled(*req.Enabled)
	h.Logger.Info("Translation toggled via API",
		zap.Bool("enabled", *req.Enabled),
		zap.String("by", requester(c)))
	return c.JSON(http.StatusOK, TranslationToggleResponse{Enabled: *req.Enabled})
}

func (h *handlers) retrigger(c echo.Context) error {
	dispatcher := h.Bridge.Dispatcher()
	if !dispatcher.Retrigger() {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "nothing_to_retrigger",
			Message: "No message received yet",
		})
	}
	original, _ := dispatcher.LastOriginal()
	return c.JSON(http.StatusAccepted, RetriggerResponse{Retriggered: true, Original: original})
}

func (h *handlers) clearCache(c echo.Context) error {
	h.Bridge.Dispatcher().ClearCache()
	return c.NoContent(http.StatusNoContent)
}

// websocketWithAuth upgrades overlay connections, checking the token when
// authentication is enabled
func (h *handlers) websocketWithAuth(c echo.Context) error {
	if h.Tokens == nil {
		return websocket.HandleWebSocket(h.Hub, c, h.Logger)
	}

	token := tokenFromRequest(c)
	if token == "" {
		h.Logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := h.Tokens.ValidateToken(token)
	if err != nil {
		h.Logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	h.Logger.Info("WebSocket connection authenticated",
		zap.String("client_id", claims.ClientID),
		zap.String("role", claims.Role))

	return websocket.HandleWebSocketWithAuth(h.Hub, c, claims.ClientID, claims.CanControl(), h.Logger)
}
