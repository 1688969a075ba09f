package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the bridge state pushed to overlays
type Status struct {
	Connected          bool
	Health             string
	TranslationEnabled bool
	Stored             int
}

// StatusFunc reads the current bridge state
type StatusFunc func() Status

// StatusBroadcaster periodically pushes the bridge status to every overlay
type StatusBroadcaster struct {
	hub      *Hub
	status   StatusFunc
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	last     Status
	sentOnce bool
}

// NewStatusBroadcaster creates a new status broadcaster
func NewStatusBroadcaster(hub *Hub, status StatusFunc, interval time.Duration, logger *zap.Logger) *StatusBroadcaster {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StatusBroadcaster{
		hub:      hub,
		status:   status,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background broadcast loop
func (s *StatusBroadcaster) Start() {
	go s.loop()
	s.logger.Info("Status broadcaster started", zap.Duration("interval", s.interval))
}

// Stop stops the broadcast loop
func (s *StatusBroadcaster) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.logger.Info("Status broadcaster stopped")
	})
}

func (s *StatusBroadcaster) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.broadcast(false)
		}
	}
}

// broadcast sends the status when it changed, or always when force is set.
// It returns whether a message was sent.
func (s *StatusBroadcaster) broadcast(force bool) bool {
	if s.hub.ClientCount() == 0 {
		return false
	}

	current := s.status()
	if !force && s.sentOnce && current == s.last {
		return false
	}

	payload, err := json.Marshal(&StatusMessage{
		BaseMessage:        newBase(MessageTypeStatus),
		Connected:          current.Connected,
		Health:             current.Health,
		TranslationEnabled: current.TranslationEnabled,
		Stored:             current.Stored,
		Clients:            s.hub.ClientCount(),
	})
	if err != nil {
		s.logger.Error("Failed to encode status", zap.Error(err))
		return false
	}

	s.hub.Broadcast(payload)
	s.last = current
	s.sentOnce = true
	return true
}
