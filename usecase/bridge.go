package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/dispatch"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/ipc"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/store"
)

// BridgeStats is a snapshot of the whole pipeline
type BridgeStats struct {
	Connection ipc.Stats      `json:"connection"`
	Dispatcher dispatch.Stats `json:"dispatcher"`
	Stored     int            `json:"stored"`
}

// Bridge wires the endpoint connection to the message store and the
// translation dispatcher
type Bridge struct {
	manager    *ipc.Manager
	store      *store.MessageStore
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

// NewBridge creates a new bridge. Every event that survives the chat filter
// is kept in the store and handed to the dispatcher.
func NewBridge(
	cfg ipc.Config,
	dialer ipc.Dialer,
	messages *store.MessageStore,
	dispatcher *dispatch.Dispatcher,
	logger *zap.Logger,
) *Bridge {
	b := &Bridge{
		store:      messages,
		dispatcher: dispatcher,
		logger:     logger,
	}
	b.manager = ipc.NewManager(cfg, dialer, b.handle, logger)
	return b
}

func (b *Bridge) handle(event domain.IngestEvent) {
	b.store.Push(event)
	b.dispatcher.Handle(event)
}

// Start starts the connection manager
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.manager.Start(ctx); err != nil {
		return err
	}
	b.logger.Info("Bridge started")
	return nil
}

// Stop stops the connection manager. Translation tasks already running are
// left to finish on their own.
func (b *Bridge) Stop() {
	b.manager.Stop()
	b.logger.Info("Bridge stopped")
}

// IsConnected reports whether the endpoint is currently connected
func (b *Bridge) IsConnected() bool {
	return b.manager.IsConnected()
}

// Stats returns a snapshot of connection, dispatcher and store state
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		Connection: b.manager.Stats(),
		Dispatcher: b.dispatcher.Stats(),
		Stored:     b.store.Len(),
	}
}

func (b *Bridge) Manager() *ipc.Manager {
	return b.manager
}

func (b *Bridge) Store() *store.MessageStore {
	return b.store
}

func (b *Bridge) Dispatcher() *dispatch.Dispatcher {
	return b.dispatcher
}
