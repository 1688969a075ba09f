package repositories

import (
	"context"
	"errors"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/entities"
)

// ErrNotFound is returned when a history lookup has no result
var ErrNotFound = errors.New("not found")

// HistorySink records translated dialogue, best effort
type HistorySink interface {
	Record(ctx context.Context, entry *entities.DialogueEntry) error
}

// HistoryRepository is a HistorySink that can also be queried
type HistoryRepository interface {
	HistorySink
	Recent(ctx context.Context, limit int) ([]*entities.DialogueEntry, error)
	GetByID(ctx context.Context, id string) (*entities.DialogueEntry, error)
}
