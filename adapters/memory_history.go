package adapters

import (
	"context"
	"errors"
	"sync"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/entities"
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/repositories"
)

const defaultMemoryHistorySize = 1000

// MemoryHistoryRepository keeps the most recent dialogue entries in memory
type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	entries []*entities.DialogueEntry // oldest first
	byID    map[string]*entities.DialogueEntry
	limit   int
}

// NewMemoryHistoryRepository creates an in-memory history holding at most limit entries
func NewMemoryHistoryRepository(limit int) *MemoryHistoryRepository {
	if limit <= 0 {
		limit = defaultMemoryHistorySize
	}
	return &MemoryHistoryRepository{
		entries: make([]*entities.DialogueEntry, 0, limit),
		byID:    make(map[string]*entities.DialogueEntry),
		limit:   limit,
	}
}

var _ repositories.HistoryRepository = (*MemoryHistoryRepository)(nil)

// Record implements repositories.HistorySink
func (m *MemoryHistoryRepository) Record(ctx context.Context, entry *entities.DialogueEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[entry.ID]; exists {
		return errors.New("entry with this id already exists")
	}

	stored := *entry
	if len(m.entries) == m.limit {
		delete(m.byID, m.entries[0].ID)
		m.entries[0] = nil
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, &stored)
	m.byID[stored.ID] = &stored
	return nil
}

// Recent implements repositories.HistoryRepository, newest first
func (m *MemoryHistoryRepository) Recent(ctx context.Context, limit int) ([]*entities.DialogueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}

	result := make([]*entities.DialogueEntry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		entryCopy := *m.entries[i]
		result = append(result, &entryCopy)
	}
	return result, nil
}

// GetByID implements repositories.HistoryRepository
func (m *MemoryHistoryRepository) GetByID(ctx context.Context, id string) (*entities.DialogueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.byID[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	entryCopy := *entry
	return &entryCopy, nil
}

// Len returns the number of stored entries
func (m *MemoryHistoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
