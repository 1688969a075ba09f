package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/entities"
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/repositories"
)

const (
	DefaultPath    = "./data/history.db"
	maxRecentLimit = 500
)

const schema = `
CREATE TABLE IF NOT EXISTS dialogues (
	id TEXT PRIMARY KEY,
	original TEXT NOT NULL,
	translated TEXT NOT NULL DEFAULT '',
	speaker TEXT NOT NULL DEFAULT '',
	chat_code INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dialogues_created_at ON dialogues(created_at);
`

// HistoryRepository stores dialogue history in a local SQLite file
type HistoryRepository struct {
	db *sql.DB
}

var _ repositories.HistoryRepository = (*HistoryRepository)(nil)

// Open opens the database at path and creates the schema.
// path may be ":memory:" for tests.
func Open(ctx context.Context, path string) (*HistoryRepository, error) {
	if path == "" {
		path = DefaultPath
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s on %s: %w", pragma, path, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &HistoryRepository{db: db}, nil
}

// Close closes the database connection
func (r *HistoryRepository) Close() error {
	return r.db.Close()
}

// Record implements repositories.HistorySink
func (r *HistoryRepository) Record(ctx context.Context, entry *entities.DialogueEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dialogues (id, original, translated, speaker, chat_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Original, entry.Translated, entry.Speaker, entry.ChatCode, entry.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record dialogue: %w", err)
	}
	return nil
}

// Recent implements repositories.HistoryRepository, newest first
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]*entities.DialogueEntry, error) {
	if limit <= 0 || limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, original, translated, speaker, chat_code, created_at
		FROM dialogues ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dialogue history: %w", err)
	}
	defer rows.Close()

	var entries []*entities.DialogueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetByID implements repositories.HistoryRepository
func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*entities.DialogueEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, original, translated, speaker, chat_code, created_at
		FROM dialogues WHERE id = ?
	`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*entities.DialogueEntry, error) {
	var entry entities.DialogueEntry
	var createdAt int64
	if err := s.Scan(&entry.ID, &entry.Original, &entry.Translated, &entry.Speaker, &entry.ChatCode, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan dialogue: %w", err)
	}
	entry.CreatedAt = time.Unix(0, createdAt)
	return &entry, nil
}
