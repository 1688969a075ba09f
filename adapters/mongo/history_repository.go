package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/entities"
	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/repositories"
)

const maxRecentLimit = 500

type HistoryRepository struct {
	collection *mongo.Collection
}

// NewHistoryRepository creates a MongoDB-backed dialogue history
func NewHistoryRepository(db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{
		collection: db.Collection("dialogues"),
	}
}

var _ repositories.HistoryRepository = (*HistoryRepository)(nil)

// EnsureIndexes creates the created_at index used by Recent
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}
	return nil
}

// Record implements repositories.HistorySink
func (r *HistoryRepository) Record(ctx context.Context, entry *entities.DialogueEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	doc := bson.M{
		"_id":        entry.ID,
		"original":   entry.Original,
		"translated": entry.Translated,
		"speaker":    entry.Speaker,
		"chat_code":  entry.ChatCode,
		"created_at": entry.CreatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to record dialogue: %w", err)
	}
	return nil
}

// Recent implements repositories.HistoryRepository, newest first
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]*entities.DialogueEntry, error) {
	if limit <= 0 || limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query dialogue history: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*entities.DialogueEntry, 0, limit)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode dialogue history: %w", err)
	}
	return entries, nil
}

// GetByID implements repositories.HistoryRepository
func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*entities.DialogueEntry, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty")
	}

	var entry entities.DialogueEntry
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dialogue %s: %w", id, err)
	}
	return &entry, nil
}
