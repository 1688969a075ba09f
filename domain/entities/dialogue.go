package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DialogueEntry is one translated line kept in dialogue history
type DialogueEntry struct {
	ID         string    `json:"id" bson:"_id" db:"id"`
	Original   string    `json:"original" bson:"original" db:"original"`
	Translated string    `json:"translated" bson:"translated" db:"translated"`
	Speaker    string    `json:"speaker" bson:"speaker" db:"speaker"`
	ChatCode   int       `json:"chat_code" bson:"chat_code" db:"chat_code"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// NewDialogueEntry creates a history entry stamped with a fresh ID
func NewDialogueEntry(original, translated, speaker string, chatCode int) *DialogueEntry {
	return &DialogueEntry{
		ID:         uuid.New().String(),
		Original:   original,
		Translated: translated,
		Speaker:    speaker,
		ChatCode:   chatCode,
		CreatedAt:  time.Now(),
	}
}

// Validate validates the entry before it is stored
func (d *DialogueEntry) Validate() error {
	if d.ID == "" {
		return errors.New("id is required")
	}
	if d.Original == "" {
		return errors.New("original text is required")
	}
	return nil
}
