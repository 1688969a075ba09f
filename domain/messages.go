package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Event categories reported by the game plugin
const (
	CategoryDialogue = "dialogue"
	CategoryCutscene = "cutscene"
	CategoryChoice   = "choice"
	CategoryBattle   = "battle"
	CategorySystem   = "system"
	CategoryUnknown  = "unknown"
)

// PluginMessage is one JSON line written by the game plugin
type PluginMessage struct {
	Type      string    `json:"Type"`
	Speaker   string    `json:"Speaker"`
	Message   string    `json:"Message"`
	Timestamp Timestamp `json:"Timestamp"`
	ChatType  int       `json:"ChatType"`
}

// Timestamp accepts unix seconds as a JSON number or numeric string.
// Anything else decodes to zero instead of failing the whole line.
type Timestamp int64

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*t = 0
		return nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*t = Timestamp(v)
		return nil
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		*t = Timestamp(int64(v))
		return nil
	}
	*t = 0
	return nil
}

// IngestEvent is a decoded unit of game text
type IngestEvent struct {
	Category  string `json:"category"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	ChatCode  int    `json:"chat_code"`
	Timestamp int64  `json:"timestamp"`
}

// Valid reports whether the event carries any text worth keeping
func (e IngestEvent) Valid() bool {
	return strings.TrimSpace(e.Text) != ""
}

// ToEvent converts the wire message into an IngestEvent, applying defaults
func (m PluginMessage) ToEvent() IngestEvent {
	category := strings.ToLower(strings.TrimSpace(m.Type))
	if category == "" {
		category = CategoryUnknown
	}
	return IngestEvent{
		Category:  category,
		Speaker:   m.Speaker,
		Text:      m.Message,
		ChatCode:  m.ChatType,
		Timestamp: int64(m.Timestamp),
	}
}

// ParsePluginMessage decodes one JSON line into an IngestEvent
func ParsePluginMessage(line []byte) (IngestEvent, error) {
	var msg PluginMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return IngestEvent{}, err
	}
	return msg.ToEvent(), nil
}
