package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeTranslation    MessageType = "translation"
	MessageTypeStatus         MessageType = "status"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeError          MessageType = "error"
	MessageTypeAck            MessageType = "ack"
	MessageTypeSetTranslation MessageType = "set_translation"
	MessageTypeRetrigger      MessageType = "retrigger"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// TranslationMessage carries one translated line to overlay clients
type TranslationMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// StatusMessage is broadcast periodically with the bridge state
type StatusMessage struct {
	BaseMessage
	Connected          bool   `json:"connected"`
	Health             string `json:"health"`
	TranslationEnabled bool   `json:"translation_enabled"`
	Stored             int    `json:"stored"`
	Clients            int    `json:"clients"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// SetTranslationMessage pauses or resumes translation
type SetTranslationMessage struct {
	BaseMessage
	Enabled *bool `json:"enabled"`
}

// RetriggerMessage asks for the last message to be translated again
type RetriggerMessage struct {
	BaseMessage
}

// AckMessage answers a control message
type AckMessage struct {
	BaseMessage
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypeSetTranslation:
		var msg SetTranslationMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid set_translation message: %w", err)
		}
		if msg.Enabled == nil {
			return nil, fmt.Errorf("enabled is required")
		}
		return &msg, nil

	case MessageTypeRetrigger:
		var msg RetriggerMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid retrigger message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateTranslationMessage creates a translation push
func CreateTranslationMessage(text string) *TranslationMessage {
	return &TranslationMessage{BaseMessage: newBase(MessageTypeTranslation), Text: text}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{BaseMessage: newBase(MessageTypePong), Data: data}
}

// CreateAckMessage creates a control acknowledgement
func CreateAckMessage(action string, ok bool, detail string) *AckMessage {
	return &AckMessage{
		BaseMessage: newBase(MessageTypeAck),
		Action:      action,
		OK:          ok,
		Detail:      detail,
	}
}
