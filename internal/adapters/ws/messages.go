package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"inputbid-service/internal/domain/shared"
	"inputbid-service/internal/ports/outbound"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypePing MessageType = "ping"
	MessageTypeSync MessageType = "sync"

	// Server to Client message types
	MessageTypeConnected MessageType = "connected"
	MessageTypeEvent     MessageType = "event"
	MessageTypeSnapshot  MessageType = "snapshot"
	MessageTypeError     MessageType = "error"
	MessageTypePong      MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType `json:"type"`
	RequestID *uuid.UUID  `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	RequestID *uuid.UUID             `json:"request_id,omitempty"`
	Event     *outbound.Event        `json:"event,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

// NewEventMessage wraps a broadcast event for delivery to a session
func NewEventMessage(event outbound.Event) *ServerMessage {
	requestID := event.RequestID
	return &ServerMessage{
		Type:      MessageTypeEvent,
		RequestID: &requestID,
		Event:     &event,
		Timestamp: event.Timestamp,
	}
}

func NewErrorMessage(err error, requestID *uuid.UUID) *ServerMessage {
	text := err.Error()
	return &ServerMessage{
		Type:      MessageTypeError,
		RequestID: requestID,
		Error:     &text,
		ErrorKind: shared.KindName(err),
		Timestamp: time.Now().Unix(),
	}
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse client message: %v", shared.ErrValidation, err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypePing:
	case MessageTypeSync:
		if m.RequestID == nil || *m.RequestID == uuid.Nil {
			return shared.ErrRequestIDRequired
		}
	default:
		return shared.ErrUnknownMessageType
	}
	return nil
}
