package domain

import (
	"context"
	"time"
)

// MessageBroker defines the interface for message broker operations
type MessageBroker interface {
	// Publish sends a message to a specific topic/channel with a routing key
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens for messages on a specific topic/channel and routing key
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan Message, error)

	// Close closes the message broker connection
	Close() error
}

// Message represents a message received from the broker
type Message struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

// ChatEventKind distinguishes the push events a session emits.
type ChatEventKind string

const (
	EventMessage   ChatEventKind = "message"
	EventTyping    ChatEventKind = "typing"
	EventPhoneMode ChatEventKind = "phone_mode"
)

// ChatEvent is published to the broker whenever a session appends a message
// or flips a sub-state; the websocket layer pushes it to the browser.
type ChatEvent struct {
	SessionID string             `json:"session_id"`
	Kind      ChatEventKind      `json:"kind"`
	Message   *ChatMessage       `json:"message,omitempty"`
	Render    *RenderDescription `json:"render,omitempty"`
	Typing    bool               `json:"typing,omitempty"`
	PhoneMode bool               `json:"phone_mode,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}
