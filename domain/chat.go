package domain

import "time"

// Role tags one turn in the model-facing conversation log.
type Role string

const (
	ContextRole Role = "context"
	UserRole    Role = "user"
	ModelRole   Role = "model"
)

// Turn is one exchange unit sent to or received from the language model.
// Turns are never mutated after they are appended to a history.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Sender identifies who produced a displayable message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

// MessageType is the semantic category of a message's content.
type MessageType string

const (
	MessageDialogue MessageType = "dialogue"
	MessageAction   MessageType = "action"
	MessageThought  MessageType = "thought"
	MessageSocial   MessageType = "social"
	MessageSystem   MessageType = "system"
	MessageError    MessageType = "error"
)

// ChatMessage is one UI-facing displayable unit. It is a superset of Turn:
// system, error and day-marker messages never reach the model.
type ChatMessage struct {
	ID        string      `json:"id"`
	Sender    Sender      `json:"sender"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// ChatExport is the interchange format for a saved session.
type ChatExport struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Character    CharacterProfile   `json:"character"`
	Scenario     ScenarioDefinition `json:"scenario"`
	Messages     []ChatMessage      `json:"messages"`
	Turns        []Turn             `json:"turns,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastModified time.Time          `json:"lastModified"`
}
