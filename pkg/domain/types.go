package domain

import "time"

// MessageRole identifies which side of a conversation produced a message.
type MessageRole string

const (
	RoleUser MessageRole = "user"
	RoleBot  MessageRole = "bot"
)

// Valid reports whether the role is one of the two allowed values.
func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleBot
}

// DefaultConversationTitle is the sentinel title a conversation carries
// until its first query rewrites it.
const DefaultConversationTitle = "New Chat"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Conversation struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"ownerId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	// Messages is populated only on read paths that ask for it.
	Messages []Message `json:"messages"`
}

type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversationId"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	Sources        []Source    `json:"sources,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Source is one opaque provenance record returned by the answer engine.
type Source map[string]any

// Answer is the result of a retrieval query bound to a conversation.
type Answer struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	ConversationID int64    `json:"conversationId"`
}
