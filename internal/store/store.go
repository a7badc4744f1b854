package store

import "ragchat/pkg/domain"

// Store defines persistence operations for users, conversations, and messages.
// Create operations return the stored entity with its assigned id and
// creation timestamp. Each write is atomic on its own; multi-write sequences
// are composed (and left non-transactional) by the caller.
type Store interface {
	// users
	CreateUser(u domain.User) (domain.User, error)
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id int64) (domain.User, bool, error)
	// DeleteUser removes the user together with all owned conversations
	// and their messages, atomically.
	DeleteUser(id int64) error

	// conversations
	CreateConversation(c domain.Conversation) (domain.Conversation, error)
	// GetConversationByOwner folds ownership into existence: a conversation
	// owned by someone else is reported as absent.
	GetConversationByOwner(id, ownerID int64) (domain.Conversation, bool, error)
	ListConversationsByOwner(ownerID int64) ([]domain.Conversation, error)
	SetConversationTitle(id int64, title string) error

	// messages
	AppendMessage(m domain.Message) (domain.Message, error)
	// ListMessages returns the canonical transcript: ascending by creation
	// time, insertion order breaking ties.
	ListMessages(conversationID int64) ([]domain.Message, error)
}

// SessionStore issues and resolves session tokens.
type SessionStore interface {
	NewSession(userID int64) (string, error)
	UserIDByToken(token string) (int64, bool, error)
	DeleteSession(token string) error
}
