package store

import (
	"sort"
	"sync"
	"time"

	"ragchat/pkg/domain"
)

// MemoryStore keeps all state in-process. It mirrors the ordering and
// cascade semantics of GormStore and is used by tests.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64

	users         map[int64]domain.User
	email         map[string]int64 // email -> user ID
	conversations map[int64]domain.Conversation
	messages      map[int64][]domain.Message // conversation ID -> transcript
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[int64]domain.User),
		email:         make(map[string]int64),
		conversations: make(map[int64]domain.Conversation),
		messages:      make(map[int64][]domain.Message),
	}
}

func (m *MemoryStore) allocID() int64 {
	m.nextID++
	return m.nextID
}

// CreateUser stores a user and assigns an id.
func (m *MemoryStore) CreateUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.allocID()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return u, nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// DeleteUser removes the user and cascades to conversations and messages.
func (m *MemoryStore) DeleteUser(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	for convID, conv := range m.conversations {
		if conv.OwnerID == id {
			delete(m.conversations, convID)
			delete(m.messages, convID)
		}
	}
	delete(m.email, u.Email)
	delete(m.users, id)
	return nil
}

// CreateConversation stores a conversation and assigns an id.
func (m *MemoryStore) CreateConversation(c domain.Conversation) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.allocID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Messages = nil
	m.conversations[c.ID] = c
	return c, nil
}

// GetConversationByOwner returns one conversation scoped to its owner.
func (m *MemoryStore) GetConversationByOwner(id, ownerID int64) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	if !ok || c.OwnerID != ownerID {
		return domain.Conversation{}, false, nil
	}
	return c, true, nil
}

// ListConversationsByOwner returns the owner's conversations newest-first.
func (m *MemoryStore) ListConversationsByOwner(ownerID int64) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Conversation, 0)
	for _, c := range m.conversations {
		if c.OwnerID == ownerID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

// SetConversationTitle updates the title of one conversation.
func (m *MemoryStore) SetConversationTitle(id int64, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil
	}
	c.Title = title
	m.conversations[id] = c
	return nil
}

// AppendMessage stores a message at the end of its transcript.
func (m *MemoryStore) AppendMessage(msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.allocID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return msg, nil
}

// ListMessages returns the transcript in chronological order.
func (m *MemoryStore) ListMessages(conversationID int64) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.messages[conversationID]
	res := make([]domain.Message, len(src))
	copy(res, src)
	sort.SliceStable(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}
