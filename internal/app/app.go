package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ragchat/internal/rag"
	"ragchat/internal/store"
	"ragchat/pkg/auth"
	"ragchat/pkg/domain"
)

const titleMaxRunes = 30

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RAGServiceURL string
	RAGTimeout    time.Duration
	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration
	JWTSecret     string

	// Injected implementations take precedence over the URL/addr wiring.
	Store    store.Store
	Sessions store.SessionStore
	Engine   rag.AnswerEngine
}

// App is the core application service wiring storage, sessions, and the
// answer engine together.
type App struct {
	store    store.Store
	sessions store.SessionStore
	engine   rag.AnswerEngine
}

// New constructs the application. The store is created at process start
// and injected everywhere; there are no package-level singletons.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		switch {
		case cfg.JWTSecret != "":
			var err error
			sessionStore, err = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, store.JWTOptions{})
			if err != nil {
				return nil, fmt.Errorf("init jwt session store: %w", err)
			}
		case cfg.RedisAddr != "":
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		default:
			return nil, fmt.Errorf("session store required (jwtSecret or redisAddr)")
		}
	}

	engine := cfg.Engine
	if engine == nil {
		if cfg.RAGServiceURL == "" {
			return nil, fmt.Errorf("answer engine URL required")
		}
		engine = rag.NewClient(cfg.RAGServiceURL, cfg.RAGTimeout)
	}

	return &App{
		store:    dataStore,
		sessions: sessionStore,
		engine:   engine,
	}, nil
}

// SignUp registers a new user and issues a session token.
func (a *App) SignUp(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user, err := a.store.CreateUser(domain.User{
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.UserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// Logout removes a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// DeleteAccount removes the user and every conversation and message it owns.
func (a *App) DeleteAccount(userID int64) error {
	if err := a.store.DeleteUser(userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// HandleQuery runs the retrieval pipeline: resolve the target
// conversation, record the user turn, ask the answer engine, record the
// bot turn. The user message commits before the engine call and is kept
// on engine failure; a crash mid-call leaves a user turn with no paired
// answer, which is accepted rather than spanning a transaction over a
// slow network call.
func (a *App) HandleQuery(ctx context.Context, ownerID int64, conversationID *int64, query string) (domain.Answer, error) {
	conv, err := a.resolveConversation(ownerID, conversationID, query)
	if err != nil {
		return domain.Answer{}, err
	}
	if _, err := a.appendMessage(conv.ID, domain.RoleUser, query, nil); err != nil {
		return domain.Answer{}, fmt.Errorf("save user message: %w", err)
	}
	result, err := a.engine.Query(ctx, query)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if _, err := a.appendMessage(conv.ID, domain.RoleBot, result.Answer, result.Sources); err != nil {
		return domain.Answer{}, fmt.Errorf("save answer message: %w", err)
	}
	sources := result.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return domain.Answer{
		Answer:         result.Answer,
		Sources:        sources,
		ConversationID: conv.ID,
	}, nil
}

// resolveConversation returns the target conversation for a query,
// creating one when no id is given. The auto-title policy applies while
// the title is still the default sentinel and never again after.
func (a *App) resolveConversation(ownerID int64, conversationID *int64, query string) (domain.Conversation, error) {
	if conversationID != nil {
		conv, ok, err := a.store.GetConversationByOwner(*conversationID, ownerID)
		if err != nil {
			return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
		}
		if !ok {
			return domain.Conversation{}, ErrConversationNotFound
		}
		if conv.Title == domain.DefaultConversationTitle {
			title := autoTitle(query)
			if err := a.store.SetConversationTitle(conv.ID, title); err != nil {
				return domain.Conversation{}, fmt.Errorf("retitle conversation: %w", err)
			}
			conv.Title = title
		}
		return conv, nil
	}

	conv, err := a.store.CreateConversation(domain.Conversation{
		OwnerID: ownerID,
		Title:   autoTitle(query),
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// autoTitle derives a conversation title from its first query: the first
// 30 characters plus "..." when longer, the query verbatim otherwise.
func autoTitle(query string) string {
	runes := []rune(query)
	if len(runes) > titleMaxRunes {
		return string(runes[:titleMaxRunes]) + "..."
	}
	return query
}

func (a *App) appendMessage(conversationID int64, role domain.MessageRole, content string, sources []domain.Source) (domain.Message, error) {
	if !role.Valid() {
		return domain.Message{}, ErrInvalidRole
	}
	return a.store.AppendMessage(domain.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Sources:        sources,
	})
}

// ListSessions returns the user's conversations newest-first, messages elided.
func (a *App) ListSessions(ownerID int64) ([]domain.Conversation, error) {
	items, err := a.store.ListConversationsByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

// CreateSession creates an empty conversation with the default title.
func (a *App) CreateSession(ownerID int64) (domain.Conversation, error) {
	conv, err := a.store.CreateConversation(domain.Conversation{
		OwnerID: ownerID,
		Title:   domain.DefaultConversationTitle,
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetSessionMessages returns the transcript of an owned conversation.
func (a *App) GetSessionMessages(ownerID, conversationID int64) ([]domain.Message, error) {
	_, ok, err := a.store.GetConversationByOwner(conversationID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return nil, ErrConversationNotFound
	}
	msgs, err := a.store.ListMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}
