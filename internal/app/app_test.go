package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ragchat/internal/rag"
	"ragchat/internal/store"
	"ragchat/pkg/domain"
)

type fakeEngine struct {
	result rag.Result
	err    error
	calls  int
}

func (f *fakeEngine) Query(_ context.Context, _ string) (rag.Result, error) {
	f.calls++
	if f.err != nil {
		return rag.Result{}, f.err
	}
	return f.result, nil
}

func newTestApp(t *testing.T, engine rag.AnswerEngine) (*App, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	if engine == nil {
		engine = &fakeEngine{result: rag.Result{Answer: "ok"}}
	}
	a, err := New(Config{
		Store:      mem,
		Engine:     engine,
		JWTSecret:  "test-secret",
		SessionTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem
}

func signUpUser(t *testing.T, a *App, email string) domain.User {
	t.Helper()
	user, token, err := a.SignUp(email, "pa55word")
	if err != nil {
		t.Fatalf("sign up %s: %v", email, err)
	}
	if token == "" {
		t.Fatalf("expected session token for %s", email)
	}
	return user
}

func TestHandleQueryCreatesConversationAndTranscript(t *testing.T) {
	engine := &fakeEngine{result: rag.Result{Answer: "Paris"}}
	a, _ := newTestApp(t, engine)
	user := signUpUser(t, a, "u@example.com")

	const query = "What is the capital of France?"
	ans, err := a.HandleQuery(context.Background(), user.ID, nil, query)
	if err != nil {
		t.Fatalf("handle query: %v", err)
	}
	if ans.Answer != "Paris" {
		t.Fatalf("answer = %q", ans.Answer)
	}
	if ans.Sources == nil || len(ans.Sources) != 0 {
		t.Fatalf("sources must default to empty list, got %v", ans.Sources)
	}
	if ans.ConversationID == 0 {
		t.Fatalf("expected conversation id")
	}

	sessions, err := a.ListSessions(user.ID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(sessions))
	}
	// 30 characters, no truncation.
	if sessions[0].Title != query {
		t.Fatalf("title = %q, want %q", sessions[0].Title, query)
	}

	msgs, err := a.GetSessionMessages(user.ID, ans.ConversationID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected user+bot turns, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != query {
		t.Fatalf("first turn = %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleBot || msgs[1].Content != "Paris" {
		t.Fatalf("second turn = %+v", msgs[1])
	}
}

func TestAutoTitleTruncation(t *testing.T) {
	a, _ := newTestApp(t, nil)
	user := signUpUser(t, a, "u@example.com")

	long := strings.Repeat("x", 45)
	ans, err := a.HandleQuery(context.Background(), user.ID, nil, long)
	if err != nil {
		t.Fatalf("handle query: %v", err)
	}
	sessions, _ := a.ListSessions(user.ID)
	want := strings.Repeat("x", 30) + "..."
	if sessions[0].Title != want {
		t.Fatalf("title = %q, want %q", sessions[0].Title, want)
	}

	// Exactly 30 characters stays verbatim.
	exact := strings.Repeat("y", 30)
	if _, err := a.HandleQuery(context.Background(), user.ID, nil, exact); err != nil {
		t.Fatalf("handle query: %v", err)
	}
	sessions, _ = a.ListSessions(user.ID)
	var found bool
	for _, s := range sessions {
		if s.ID != ans.ConversationID && s.Title == exact {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected verbatim 30-char title, sessions: %+v", sessions)
	}
}

func TestAutoTitleAppliesAtMostOnce(t *testing.T) {
	a, _ := newTestApp(t, nil)
	user := signUpUser(t, a, "u@example.com")

	conv, err := a.CreateSession(user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if conv.Title != domain.DefaultConversationTitle {
		t.Fatalf("new session title = %q", conv.Title)
	}

	if _, err := a.HandleQuery(context.Background(), user.ID, &conv.ID, "first question"); err != nil {
		t.Fatalf("first query: %v", err)
	}
	if _, err := a.HandleQuery(context.Background(), user.ID, &conv.ID, "second question"); err != nil {
		t.Fatalf("second query: %v", err)
	}

	sessions, _ := a.ListSessions(user.ID)
	if sessions[0].Title != "first question" {
		t.Fatalf("title = %q, want %q", sessions[0].Title, "first question")
	}
}

func TestTranscriptKeepsUserBeforeBot(t *testing.T) {
	a, _ := newTestApp(t, nil)
	user := signUpUser(t, a, "u@example.com")

	conv, _ := a.CreateSession(user.ID)
	for i := 0; i < 3; i++ {
		if _, err := a.HandleQuery(context.Background(), user.ID, &conv.ID, "q"); err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
	}
	msgs, err := a.GetSessionMessages(user.ID, conv.ID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 6 {
		t.Fatalf("expected 6 turns, got %d", len(msgs))
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != domain.RoleUser || msgs[i+1].Role != domain.RoleBot {
			t.Fatalf("pair %d out of order: %s, %s", i/2, msgs[i].Role, msgs[i+1].Role)
		}
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("transcript time order violated at %d", i)
		}
	}
}

func TestForeignConversationIsNotFound(t *testing.T) {
	a, _ := newTestApp(t, nil)
	alice := signUpUser(t, a, "alice@example.com")
	bob := signUpUser(t, a, "bob@example.com")

	conv, _ := a.CreateSession(alice.ID)

	if _, err := a.HandleQuery(context.Background(), bob.ID, &conv.ID, "q"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("handle query: expected ErrConversationNotFound, got %v", err)
	}
	if _, err := a.GetSessionMessages(bob.ID, conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("get messages: expected ErrConversationNotFound, got %v", err)
	}
	if _, err := a.GetSessionMessages(alice.ID, conv.ID); err != nil {
		t.Fatalf("owner read should pass: %v", err)
	}
}

func TestEngineFailureKeepsUserMessage(t *testing.T) {
	engine := &fakeEngine{err: errors.New("model exploded")}
	a, _ := newTestApp(t, engine)
	user := signUpUser(t, a, "u@example.com")

	conv, _ := a.CreateSession(user.ID)
	_, err := a.HandleQuery(context.Background(), user.ID, &conv.ID, "doomed question")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !strings.Contains(err.Error(), "model exploded") {
		t.Fatalf("cause missing from error: %v", err)
	}

	msgs, _ := a.GetSessionMessages(user.ID, conv.ID)
	if len(msgs) != 1 {
		t.Fatalf("expected the user turn to survive alone, got %d turns", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != "doomed question" {
		t.Fatalf("surviving turn = %+v", msgs[0])
	}
}

func TestListSessionsNewestFirstWithoutMessages(t *testing.T) {
	a, mem := newTestApp(t, nil)
	user := signUpUser(t, a, "u@example.com")

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if _, err := mem.CreateConversation(domain.Conversation{
			OwnerID:   user.ID,
			Title:     domain.DefaultConversationTitle,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("seed conversation: %v", err)
		}
	}
	sessions, err := a.ListSessions(user.ID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i].CreatedAt.After(sessions[i-1].CreatedAt) {
			t.Fatalf("not newest-first at %d", i)
		}
	}
	for _, s := range sessions {
		if len(s.Messages) != 0 {
			t.Fatalf("messages must be elided in listing")
		}
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	a, _ := newTestApp(t, nil)
	user := signUpUser(t, a, "u@example.com")

	ans, err := a.HandleQuery(context.Background(), user.ID, nil, "hello")
	if err != nil {
		t.Fatalf("handle query: %v", err)
	}
	if err := a.DeleteAccount(user.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if _, ok := a.UserFromToken(""); ok {
		t.Fatalf("empty token must not resolve")
	}
	if _, err := a.GetSessionMessages(user.ID, ans.ConversationID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("conversation should be gone, got %v", err)
	}
	sessions, _ := a.ListSessions(user.ID)
	if len(sessions) != 0 {
		t.Fatalf("expected no conversations after delete, got %d", len(sessions))
	}
}

func TestSignUpLoginAndTokenResolution(t *testing.T) {
	a, _ := newTestApp(t, nil)

	user, token, err := a.SignUp("U@Example.com", "pa55word")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Email != "u@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if got, ok := a.UserFromToken(token); !ok || got.ID != user.ID {
		t.Fatalf("token should resolve to the new user")
	}

	if _, _, err := a.SignUp("u@example.com", "other"); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	if _, _, err := a.Login("u@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, loginToken, err := a.Login("u@example.com", "pa55word"); err != nil || loginToken == "" {
		t.Fatalf("login: token=%q err=%v", loginToken, err)
	}
}
