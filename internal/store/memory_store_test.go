package store

import (
	"testing"
	"time"

	"ragchat/pkg/domain"
)

func TestMemoryStoreConversationOwnership(t *testing.T) {
	s := NewMemoryStore()
	alice, err := s.CreateUser(domain.User{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := s.CreateUser(domain.User{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	conv, err := s.CreateConversation(domain.Conversation{OwnerID: alice.ID, Title: domain.DefaultConversationTitle})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	if _, ok, _ := s.GetConversationByOwner(conv.ID, alice.ID); !ok {
		t.Fatalf("owner should see own conversation")
	}
	if _, ok, _ := s.GetConversationByOwner(conv.ID, bob.ID); ok {
		t.Fatalf("foreign conversation must be reported as absent")
	}
}

func TestMemoryStoreListConversationsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	owner, _ := s.CreateUser(domain.User{Email: "o@example.com"})
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if _, err := s.CreateConversation(domain.Conversation{
			OwnerID:   owner.ID,
			Title:     domain.DefaultConversationTitle,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("create conversation %d: %v", i, err)
		}
	}
	items, err := s.ListConversationsByOwner(owner.ID)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt.After(items[i-1].CreatedAt) {
			t.Fatalf("conversations not newest-first at index %d", i)
		}
	}
}

func TestMemoryStoreTranscriptOrder(t *testing.T) {
	s := NewMemoryStore()
	owner, _ := s.CreateUser(domain.User{Email: "o@example.com"})
	conv, _ := s.CreateConversation(domain.Conversation{OwnerID: owner.ID, Title: "t"})

	// Equal timestamps must keep insertion order.
	at := time.Now().UTC()
	for _, content := range []string{"first", "second", "third"} {
		if _, err := s.AppendMessage(domain.Message{
			ConversationID: conv.ID,
			Role:           domain.RoleUser,
			Content:        content,
			CreatedAt:      at,
		}); err != nil {
			t.Fatalf("append %q: %v", content, err)
		}
	}
	msgs, err := s.ListMessages(conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if msgs[i].Content != w {
			t.Fatalf("transcript[%d] = %q, want %q", i, msgs[i].Content, w)
		}
	}
}

func TestMemoryStoreDeleteUserCascades(t *testing.T) {
	s := NewMemoryStore()
	owner, _ := s.CreateUser(domain.User{Email: "o@example.com"})
	conv, _ := s.CreateConversation(domain.Conversation{OwnerID: owner.ID, Title: "t"})
	if _, err := s.AppendMessage(domain.Message{ConversationID: conv.ID, Role: domain.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("append message: %v", err)
	}

	if err := s.DeleteUser(owner.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, ok, _ := s.GetUserByID(owner.ID); ok {
		t.Fatalf("user should be gone")
	}
	if _, ok, _ := s.GetConversationByOwner(conv.ID, owner.ID); ok {
		t.Fatalf("conversation should be gone")
	}
	msgs, _ := s.ListMessages(conv.ID)
	if len(msgs) != 0 {
		t.Fatalf("messages should be gone, got %d", len(msgs))
	}
	if ok, _ := s.HasUserEmail("o@example.com"); ok {
		t.Fatalf("email index should be gone")
	}
}
