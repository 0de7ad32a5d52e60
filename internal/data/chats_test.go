package data

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCreateIsIdempotent(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	first := s.mustCreate(t, "BK-100", CategoryTechnical)
	s.mustAppend(t, first.ID, RoleCustomer, "engine noise")
	writes := s.backend.Writes()

	second, err := s.chats.Create(ctx, " BK-100 ", "Other vessel", "Someone else", CategoryTechnical)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same chat id, got %s and %s", first.ID, second.ID)
	}
	if second.Subject != "MV Aurora" || second.CustomerName != "Ana" {
		t.Fatalf("existing chat must be returned unchanged, got %+v", second)
	}
	if len(second.Messages) != 1 {
		t.Fatalf("expected existing message to be kept, got %d", len(second.Messages))
	}
	if s.backend.Writes() != writes {
		t.Fatal("idempotent create must not write")
	}
	if n := len(s.chats.List(ctx, CategoryAll, RoleAdmin)); n != 1 {
		t.Fatalf("expected 1 chat, got %d", n)
	}
}

func TestCreateOneChatPerCategory(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	tech := s.mustCreate(t, "BK-7", CategoryTechnical)
	fin := s.mustCreate(t, "BK-7", CategoryFinancial)
	if tech.ID == fin.ID {
		t.Fatal("chats in different categories must be distinct")
	}

	if got := s.chats.List(ctx, CategoryFinancial, RoleFinancial); len(got) != 1 || got[0].ID != fin.ID {
		t.Fatalf("category filter returned %+v", got)
	}
	if got := s.chats.List(ctx, CategoryAll, RoleAdmin); len(got) != 2 || got[0].ID != tech.ID {
		t.Fatalf("expected both chats in insertion order, got %+v", got)
	}
}

func TestCreateDefaults(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	chat, err := s.chats.Create(ctx, "", "  MV Aurora ", "  ", CategoryBooking)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(chat.ConversationKey, "GUEST-") || len(chat.ConversationKey) != len("GUEST-")+8 {
		t.Fatalf("expected synthesized guest key, got %q", chat.ConversationKey)
	}
	if chat.Status != StatusActive {
		t.Fatalf("expected ACTIVE, got %s", chat.Status)
	}
	if chat.Subject != "MV Aurora" || chat.CustomerName != "Customer" {
		t.Fatalf("unexpected labels %q / %q", chat.Subject, chat.CustomerName)
	}
	if !chat.CreatedAt.Equal(s.clock.t) || !chat.LastActivity.Equal(s.clock.t) {
		t.Fatalf("expected timestamps from clock, got %v / %v", chat.CreatedAt, chat.LastActivity)
	}
	if chat.Messages == nil || len(chat.Messages) != 0 {
		t.Fatalf("expected empty message list, got %#v", chat.Messages)
	}
}

func TestCreateInvalidCategory(t *testing.T) {
	s := newTestStores(t)
	for _, c := range []Category{"", CategoryAll, "SALES"} {
		_, err := s.chats.Create(context.Background(), "BK-1", "", "", c)
		if !errors.Is(err, ErrInvalidCategory) {
			t.Fatalf("category %q: expected ErrInvalidCategory, got %v", c, err)
		}
	}
	if s.backend.Writes() != 0 {
		t.Fatal("invalid create must not write")
	}
}

func TestGetMissingChat(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	if c, ok := s.chats.Get(ctx, "nope", RoleCustomer); ok || c != nil {
		t.Fatalf("expected not found, got %+v", c)
	}
	if c, ok := s.chats.GetByConversationKey(ctx, "nope", RoleCustomer); ok || c != nil {
		t.Fatalf("expected not found, got %+v", c)
	}
}

func TestGetByConversationKeyReturnsFirst(t *testing.T) {
	s := newTestStores(t)
	first := s.mustCreate(t, "BK-3", CategoryBooking)
	s.mustCreate(t, "BK-3", CategoryTechnical)

	got, ok := s.chats.GetByConversationKey(context.Background(), " BK-3", RoleCustomer)
	if !ok || got.ID != first.ID {
		t.Fatalf("expected first chat %s, got %+v", first.ID, got)
	}
}

func TestStatusRoundTripKeepsMessages(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	chat := s.mustCreate(t, "BK-5", CategoryFinancial)
	s.mustAppend(t, chat.ID, RoleCustomer, "invoice question")
	s.mustAppend(t, chat.ID, RoleFinancial, "looking into it")
	before := s.messages.Messages(ctx, chat.ID)

	if err := s.chats.Close(ctx, chat.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	got, _ := s.chats.Get(ctx, chat.ID, RoleCustomer)
	if got.Status != StatusClosed {
		t.Fatalf("expected CLOSED, got %s", got.Status)
	}

	writes := s.backend.Writes()
	if err := s.chats.Close(ctx, chat.ID); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if s.backend.Writes() != writes {
		t.Fatal("closing a closed chat must not write")
	}

	if err := s.chats.Reopen(ctx, chat.ID); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	got, _ = s.chats.Get(ctx, chat.ID, RoleCustomer)
	if got.Status != StatusActive {
		t.Fatalf("expected ACTIVE, got %s", got.Status)
	}

	after := s.messages.Messages(ctx, chat.ID)
	if len(after) != len(before) {
		t.Fatalf("message count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Content != after[i].Content || before[i].Read != after[i].Read {
			t.Fatalf("message %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestCloseUnknownChatIsNoop(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	if err := s.chats.Close(ctx, "missing"); err != nil {
		t.Fatalf("Close on unknown id returned %v", err)
	}
	if err := s.chats.Reopen(ctx, "missing"); err != nil {
		t.Fatalf("Reopen on unknown id returned %v", err)
	}
	if n := len(s.chats.List(ctx, CategoryAll, RoleAdmin)); n != 0 {
		t.Fatalf("expected no chats to be created, got %d", n)
	}
	if s.backend.Writes() != 0 || s.notified.count() != 0 {
		t.Fatal("no-op status change must not write or notify")
	}
}

func TestLastMessageExcerpt(t *testing.T) {
	s := newTestStores(t)
	chat := s.mustCreate(t, "BK-8", CategoryTechnical)
	s.mustAppend(t, chat.ID, RoleCustomer, strings.Repeat("x", 150))

	got, _ := s.chats.Get(context.Background(), chat.ID, RoleTechnical)
	if got.LastMessage != strings.Repeat("x", 100)+"..." {
		t.Fatalf("unexpected excerpt %q", got.LastMessage)
	}
	if got.LastMessageAt == nil || !got.LastMessageAt.Equal(s.clock.t) {
		t.Fatalf("unexpected last message time %v", got.LastMessageAt)
	}
}

// Derived fields written to storage are a snapshot only; reads recompute them.
func TestDerivedFieldsIgnoreStoredSnapshot(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	chat := s.mustCreate(t, "BK-2", CategoryBooking)
	s.mustAppend(t, chat.ID, RoleCustomer, "hi")

	err := s.adapter.Update(ctx, func(c *Collection) (bool, error) {
		(*c)[0].UnreadCount = 42
		(*c)[0].LastMessage = "stale"
		return true, nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := s.chats.Get(ctx, chat.ID, RoleBooking)
	if got.UnreadCount != 1 || got.LastMessage != "hi" {
		t.Fatalf("expected recomputed fields, got unread=%d last=%q", got.UnreadCount, got.LastMessage)
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"technical", CategoryTechnical, false},
		{" Booking ", CategoryBooking, false},
		{"all", CategoryAll, false},
		{"sales", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseCategory(%q) = %q, %v", tt.in, got, err)
		}
	}
	if CategoryFinancial.Title() != "Financial" {
		t.Fatalf("unexpected title %q", CategoryFinancial.Title())
	}
}
