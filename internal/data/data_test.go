package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/storage"
)

// recordingNotifier captures every collection the adapter publishes.
type recordingNotifier struct {
	mu       sync.Mutex
	calls    []Collection
	versions []uint64
}

func (r *recordingNotifier) Notify(c Collection, version uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	r.versions = append(r.versions, version)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// fakeClock hands out timestamps that callers can move backwards.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

type testStores struct {
	backend  *storage.Memory
	adapter  *Adapter
	chats    *ChatsStore
	messages *MessagesStore
	notified *recordingNotifier
	clock    *fakeClock
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()
	backend := storage.NewMemory()
	adapter := NewAdapter(backend, "fleet_support_chats", nil)
	notified := &recordingNotifier{}
	adapter.SetNotifier(notified)

	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	chats := NewChatsStore(adapter)
	chats.now = clock.now
	messages := NewMessagesStore(adapter, nil)
	messages.now = clock.now

	return &testStores{
		backend:  backend,
		adapter:  adapter,
		chats:    chats,
		messages: messages,
		notified: notified,
		clock:    clock,
	}
}

func (s *testStores) mustCreate(t *testing.T, key string, category Category) *Chat {
	t.Helper()
	chat, err := s.chats.Create(context.Background(), key, "MV Aurora", "Ana", category)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return chat
}

func (s *testStores) mustAppend(t *testing.T, chatID string, sender Role, body string) *Message {
	t.Helper()
	msg, err := s.messages.Append(context.Background(), chatID, sender, string(sender)+" user", body, "")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	return msg
}
