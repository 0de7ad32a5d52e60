package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/normalize"
)

// ChatsStore provides create/read/status operations over chats.
type ChatsStore struct {
	// adapter owns the persisted collection; every call re-reads it
	adapter *Adapter

	// now is swapped in tests for a deterministic clock
	now func() time.Time
}

// NewChatsStore returns a ChatsStore backed by adapter.
func NewChatsStore(adapter *Adapter) *ChatsStore {
	return &ChatsStore{adapter: adapter, now: func() time.Time { return time.Now().UTC() }}
}

// List returns chats in insertion order with derived fields computed for viewer.
// category may be CategoryAll (or empty) for every chat.
func (s *ChatsStore) List(ctx context.Context, category Category, viewer Role) []Chat {
	group := viewer.Group()
	chats := []Chat{}
	for _, c := range s.adapter.Load(ctx) {
		if !category.matches(c.Category) {
			continue
		}
		c = c.clone()
		c.refresh(group)
		chats = append(chats, c)
	}
	return chats
}

// UnreadTotal sums the unread counts viewer sees across a category.
func (s *ChatsStore) UnreadTotal(ctx context.Context, category Category, viewer Role) int {
	total := 0
	for _, c := range s.List(ctx, category, viewer) {
		total += c.UnreadCount
	}
	return total
}

// Get returns the chat with id, or false when it does not exist.
func (s *ChatsStore) Get(ctx context.Context, id string, viewer Role) (*Chat, bool) {
	coll := s.adapter.Load(ctx)
	i := coll.index(id)
	if i < 0 {
		return nil, false
	}
	c := coll[i].clone()
	c.refresh(viewer.Group())
	return &c, true
}

// GetByConversationKey returns the first chat, in insertion order, whose key
// matches. A key can own one chat per category.
func (s *ChatsStore) GetByConversationKey(ctx context.Context, key string, viewer Role) (*Chat, bool) {
	key = normalize.Key(key)
	for _, c := range s.adapter.Load(ctx) {
		if c.ConversationKey == key {
			c = c.clone()
			c.refresh(viewer.Group())
			return &c, true
		}
	}
	return nil, false
}

// Create returns the chat for (key, category), creating it when none exists.
// An existing chat is returned unchanged; subject and customer name are only
// used for a new chat. An empty key gets a synthesized guest key.
func (s *ChatsStore) Create(ctx context.Context, key, subject, customerName string, category Category) (*Chat, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	key = normalize.Key(key)
	if key == "" {
		key = guestKey()
	}

	var out Chat
	err := s.adapter.Update(ctx, func(coll *Collection) (bool, error) {
		for _, c := range *coll {
			if c.ConversationKey == key && c.Category == category {
				out = c.clone()
				return false, nil
			}
		}

		now := s.now()
		out = Chat{
			ID:              uuid.NewString(),
			ConversationKey: key,
			Subject:         strings.TrimSpace(subject),
			CustomerName:    normalize.Name(customerName, "Customer"),
			Messages:        []Message{},
			CreatedAt:       now,
			LastActivity:    now,
			Status:          StatusActive,
			Category:        category,
		}
		*coll = append(*coll, out)
		out = out.clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	out.refresh(GroupCustomer)
	return &out, nil
}

// Close marks the chat CLOSED. Unknown ids and already closed chats are no-ops.
func (s *ChatsStore) Close(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusClosed)
}

// Reopen marks the chat ACTIVE. Unknown ids and active chats are no-ops.
func (s *ChatsStore) Reopen(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusActive)
}

func (s *ChatsStore) setStatus(ctx context.Context, id string, status Status) error {
	return s.adapter.Update(ctx, func(coll *Collection) (bool, error) {
		i := coll.index(id)
		if i < 0 || (*coll)[i].Status == status {
			return false, nil
		}
		(*coll)[i].Status = status
		return true, nil
	})
}

// guestKey synthesizes a conversation key for anonymous sessions.
func guestKey() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "GUEST-" + strings.ToUpper(id[:8])
}
