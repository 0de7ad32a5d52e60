package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/normalize"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/observability"
)

// MessagesStore appends messages to chats and tracks read flags.
type MessagesStore struct {
	adapter *Adapter
	logger  *zap.Logger

	// now is swapped in tests for a deterministic clock
	now func() time.Time
}

// NewMessagesStore returns a MessagesStore backed by adapter.
func NewMessagesStore(adapter *Adapter, logger *zap.Logger) *MessagesStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessagesStore{
		adapter: adapter,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Append adds a message to chatID and returns it once the collection is written.
//
// The message takes the chat's category; a different category argument is
// logged and ignored. Its timestamp never goes below the previous message's.
// Sending also counts as reading: unread messages the sender's group had
// received in this chat are marked read in the same write.
func (m *MessagesStore) Append(ctx context.Context, chatID string, sender Role, senderName, body string, category Category) (*Message, error) {
	if !sender.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, sender)
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}

	var msg Message
	err := m.adapter.Update(ctx, func(coll *Collection) (bool, error) {
		i := coll.index(chatID)
		if i < 0 {
			return false, fmt.Errorf("append to chat %q: %w", chatID, ErrChatNotFound)
		}
		chat := &(*coll)[i]

		if category != "" && category != chat.Category {
			m.logger.Warn("message category does not match chat, using chat category",
				zap.String("chat_id", chat.ID),
				zap.String("given", string(category)),
				zap.String("chat_category", string(chat.Category)))
		}

		ts := m.now()
		if n := len(chat.Messages); n > 0 && ts.Before(chat.Messages[n-1].Timestamp) {
			ts = chat.Messages[n-1].Timestamp
		}

		// a staff reply is only possible from an open thread, so it reads the
		// customer's messages; a customer send leaves staff replies unread
		group := sender.Group()
		if group == GroupStaff {
			for j := range chat.Messages {
				if !chat.Messages[j].Read && group.incoming(chat.Messages[j].Sender) {
					chat.Messages[j].Read = true
				}
			}
		}

		msg = Message{
			ID:         uuid.NewString(),
			ChatID:     chat.ID,
			Sender:     sender,
			SenderName: normalize.Name(senderName, defaultSenderName(sender)),
			Content:    body,
			Timestamp:  ts,
			Category:   chat.Category,
		}
		chat.Messages = append(chat.Messages, msg)
		chat.LastActivity = ts
		chat.refresh(group.Opposite())
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	observability.MessagesAppendedTotal.WithLabelValues(string(msg.Category), sender.Group().String()).Inc()
	return &msg, nil
}

// MarkRead flags every message incoming for reader's group as read and
// returns how many changed. Unknown chats and already-read chats cause no write.
func (m *MessagesStore) MarkRead(ctx context.Context, chatID string, reader Role) (int, error) {
	if !reader.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, reader)
	}
	group := reader.Group()

	changed := 0
	err := m.adapter.Update(ctx, func(coll *Collection) (bool, error) {
		i := coll.index(chatID)
		if i < 0 {
			return false, nil
		}
		chat := &(*coll)[i]
		for j := range chat.Messages {
			if !chat.Messages[j].Read && group.incoming(chat.Messages[j].Sender) {
				chat.Messages[j].Read = true
				changed++
			}
		}
		if changed == 0 {
			return false, nil
		}
		chat.refresh(group)
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// Messages returns the current messages of chatID, empty when it is unknown.
func (m *MessagesStore) Messages(ctx context.Context, chatID string) []Message {
	return m.adapter.Load(ctx).MessagesOf(chatID)
}

func defaultSenderName(r Role) string {
	if r == RoleCustomer {
		return "Customer"
	}
	return Category(r).Title() + " team"
}
