// Package support wires the chat stores, fan-out hub and delivery side effects
// into the single service object the API and the admin CLI share.
package support

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/backup"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/fanout"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/notify"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/storage"
)

// Options configures New. Zero values pick sensible defaults.
type Options struct {
	StorageKey   string        // default "fleet_support_chats"
	PollInterval time.Duration // default fanout.DefaultPollInterval

	Cue               notify.Cue
	Notifier          notify.Notifier
	InitialPermission notify.PermissionState
	Prompter          notify.Prompter
}

// DefaultStorageKey holds the collection when Options.StorageKey is empty.
const DefaultStorageKey = "fleet_support_chats"

// Service is constructed once per process and passed to every consumer.
type Service struct {
	backend    storage.Backend
	adapter    *data.Adapter
	chats      *data.ChatsStore
	messages   *data.MessagesStore
	hub        *fanout.Hub
	permission *notify.Permission
	dispatcher *notify.Dispatcher
	logger     *zap.Logger
}

// New builds a Service over backend.
func New(backend storage.Backend, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := opts.StorageKey
	if key == "" {
		key = DefaultStorageKey
	}

	adapter := data.NewAdapter(backend, key, logger.Named("store"))

	hubOpts := []fanout.Option{fanout.WithInterval(opts.PollInterval)}
	if w, ok := backend.(storage.Watcher); ok {
		hubOpts = append(hubOpts, fanout.WithWatcher(w, key))
	}
	hub := fanout.NewHub(adapter, logger.Named("fanout"), hubOpts...)
	adapter.SetNotifier(hub)

	permission := notify.NewPermission(backend, notify.PermissionKey(key), opts.InitialPermission, opts.Prompter, logger.Named("notify"))

	return &Service{
		backend:    backend,
		adapter:    adapter,
		chats:      data.NewChatsStore(adapter),
		messages:   data.NewMessagesStore(adapter, logger.Named("ledger")),
		hub:        hub,
		permission: permission,
		dispatcher: notify.NewDispatcher(opts.Cue, opts.Notifier, permission, logger.Named("notify")),
		logger:     logger,
	}
}

// CreateChat finds or creates the chat for (key, category).
func (s *Service) CreateChat(ctx context.Context, key, subject, customerName string, category data.Category) (*data.Chat, error) {
	return s.chats.Create(ctx, key, subject, customerName, category)
}

// ListChats returns chats in category (or data.CategoryAll) as viewer sees them.
func (s *Service) ListChats(ctx context.Context, category data.Category, viewer data.Role) []data.Chat {
	return s.chats.List(ctx, category, viewer)
}

// UnreadTotal sums viewer's unread counts across category.
func (s *Service) UnreadTotal(ctx context.Context, category data.Category, viewer data.Role) int {
	return s.chats.UnreadTotal(ctx, category, viewer)
}

func (s *Service) GetChat(ctx context.Context, id string, viewer data.Role) (*data.Chat, bool) {
	return s.chats.Get(ctx, id, viewer)
}

func (s *Service) GetChatByConversationKey(ctx context.Context, key string, viewer data.Role) (*data.Chat, bool) {
	return s.chats.GetByConversationKey(ctx, key, viewer)
}

func (s *Service) CloseChat(ctx context.Context, id string) error {
	return s.chats.Close(ctx, id)
}

func (s *Service) ReopenChat(ctx context.Context, id string) error {
	return s.chats.Reopen(ctx, id)
}

// SendMessage appends a message and runs the delivery side effects once.
func (s *Service) SendMessage(ctx context.Context, chatID string, sender data.Role, senderName, body string, category data.Category) (*data.Message, error) {
	msg, err := s.messages.Append(ctx, chatID, sender, senderName, body, category)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, *msg)
	return msg, nil
}

func (s *Service) MarkRead(ctx context.Context, chatID string, reader data.Role) (int, error) {
	return s.messages.MarkRead(ctx, chatID, reader)
}

func (s *Service) Messages(ctx context.Context, chatID string) []data.Message {
	return s.messages.Messages(ctx, chatID)
}

// Subscribe registers cb for chatID; see fanout.Hub.Subscribe.
func (s *Service) Subscribe(ctx context.Context, chatID string, cb fanout.Callback) func() {
	return s.hub.Subscribe(ctx, chatID, cb)
}

// RequestNotificationPermission negotiates desktop notification permission.
func (s *Service) RequestNotificationPermission(ctx context.Context) (bool, error) {
	return s.permission.Request(ctx)
}

func (s *Service) NotificationPermission(ctx context.Context) notify.PermissionState {
	return s.permission.State(ctx)
}

// ResetNotificationPermission forgets the stored decision.
func (s *Service) ResetNotificationPermission(ctx context.Context) error {
	return s.permission.Reset(ctx)
}

// Clear wipes every chat. Callers are responsible for confirming with the user.
func (s *Service) Clear(ctx context.Context) error {
	return s.adapter.Clear(ctx)
}

// Export renders the current collection as a backup payload.
// An unreadable store is an error rather than an empty backup.
func (s *Service) Export(ctx context.Context, format backup.Format) ([]byte, error) {
	c, _, err := s.adapter.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return backup.Encode(c, format, time.Now())
}

// Import validates raw and replaces the whole collection with it. It returns
// the number of chats imported.
func (s *Service) Import(ctx context.Context, raw []byte, format backup.Format) (int, error) {
	c, err := backup.Decode(raw, format)
	if err != nil {
		return 0, err
	}
	if err := s.adapter.Save(ctx, c); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	s.logger.Info("chat collection imported", zap.Int("chats", len(c)))
	return len(c), nil
}

// Run drives the fan-out poll loop until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("fan-out poller started", zap.Duration("interval", s.hub.Interval()))
	return s.hub.Run(ctx)
}

// Ping checks the storage backend.
func (s *Service) Ping(ctx context.Context) error {
	return storage.Ping(ctx, s.backend)
}

// Close releases the storage backend.
func (s *Service) Close() error {
	return s.backend.Close()
}
