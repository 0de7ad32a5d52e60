package main

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/observability"
)

// CreateChat finds or creates the caller's chat for a conversation key and category.
func (s *Server) CreateChat(ctx context.Context, req *CreateChatRequest) (*ChatResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	category, err := data.ParseCategory(req.Category)
	if err != nil {
		return nil, mapError(s.logger, "create chat", err)
	}

	name := req.CustomerName
	if name == "" && c.Role == data.RoleCustomer {
		name = c.Name
	}

	chat, err := s.svc.CreateChat(ctx, req.ConversationKey, req.Subject, name, category)
	if err != nil {
		return nil, mapError(s.logger, "create chat", err)
	}
	return &ChatResponse{Chat: s.view(ctx, chat, c.Role)}, nil
}

// GetChat looks a chat up by id, or by conversation key when no id is given.
func (s *Server) GetChat(ctx context.Context, req *GetChatRequest) (*ChatResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var (
		chat *data.Chat
		ok   bool
	)
	switch {
	case req.ChatID != "":
		chat, ok = s.svc.GetChat(ctx, req.ChatID, c.Role)
	case strings.TrimSpace(req.ConversationKey) != "":
		chat, ok = s.svc.GetChatByConversationKey(ctx, req.ConversationKey, c.Role)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "chat_id or conversation_key is required")
	}
	if !ok {
		return nil, status.Errorf(codes.NotFound, "chat not found")
	}
	return &ChatResponse{Chat: chat}, nil
}

// SendMessage appends a message authored by the caller.
func (s *Server) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var category data.Category
	if req.Category != "" {
		if category, err = data.ParseCategory(req.Category); err != nil {
			return nil, mapError(s.logger, "send message", err)
		}
	}

	msg, err := s.svc.SendMessage(ctx, req.ChatID, c.Role, c.Name, req.Content, category)
	if err != nil {
		return nil, mapError(s.logger, "send message", err)
	}
	return &SendMessageResponse{Message: msg}, nil
}

// MarkRead marks the messages incoming for the caller's read-group as read.
func (s *Server) MarkRead(ctx context.Context, req *ChatIDRequest) (*MarkReadResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.svc.MarkRead(ctx, req.ChatID, c.Role)
	if err != nil {
		return nil, mapError(s.logger, "mark read", err)
	}
	return &MarkReadResponse{Marked: n}, nil
}

// CloseChat closes a chat. Unknown ids succeed with an empty response.
func (s *Server) CloseChat(ctx context.Context, req *ChatIDRequest) (*ChatResponse, error) {
	return s.setStatus(ctx, req, "close chat", s.svc.CloseChat)
}

// ReopenChat reopens a chat. Unknown ids succeed with an empty response.
func (s *Server) ReopenChat(ctx context.Context, req *ChatIDRequest) (*ChatResponse, error) {
	return s.setStatus(ctx, req, "reopen chat", s.svc.ReopenChat)
}

func (s *Server) setStatus(ctx context.Context, req *ChatIDRequest, op string, apply func(context.Context, string) error) (*ChatResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := apply(ctx, req.ChatID); err != nil {
		return nil, mapError(s.logger, op, err)
	}
	chat, _ := s.svc.GetChat(ctx, req.ChatID, c.Role)
	return &ChatResponse{Chat: chat}, nil
}

// ListChats streams the chats of a category as the caller sees them.
func (s *Server) ListChats(req *ListChatsRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	c, err := callerFromContext(ctx)
	if err != nil {
		return err
	}

	category := data.CategoryAll
	if req.Category != "" {
		if category, err = data.ParseCategory(req.Category); err != nil {
			return mapError(s.logger, "list chats", err)
		}
	}
	key := strings.TrimSpace(req.ConversationKey)
	wantStatus := data.Status(strings.ToUpper(strings.TrimSpace(req.Status)))

	for _, chat := range s.svc.ListChats(ctx, category, c.Role) {
		if key != "" && chat.ConversationKey != key {
			continue
		}
		if wantStatus != "" && chat.Status != wantStatus {
			continue
		}
		chat := chat
		if err := stream.SendMsg(&ChatResponse{Chat: &chat}); err != nil {
			return status.Errorf(codes.Internal, "failed to send chat: %v", err)
		}
	}
	return nil
}

// Watch streams the chat's message list: once on subscribe and again every
// time it changes, whether the change was made here or by another process.
func (s *Server) Watch(req *WatchRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	c, err := callerFromContext(ctx)
	if err != nil {
		return err
	}
	if req.ChatID == "" {
		return status.Errorf(codes.InvalidArgument, "chat_id is required")
	}

	if req.MarkRead {
		if _, err := s.svc.MarkRead(ctx, req.ChatID, c.Role); err != nil {
			return mapError(s.logger, "watch", err)
		}
	}

	observability.WatchStreamsActive.WithLabelValues("grpc").Inc()
	defer observability.WatchStreamsActive.WithLabelValues("grpc").Dec()

	err = s.pump(ctx, req.ChatID, func(ev *WatchEvent) error { return stream.SendMsg(ev) })
	if err != nil {
		s.logger.Debug("watch stream closed", zap.String("chat_id", req.ChatID), zap.Error(err))
	}
	return nil
}

// pump subscribes to chatID and forwards every changed message list to send
// until ctx is done or send fails.
func (s *Server) pump(ctx context.Context, chatID string, send func(*WatchEvent) error) error {
	updates := newLatest()
	unsubscribe := s.svc.Subscribe(ctx, chatID, updates.put)
	defer unsubscribe()

	var last []data.Message
	sent := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case msgs := <-updates.ch:
			// the hub redelivers on every poll; only forward real changes
			if sent && sameMessages(last, msgs) {
				continue
			}
			if err := send(&WatchEvent{ChatID: chatID, Messages: msgs, SentAt: time.Now().UTC()}); err != nil {
				return err
			}
			last, sent = msgs, true
		}
	}
}

// view recomputes derived fields for the caller when the role differs from
// the one the service used.
func (s *Server) view(ctx context.Context, chat *data.Chat, viewer data.Role) *data.Chat {
	if viewer == data.RoleCustomer {
		return chat
	}
	if v, ok := s.svc.GetChat(ctx, chat.ID, viewer); ok {
		return v
	}
	return chat
}

// latest is a one-slot mailbox that keeps only the newest delivery, so a slow
// stream never blocks the writer running the fan-out callbacks.
type latest struct {
	ch chan []data.Message
}

func newLatest() *latest {
	return &latest{ch: make(chan []data.Message, 1)}
}

func (l *latest) put(msgs []data.Message) {
	for {
		select {
		case l.ch <- msgs:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

// sameMessages reports whether two deliveries carry the same messages and read flags.
func sameMessages(a, b []data.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Read != b[i].Read {
			return false
		}
	}
	return true
}
