package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/auth"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/fanout"
)

// chatService is the subset of support.Service the API uses.
type chatService interface {
	CreateChat(ctx context.Context, key, subject, customerName string, category data.Category) (*data.Chat, error)
	ListChats(ctx context.Context, category data.Category, viewer data.Role) []data.Chat
	GetChat(ctx context.Context, id string, viewer data.Role) (*data.Chat, bool)
	GetChatByConversationKey(ctx context.Context, key string, viewer data.Role) (*data.Chat, bool)
	CloseChat(ctx context.Context, id string) error
	ReopenChat(ctx context.Context, id string) error
	SendMessage(ctx context.Context, chatID string, sender data.Role, senderName, body string, category data.Category) (*data.Message, error)
	MarkRead(ctx context.Context, chatID string, reader data.Role) (int, error)
	Subscribe(ctx context.Context, chatID string, cb fanout.Callback) func()
	Ping(ctx context.Context) error
}

// Server implements SupportServer and contains references to the service and auth logic.
type Server struct {
	svc    chatService
	auth   *auth.JWTManager
	logger *zap.Logger
}

var _ SupportServer = (*Server)(nil)

// newServer returns a ready-to-use Server wired with the service and auth manager.
func newServer(svc chatService, authMgr *auth.JWTManager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, auth: authMgr, logger: logger}
}
