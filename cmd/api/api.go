package main

import (
	"time"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
)

// Request and response messages of support.v1.SupportService.

type CreateChatRequest struct {
	ConversationKey string `json:"conversation_key"`
	Subject         string `json:"subject"`
	CustomerName    string `json:"customer_name,omitempty"` // defaults to the caller's name
	Category        string `json:"category"`
}

type GetChatRequest struct {
	ChatID          string `json:"chat_id,omitempty"`
	ConversationKey string `json:"conversation_key,omitempty"` // used when ChatID is empty
}

type ChatIDRequest struct {
	ChatID string `json:"chat_id"`
}

type ChatResponse struct {
	Chat *data.Chat `json:"chat,omitempty"` // nil when the chat does not exist
}

type SendMessageRequest struct {
	ChatID   string `json:"chat_id"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

type SendMessageResponse struct {
	Message *data.Message `json:"message"`
}

type MarkReadResponse struct {
	Marked int `json:"marked"`
}

type ListChatsRequest struct {
	Category        string `json:"category,omitempty"` // empty or ALL for every category
	ConversationKey string `json:"conversation_key,omitempty"`
	Status          string `json:"status,omitempty"`
}

type WatchRequest struct {
	ChatID   string `json:"chat_id"`
	MarkRead bool   `json:"mark_read,omitempty"` // mark incoming messages read when the watch starts
}

// WatchEvent carries the full message list of the watched chat.
type WatchEvent struct {
	ChatID   string         `json:"chat_id"`
	Messages []data.Message `json:"messages"`
	SentAt   time.Time      `json:"sent_at"`
}
