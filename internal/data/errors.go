package data

import "errors"

var (
	// ErrChatNotFound is returned by Append when the chat id does not resolve.
	// Every other operation treats a missing chat as a no-op.
	ErrChatNotFound = errors.New("chat not found")

	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidRole     = errors.New("invalid role")
	ErrEmptyMessage    = errors.New("message content is empty")
)
