// Package storage provides the key/value persistence primitives the chat
// state is written to. A backend offers no transactions, no locking and, unless
// it implements Watcher, no change notifications.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("storage: key not found")

// Backend is a whole-value key/value store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher is implemented by backends that can signal a write made by another
// process. Watch blocks until ctx is done, calling onChange for every signal.
type Watcher interface {
	Watch(ctx context.Context, key string, onChange func()) error
}

// Ping checks b when it supports it and reports success otherwise.
func Ping(ctx context.Context, b Backend) error {
	if p, ok := b.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
