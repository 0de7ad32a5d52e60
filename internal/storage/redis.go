package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores values as plain strings and publishes on "<key>:changed"
// after every write so other processes can refresh before their next poll.
type Redis struct {
	client *redis.Client
}

var (
	_ Backend = (*Redis)(nil)
	_ Watcher = (*Redis)(nil)
)

// NewRedis parses a redis:// URL and verifies the server answers.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("storage: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func changedChannel(key string) string { return key + ":changed" }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return err
	}
	// the write already landed; a lost signal only delays peers until their next poll
	_ = r.client.Publish(ctx, changedChannel(key), "set").Err()
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	_ = r.client.Publish(ctx, changedChannel(key), "del").Err()
	return nil
}

// Watch subscribes to the change channel of key until ctx is done.
func (r *Redis) Watch(ctx context.Context, key string, onChange func()) error {
	sub := r.client.Subscribe(ctx, changedChannel(key))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("storage: subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			onChange()
		}
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
