package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/config"
)

// exerciseBackend runs the behaviour every backend must share.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	key := "test_key_" + time.Now().Format("150405.000000")

	if _, err := b.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on missing key: expected ErrNotFound, got %v", err)
	}

	if err := b.Set(ctx, key, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := b.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("expected stored value, got %q", got)
	}

	if err := b.Set(ctx, key, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, _ = b.Get(ctx, key)
	if string(got) != `{"a":2}` {
		t.Fatalf("expected overwritten value, got %q", got)
	}

	if err := b.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := b.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete: expected ErrNotFound, got %v", err)
	}
	if err := b.Delete(ctx, key); err != nil {
		t.Fatalf("Delete of missing key should succeed, got %v", err)
	}
	if err := Ping(ctx, b); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemory())
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := []byte("abc")
	_ = m.Set(ctx, "k", v)
	v[0] = 'z'

	got, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("caller mutation leaked into store: %q", got)
	}
	got[1] = 'z'
	again, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("returned slice aliases stored value: %q", again)
	}
}

func TestMemoryCountsWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "k", []byte("1"))
	_ = m.Delete(ctx, "k")
	_, _ = m.Get(ctx, "k")
	if m.Writes() != 2 {
		t.Fatalf("expected 2 writes, got %d", m.Writes())
	}
}

func TestFileBackend(t *testing.T) {
	f, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	exerciseBackend(t, f)
}

func TestFileBackendsShareDirectory(t *testing.T) {
	dir := t.TempDir()
	a, _ := NewFile(dir)
	b, _ := NewFile(dir)
	ctx := context.Background()

	if err := a.Set(ctx, "shared", []byte("from-a")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := b.Get(ctx, "shared")
	if err != nil || string(got) != "from-a" {
		t.Fatalf("second handle should see write, got %q, %v", got, err)
	}
}

func TestFileSanitizesKey(t *testing.T) {
	dir := t.TempDir()
	f, _ := NewFile(dir)
	if err := f.Set(context.Background(), "../escape/key", []byte("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := os.Stat(dir + "/.._escape_key.json"); err != nil {
		t.Fatalf("expected sanitized file inside dir: %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, &config.Config{StoreBackend: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := b.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", b)
	}

	b, err = Open(ctx, &config.Config{StoreBackend: "file", StoreDir: t.TempDir()})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if _, ok := b.(*File); !ok {
		t.Fatalf("expected *File, got %T", b)
	}

	if _, err := Open(ctx, &config.Config{StoreBackend: "etcd"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := Open(ctx, &config.Config{StoreBackend: "redis"}); err == nil {
		t.Fatal("expected error when REDIS_URL is missing")
	}
}

// The remaining tests need live services and are skipped unless configured.

func TestRedisBackend(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	r, err := NewRedis(context.Background(), url)
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	defer r.Close()
	exerciseBackend(t, r)
}

func TestRedisWatch(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := NewRedis(ctx, url)
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	defer r.Close()

	changed := make(chan struct{}, 1)
	go func() {
		_ = r.Watch(ctx, "watch_key", func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// give the subscription time to register
	time.Sleep(200 * time.Millisecond)
	if err := r.Set(ctx, "watch_key", []byte("1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	defer r.Delete(context.Background(), "watch_key")

	select {
	case <-changed:
	case <-ctx.Done():
		t.Fatal("did not receive change signal")
	}
}

func TestPostgresBackend(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(context.Background(), url)
	if err != nil {
		t.Fatalf("NewPostgres failed: %v", err)
	}
	defer p.Close()
	exerciseBackend(t, p)
}

func TestMinIOBackend(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set; skipping integration test")
	}
	m, err := NewMinIO(context.Background(), MinIOOptions{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    "support-chat-test",
	})
	if err != nil {
		t.Fatalf("NewMinIO failed: %v", err)
	}
	exerciseBackend(t, m)
}
