package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/observability"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/storage"
)

// Notifier receives the collection after every successful write, together
// with the write's version. Versions grow with every write this adapter makes.
type Notifier interface {
	Notify(c Collection, version uint64)
}

// Adapter reads and writes the whole chat collection under one storage key.
//
// The mutex only serializes writers inside this process. Another process
// sharing the backend can still overwrite a write made here: the last writer
// wins for the entire collection.
type Adapter struct {
	backend storage.Backend
	key     string
	logger  *zap.Logger

	// mu guards load -> mutate -> write sequences in Update, Save and Clear
	mu sync.Mutex

	// version counts successful writes; it is bumped under mu once the
	// backend has accepted the write
	version atomic.Uint64

	nmu      sync.RWMutex
	notifier Notifier
}

// NewAdapter returns an adapter storing the collection under key.
func NewAdapter(backend storage.Backend, key string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{backend: backend, key: key, logger: logger}
}

// SetNotifier installs the fan-out target. The hub is built after the adapter
// because it polls through it.
func (a *Adapter) SetNotifier(n Notifier) {
	a.nmu.Lock()
	a.notifier = n
	a.nmu.Unlock()
}

// Key is the storage key holding the collection.
func (a *Adapter) Key() string { return a.key }

// Backend exposes the underlying store for health checks and change watching.
func (a *Adapter) Backend() storage.Backend { return a.backend }

// Load parses the whole collection for read-only callers. A missing key, a
// backend error or a corrupt payload all yield an empty collection; failures
// are logged only.
func (a *Adapter) Load(ctx context.Context) Collection {
	c, err := a.load(ctx)
	if err != nil {
		return Collection{}
	}
	return c
}

// Snapshot loads the collection and reports the version of the newest local
// write it is guaranteed to include. Unlike Load it returns backend errors.
func (a *Adapter) Snapshot(ctx context.Context) (Collection, uint64, error) {
	v := a.version.Load()
	c, err := a.load(ctx)
	return c, v, err
}

// Version returns the number of successful writes made through a.
func (a *Adapter) Version() uint64 { return a.version.Load() }

// load returns backend errors; a corrupt payload is logged and read as empty.
func (a *Adapter) load(ctx context.Context) (Collection, error) {
	raw, err := a.backend.Get(ctx, a.key)
	if errors.Is(err, storage.ErrNotFound) {
		return Collection{}, nil
	}
	if err != nil {
		a.logger.Error("failed to read chat collection", zap.String("key", a.key), zap.Error(err))
		observability.StoreLoadFailuresTotal.WithLabelValues("backend").Inc()
		return nil, fmt.Errorf("read chat collection: %w", err)
	}

	var c Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		a.logger.Error("chat collection is corrupt, treating store as empty",
			zap.String("key", a.key), zap.Int("bytes", len(raw)), zap.Error(err))
		observability.StoreLoadFailuresTotal.WithLabelValues("parse").Inc()
		return Collection{}, nil
	}
	if c == nil {
		c = Collection{}
	}
	for i := range c {
		if c[i].Messages == nil {
			c[i].Messages = []Message{}
		}
	}
	return c, nil
}

// Save writes c and then notifies the fan-out with it.
func (a *Adapter) Save(ctx context.Context, c Collection) error {
	a.mu.Lock()
	v, err := a.write(ctx, c)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.notify(c, v)
	return nil
}

// Update runs fn on a freshly loaded collection inside the process-local
// critical section. fn reports whether it changed anything; when it did not,
// or when it fails, nothing is written and nobody is notified. A failed read
// is returned without calling fn so an unreadable store is never overwritten.
func (a *Adapter) Update(ctx context.Context, fn func(c *Collection) (bool, error)) error {
	a.mu.Lock()
	c, err := a.load(ctx)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	changed, err := fn(&c)
	if err != nil || !changed {
		a.mu.Unlock()
		return err
	}
	v, err := a.write(ctx, c)
	a.mu.Unlock()
	if err != nil {
		return err
	}

	// callbacks may call back into the stores, so notify outside the lock
	a.notify(c, v)
	return nil
}

// Clear deletes the whole collection. Administrative use only.
func (a *Adapter) Clear(ctx context.Context) error {
	a.mu.Lock()
	err := a.backend.Delete(ctx, a.key)
	var v uint64
	if err == nil {
		v = a.version.Add(1)
	}
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("clear chat collection: %w", err)
	}
	a.logger.Warn("chat collection cleared", zap.String("key", a.key))
	a.notify(Collection{}, v)
	return nil
}

// write must be called with mu held. It returns the new version.
func (a *Adapter) write(ctx context.Context, c Collection) (uint64, error) {
	if c == nil {
		c = Collection{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		observability.StoreSavesTotal.WithLabelValues("encode_error").Inc()
		return 0, fmt.Errorf("encode chat collection: %w", err)
	}

	start := time.Now()
	err = a.backend.Set(ctx, a.key, raw)
	observability.StoreSaveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.StoreSavesTotal.WithLabelValues("error").Inc()
		a.logger.Error("failed to write chat collection", zap.String("key", a.key), zap.Error(err))
		return 0, fmt.Errorf("write chat collection: %w", err)
	}
	observability.StoreSavesTotal.WithLabelValues("ok").Inc()
	return a.version.Add(1), nil
}

func (a *Adapter) notify(c Collection, version uint64) {
	a.nmu.RLock()
	n := a.notifier
	a.nmu.RUnlock()
	if n != nil {
		n.Notify(c.Clone(), version)
	}
}
