// Package fanout delivers chat message lists to local observers, both right
// after a local write and on a fixed polling cadence that picks up writes made
// by other processes sharing the same storage.
package fanout

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/observability"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/storage"
)

// DefaultPollInterval is the fixed re-read cadence. It is not adaptive.
const DefaultPollInterval = 2 * time.Second

// Callback receives the full current message list of one chat. Every delivery
// is a fresh copy and may repeat the previous one; observers diff if they care.
type Callback func(msgs []data.Message)

// Loader reads the whole collection along with the version of the newest
// local write it includes. *data.Adapter implements it.
type Loader interface {
	Snapshot(ctx context.Context) (data.Collection, uint64, error)
}

// subscription is a latest-wins mailbox in front of one callback. Deliveries
// older than the newest one accepted are dropped, and only one goroutine runs
// the callback at a time, so an observer never sees its list go backwards.
type subscription struct {
	cb     Callback
	closed atomic.Bool

	mu       sync.Mutex
	seen     uint64 // version of the newest accepted delivery
	accepted bool
	pending  []data.Message
	queued   bool
	draining bool
}

// Hub maps chat ids to the callbacks observing them.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int64]*subscription
	nextID int64

	loader   Loader
	logger   *zap.Logger
	interval time.Duration

	// optional push signal from the backend; the timer still bounds latency
	watcher  storage.Watcher
	watchKey string
}

// Option configures a Hub at construction.
type Option func(*Hub)

// WithInterval overrides DefaultPollInterval.
func WithInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithWatcher makes Run poll immediately whenever w signals a change to key.
func WithWatcher(w storage.Watcher, key string) Option {
	return func(h *Hub) {
		h.watcher = w
		h.watchKey = key
	}
}

// NewHub creates a hub that polls through loader.
func NewHub(loader Loader, logger *zap.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		subs:     make(map[string]map[int64]*subscription),
		loader:   loader,
		logger:   logger,
		interval: DefaultPollInterval,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Interval returns the polling cadence.
func (h *Hub) Interval() time.Duration { return h.interval }

// Subscribe registers cb for chatID and immediately delivers the chat's
// current messages (empty when the chat does not exist). When the store
// cannot be read the first delivery comes from the next poll instead.
//
// The returned function unsubscribes; it is safe to call more than once and
// from inside cb. Once it returns no new delivery starts, but a callback
// already running on another goroutine is not waited for. The subscription
// also ends when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, chatID string, cb Callback) func() {
	sub := &subscription{cb: cb}

	h.mu.Lock()
	if _, ok := h.subs[chatID]; !ok {
		h.subs[chatID] = make(map[int64]*subscription)
	}
	h.nextID++
	id := h.nextID
	h.subs[chatID][id] = sub
	h.mu.Unlock()
	observability.FanoutSubscribers.Inc()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			sub.close()
			h.remove(chatID, id)
		})
	}
	stop := context.AfterFunc(ctx, unsubscribe)

	// a save published while this read is in flight carries a newer version
	// and wins over the stale initial list
	c, v, err := h.loader.Snapshot(ctx)
	if err != nil {
		h.logger.Warn("initial delivery skipped, store unreadable", zap.String("chat_id", chatID), zap.Error(err))
	} else {
		h.deliver(chatID, sub, c.MessagesOf(chatID), v)
	}

	return func() {
		stop()
		unsubscribe()
	}
}

func (h *Hub) remove(chatID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if group, ok := h.subs[chatID]; ok {
		if _, ok := group[id]; ok {
			delete(group, id)
			observability.FanoutSubscribers.Dec()
		}
		// drop the group entirely so no chat keeps an empty registration
		if len(group) == 0 {
			delete(h.subs, chatID)
		}
	}
}

// Notify implements data.Notifier.
func (h *Hub) Notify(c data.Collection, version uint64) { h.Publish(c, version) }

// Publish delivers every subscribed chat's messages from c, which includes
// local writes up to version. Subscribers of a chat missing from c receive an
// empty list. A subscriber that already saw a newer version skips it.
func (h *Hub) Publish(c data.Collection, version uint64) {
	type target struct {
		chatID string
		subs   []*subscription
	}

	// copy the registrations so callbacks run without the lock held
	h.mu.RLock()
	targets := make([]target, 0, len(h.subs))
	for chatID, group := range h.subs {
		t := target{chatID: chatID, subs: make([]*subscription, 0, len(group))}
		for _, s := range group {
			t.subs = append(t.subs, s)
		}
		targets = append(targets, t)
	}
	h.mu.RUnlock()

	for _, t := range targets {
		msgs := c.MessagesOf(t.chatID)
		for _, s := range t.subs {
			h.deliver(t.chatID, s, msgs, version)
		}
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed.Store(true)
	s.pending, s.queued = nil, false
	s.mu.Unlock()
}

// deliver queues msgs for s. The goroutine that finds s idle runs the
// callback, picking up anything queued meanwhile, including deliveries made
// from inside the callback itself; other goroutines return at once.
func (h *Hub) deliver(chatID string, s *subscription, msgs []data.Message, version uint64) {
	s.mu.Lock()
	if s.closed.Load() || (s.accepted && version < s.seen) {
		s.mu.Unlock()
		return
	}
	s.seen, s.accepted = version, true
	s.pending, s.queued = msgs, true
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for s.queued && !s.closed.Load() {
		next := s.pending
		s.pending, s.queued = nil, false
		s.mu.Unlock()
		h.invoke(chatID, s, next)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func (h *Hub) invoke(chatID string, s *subscription, msgs []data.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("fan-out callback panicked", zap.String("chat_id", chatID), zap.Any("panic", r))
		}
	}()
	s.cb(append([]data.Message{}, msgs...))
	observability.FanoutDeliveriesTotal.Inc()
}

// Poll re-reads the store and publishes it, changed or not.
func (h *Hub) Poll(ctx context.Context) {
	h.poll(ctx, "manual")
}

func (h *Hub) poll(ctx context.Context, trigger string) {
	observability.PollCyclesTotal.WithLabelValues(trigger).Inc()
	if h.Len() == 0 {
		return
	}
	c, v, err := h.loader.Snapshot(ctx)
	if err != nil {
		// keep the last delivered lists rather than pushing an empty store
		h.logger.Warn("poll skipped, store unreadable", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	h.Publish(c, v)
}

// Run polls every interval until ctx is done. With a watcher configured, a
// change signal triggers an extra poll between ticks.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	changed := make(chan struct{}, 1)
	if h.watcher != nil {
		go func() {
			err := h.watcher.Watch(ctx, h.watchKey, func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			})
			if err != nil && ctx.Err() == nil {
				h.logger.Warn("change watch stopped, relying on polling only", zap.Error(err))
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.poll(ctx, "timer")
		case <-changed:
			h.poll(ctx, "watch")
		}
	}
}

// Len returns the number of registered callbacks across all chats.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, group := range h.subs {
		n += len(group)
	}
	return n
}

// Groups returns how many chats currently have at least one subscriber.
func (h *Hub) Groups() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
