package websession

import (
	"context"
	"log/slog"
	"sync"
)

const memSubscriberQueue = 64

// MemoryStore is an in-process Storage shared between tabs.
//
// Each tab writes through its own view (Tab) so that writes carry the tab's
// origin; MemoryStore itself is the ChangeFeed.
type MemoryStore struct {
	log *slog.Logger

	mu   sync.RWMutex
	data map[string]string

	subMu  sync.Mutex
	subs   map[int]*memSubscriber
	nextID int
}

type memSubscriber struct {
	origin string
	queue  chan Change
	done   chan struct{}
	once   sync.Once
}

// NewMemoryStore constructs an empty shared store.
func NewMemoryStore(log *slog.Logger) *MemoryStore {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryStore{
		log:  log,
		data: make(map[string]string),
		subs: make(map[int]*memSubscriber),
	}
}

// Tab returns a Storage view whose writes are announced with origin.
func (s *MemoryStore) Tab(origin string) Storage {
	return &memoryTab{store: s, origin: origin}
}

// Snapshot returns a copy of the stored pairs.
func (s *MemoryStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Subscribe implements ChangeFeed.
func (s *MemoryStore) Subscribe(ctx context.Context, origin string, fn func(Change)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &memSubscriber{
		origin: origin,
		queue:  make(chan Change, memSubscriberQueue),
		done:   make(chan struct{}),
	}

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.subMu.Unlock()

	unsubscribe := func() {
		sub.once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(sub.done)
		})
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				unsubscribe()
				return
			case <-sub.done:
				return
			case c := <-sub.queue:
				fn(c)
			}
		}
	}()

	return unsubscribe, nil
}

func (s *MemoryStore) get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemoryStore) set(origin string, values map[string]string) {
	s.mu.Lock()
	for k, v := range values {
		s.data[k] = v
	}
	s.mu.Unlock()

	for _, k := range sortedKeys(values) {
		s.notify(Change{Key: k, Origin: origin})
	}
}

func (s *MemoryStore) remove(origin string, keys []string) {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.notify(Change{Key: k, Origin: origin})
	}
}

// notify never blocks the writer. Dropping on a full queue is safe because
// every queued change re-reads the store when handled.
func (s *MemoryStore) notify(c Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, sub := range s.subs {
		if sub.origin == c.Origin {
			continue
		}
		select {
		case sub.queue <- c:
		default:
			s.log.Warn("websession.memory.notify.drop", "key", c.Key, "origin", c.Origin)
		}
	}
}

type memoryTab struct {
	store  *MemoryStore
	origin string
}

func (t *memoryTab) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := t.store.get(key)
	return v, ok, nil
}

func (t *memoryTab) Set(ctx context.Context, values map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.store.set(t.origin, values)
	return nil
}

func (t *memoryTab) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.store.remove(t.origin, keys)
	return nil
}
