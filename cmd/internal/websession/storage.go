package websession

import (
	"context"
	"log/slog"
	"sort"
)

// Storage is the persistent key-value store shared by all tabs of a profile.
//
// Set writes every pair in values as one operation from the caller's point of
// view. Remove is idempotent: removing a missing key is not an error.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, values map[string]string) error
	Remove(ctx context.Context, keys ...string) error
}

// Change describes a write to one key, made by the tab identified by Origin.
// An empty Key means the whole store was cleared.
type Change struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

// ChangeFeed delivers changes made by other tabs.
//
// Subscribe must not deliver changes whose Origin equals origin. Delivery is
// asynchronous and ordered per subscriber. The returned func unsubscribes and
// is safe to call more than once.
type ChangeFeed interface {
	Subscribe(ctx context.Context, origin string, fn func(Change)) (unsubscribe func(), err error)
}

// Announcer publishes local writes to other tabs.
type Announcer interface {
	Announce(ctx context.Context, c Change) error
}

// Announcing wraps a store that has no change notifications of its own so that
// every successful write is announced with the given origin. Announce failures
// are logged and never fail the write.
func Announcing(st Storage, a Announcer, origin string, log *slog.Logger) Storage {
	if log == nil {
		log = slog.Default()
	}
	return &announcingStore{Storage: st, announcer: a, origin: origin, log: log}
}

type announcingStore struct {
	Storage
	announcer Announcer
	origin    string
	log       *slog.Logger
}

func (s *announcingStore) Set(ctx context.Context, values map[string]string) error {
	if err := s.Storage.Set(ctx, values); err != nil {
		return err
	}
	s.announce(ctx, sortedKeys(values))
	return nil
}

func (s *announcingStore) Remove(ctx context.Context, keys ...string) error {
	if err := s.Storage.Remove(ctx, keys...); err != nil {
		return err
	}
	s.announce(ctx, keys)
	return nil
}

func (s *announcingStore) announce(ctx context.Context, keys []string) {
	if s.announcer == nil {
		return
	}
	for _, k := range keys {
		if err := s.announcer.Announce(ctx, Change{Key: k, Origin: s.origin}); err != nil {
			s.log.Warn("websession.announce.fail", "key", k, "err", err)
		}
	}
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
