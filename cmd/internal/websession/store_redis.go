package websession

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "unileap:storage"

// RedisStore keeps a profile's storage in Redis so that tabs in different
// processes or hosts share it. Writes and their change notifications are sent
// in one MULTI/EXEC; notifications travel over pub/sub on "<prefix>:changes".
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	origin string
	log    *slog.Logger
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// Prefix namespaces keys, e.g. "unileap:storage:<profile>".
	Prefix string
	// Origin identifies the tab that writes through this store.
	Origin string
	Log    *slog.Logger
}

// NewRedisStore wraps rdb. The client is owned by the caller.
func NewRedisStore(rdb redis.UniversalClient, opts RedisOptions) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("websession: nil redis client")
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{rdb: rdb, prefix: prefix, origin: opts.Origin, log: log}, nil
}

func (s *RedisStore) key(k string) string { return s.prefix + ":" + k }

func (s *RedisStore) channel() string { return s.prefix + ":changes" }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, values map[string]string) error {
	keys := sortedKeys(values)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Set(ctx, s.key(k), values[k], 0)
		}
		for _, k := range keys {
			s.publish(ctx, pipe, k)
		}
		return nil
	})
	return err
}

func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, full...)
		for _, k := range keys {
			s.publish(ctx, pipe, k)
		}
		return nil
	})
	return err
}

func (s *RedisStore) publish(ctx context.Context, pipe redis.Pipeliner, key string) {
	b, err := json.Marshal(Change{Key: key, Origin: s.origin})
	if err != nil {
		return
	}
	pipe.Publish(ctx, s.channel(), string(b))
}

// Subscribe implements ChangeFeed over Redis pub/sub.
func (s *RedisStore) Subscribe(ctx context.Context, origin string, fn func(Change)) (func(), error) {
	ps := s.rdb.Subscribe(ctx, s.channel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	msgs := ps.Channel()

	done := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				unsubscribe()
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					s.log.Warn("websession.redis.change.bad_payload", "err", err)
					continue
				}
				if c.Origin == origin {
					continue
				}
				fn(c)
			}
		}
	}()

	return unsubscribe, nil
}
