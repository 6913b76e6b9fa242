package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	redisValueField   = "v"
	redisVersionField = "ver"
)

// errNoWrite aborts a WATCH transaction when the UpdateFunc declined to write.
var errNoWrite = errors.New("kv: no write")

// RedisStore keeps each entry in a hash at <prefix>:<origin>:<key> holding
// the value and a version counter. Changes are published on
// <prefix>:changes.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore constructs a RedisStore. An empty prefix defaults to "surveypro".
func NewRedisStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "surveypro"
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisStore) entryKey(origin, key string) string {
	return s.prefix + ":" + origin + ":" + key
}

func (s *RedisStore) changesChannel() string {
	return s.prefix + ":changes"
}

func (s *RedisStore) Get(ctx context.Context, origin, key string) ([]byte, bool, error) {
	v, err := s.client.HGet(ctx, s.entryKey(origin, key), redisValueField).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, origin, key string, value []byte) error {
	k := s.entryKey(origin, key)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, redisValueField, value)
		p.HIncrBy(ctx, k, redisVersionField, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("kv redis set %s: %w", key, err)
	}
	s.publish(ctx, Change{Origin: origin, Key: key})
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, origin, key string) error {
	n, err := s.client.Del(ctx, s.entryKey(origin, key)).Result()
	if err != nil {
		return fmt.Errorf("kv redis delete %s: %w", key, err)
	}
	if n > 0 {
		s.publish(ctx, Change{Origin: origin, Key: key})
	}
	return nil
}

// Update uses WATCH/MULTI/EXEC; a concurrent write to the hash aborts the
// transaction and the read is retried.
func (s *RedisStore) Update(ctx context.Context, origin, key string, fn UpdateFunc) error {
	k := s.entryKey(origin, key)

	for attempt := 1; attempt <= MaxUpdateAttempts; attempt++ {
		changed := false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			old, err := tx.HGet(ctx, k, redisValueField).Bytes()
			exists := true
			if errors.Is(err, redis.Nil) {
				old, exists = nil, false
			} else if err != nil {
				return err
			}

			next, write, err := fn(old, exists)
			if err != nil {
				return err
			}
			if !write || (next == nil && !exists) {
				return errNoWrite
			}

			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				if next == nil {
					p.Del(ctx, k)
				} else {
					p.HSet(ctx, k, redisValueField, next)
					p.HIncrBy(ctx, k, redisVersionField, 1)
				}
				return nil
			})
			if err == nil {
				changed = true
			}
			return err
		}, k)

		switch {
		case errors.Is(err, errNoWrite):
			return nil
		case errors.Is(err, redis.TxFailedErr):
			s.logger.Debug("kv update conflict, retrying", "key", key, "attempt", attempt)
			continue
		case err != nil:
			return fmt.Errorf("kv redis update %s: %w", key, err)
		}

		if changed {
			s.publish(ctx, Change{Origin: origin, Key: key})
		}
		return nil
	}
	return ErrConflict
}

// Watch subscribes to the change channel. The subscription is confirmed
// before Watch returns, so no change published afterwards is missed.
func (s *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	pubsub := s.client.Subscribe(ctx, s.changesChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("kv redis subscribe: %w", err)
	}

	out := make(chan Change, watchBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					s.logger.Warn("dropping malformed change notification", "payload", msg.Payload, "error", err)
					continue
				}
				select {
				case out <- c:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) publish(ctx context.Context, c Change) {
	payload, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.changesChannel(), payload).Err(); err != nil {
		// The write already succeeded; only other tabs miss the refresh.
		s.logger.Warn("failed to publish change", "key", c.Key, "error", err)
	}
}
