package kv

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, _ := newTestRedisStore(t)
		return s
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.Set(context.Background(), "origin-1", KeyUser, []byte(`{"id":"u"}`)))

	assert.Equal(t, `{"id":"u"}`, mr.HGet("test:origin-1:app:user", "v"))
	assert.Equal(t, "1", mr.HGet("test:origin-1:app:user", "ver"))
}

func TestRedisStore_UpdateRetriesAfterConcurrentWrite(t *testing.T) {
	s, mr := newTestRedisStore(t)
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "o1", KeyVersion, []byte("1")))

	calls := 0
	err := s.Update(ctx, "o1", KeyVersion, func(old []byte, exists bool) ([]byte, bool, error) {
		calls++
		if calls == 1 {
			// another writer slips in between the read and the write
			require.NoError(t, other.HSet(ctx, "test:o1:surveys:version", "v", "99").Err())
		}
		return []byte(string(old) + "+"), true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	v, _, err := s.Get(ctx, "o1", KeyVersion)
	require.NoError(t, err)
	assert.Equal(t, "99+", string(v))
}

func TestRedisStore_UpdateGivesUpWithConflict(t *testing.T) {
	s, mr := newTestRedisStore(t)
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()
	ctx := context.Background()

	calls := 0
	err := s.Update(ctx, "o1", KeyVersion, func([]byte, bool) ([]byte, bool, error) {
		calls++
		require.NoError(t, other.HIncrBy(ctx, "test:o1:surveys:version", "ver", 1).Err())
		return []byte("mine"), true, nil
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, MaxUpdateAttempts, calls)
}
