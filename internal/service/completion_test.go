package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/kv"
)

func TestCompletionService_MarkCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.completions.MarkCompleted(ctx, testOrigin, "u-1", "s-1", map[string]any{"q1": "yes"})
	require.NoError(t, err)
	assert.True(t, added)

	done, err := f.completions.HasCompleted(ctx, testOrigin, "u-1", "s-1")
	require.NoError(t, err)
	assert.True(t, done)

	raw, found, err := f.store.Get(ctx, testOrigin, kv.KeyCompletions)
	require.NoError(t, err)
	require.True(t, found)
	var doc map[string]map[string]domain.CompletionRecord
	require.NoError(t, json.Unmarshal(raw, &doc))
	rec := doc["u-1"]["s-1"]
	assert.Equal(t, "yes", rec.Answers["q1"])
	assert.Equal(t, "2026-10-19T09:00:00.000Z", rec.CompletedAt)

	version, found, err := f.store.Get(ctx, testOrigin, kv.KeyVersion)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1792400400000", string(version))

	count, err := f.completions.TodayCount(ctx, testOrigin, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCompletionService_MarkCompleted_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.completions.MarkCompleted(ctx, testOrigin, "u-1", "s-1", map[string]any{"a": 1})
	require.NoError(t, err)
	require.True(t, added)

	f.clock.Set(f.clock.Now().Add(time.Minute))
	added, err = f.completions.MarkCompleted(ctx, testOrigin, "u-1", "s-1", map[string]any{"a": 2})
	require.NoError(t, err)
	assert.False(t, added)

	count, err := f.completions.TodayCount(ctx, testOrigin, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "a repeat does not count against the quota")

	raw, _, err := f.store.Get(ctx, testOrigin, kv.KeyCompletions)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "09:00:00.000Z", "the first record is kept")
}

func TestCompletionService_GetCompletedIDs_PerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"s-1", "s-2"} {
		_, err := f.completions.MarkCompleted(ctx, testOrigin, "u-1", id, nil)
		require.NoError(t, err)
	}
	_, err := f.completions.MarkCompleted(ctx, testOrigin, "u-2", "s-3", nil)
	require.NoError(t, err)

	ids, err := f.completions.GetCompletedIDs(ctx, testOrigin, "u-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"s-1": {}, "s-2": {}}, ids)

	ids, err = f.completions.GetCompletedIDs(ctx, testOrigin, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCompletionService_DailyRollover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.completions.MarkCompleted(ctx, testOrigin, "u-1", "s-1", nil)
	require.NoError(t, err)
	_, err = f.completions.MarkCompleted(ctx, testOrigin, "u-2", "s-1", nil)
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 10, 20, 0, 0, 1, 0, time.UTC))

	count, err := f.completions.TodayCount(ctx, testOrigin, "u-1")
	require.NoError(t, err)
	assert.Zero(t, count, "a new day starts from zero")

	raw, _, err := f.store.Get(ctx, testOrigin, kv.KeyDailyCompletions)
	require.NoError(t, err)
	var doc map[string]map[string]int
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.NotContains(t, doc["u-1"], "2026-10-19", "yesterday is pruned for the reading user")
	assert.Equal(t, 1, doc["u-2"]["2026-10-19"], "other users are left alone")

	done, err := f.completions.HasCompleted(ctx, testOrigin, "u-1", "s-1")
	require.NoError(t, err)
	assert.True(t, done, "completions outlive the day")
}

func TestCompletionService_DayFollowsLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completions.loc = time.FixedZone("EAT", 3*60*60)

	// 22:00 UTC is already the next day in Nairobi.
	f.clock.Set(time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC))
	_, err := f.completions.MarkCompleted(ctx, testOrigin, "u-1", "s-1", nil)
	require.NoError(t, err)

	raw, _, err := f.store.Get(ctx, testOrigin, kv.KeyDailyCompletions)
	require.NoError(t, err)
	assert.JSONEq(t, `{"u-1":{"2026-10-20":1}}`, string(raw))
}

func TestCompletionService_ResetCompletions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.completions.MarkCompleted(ctx, testOrigin, "u-1", "s-1", nil)
	require.NoError(t, err)
	_, err = f.completions.MarkCompleted(ctx, testOrigin, "u-2", "s-1", nil)
	require.NoError(t, err)

	require.NoError(t, f.completions.ResetCompletions(ctx, testOrigin, "u-1"))
	require.NoError(t, f.completions.ResetCompletions(ctx, testOrigin, "u-1"), "reset is idempotent")

	ids, err := f.completions.GetCompletedIDs(ctx, testOrigin, "u-1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	done, err := f.completions.HasCompleted(ctx, testOrigin, "u-2", "s-1")
	require.NoError(t, err)
	assert.True(t, done, "other users keep their completions")

	count, err := f.completions.TodayCount(ctx, testOrigin, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "reset does not give back today's quota")
}

func TestCompletionService_MalformedValuesDegrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, testOrigin, kv.KeyCompletions, []byte("not json")))
	require.NoError(t, f.store.Set(ctx, testOrigin, kv.KeyDailyCompletions, []byte(`"nope"`)))

	ids, err := f.completions.GetCompletedIDs(ctx, testOrigin, "u-1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	count, err := f.completions.TodayCount(ctx, testOrigin, "u-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	added, err := f.completions.MarkCompleted(ctx, testOrigin, "u-1", "s-1", nil)
	require.NoError(t, err)
	assert.True(t, added)
}

// dailyFailStore fails the next failures updates of the daily counter after
// each completion record is written.
type dailyFailStore struct {
	kv.Store
	failures int

	mu      sync.Mutex
	pending int
	failed  int
}

func (s *dailyFailStore) Update(ctx context.Context, origin, key string, fn kv.UpdateFunc) error {
	s.mu.Lock()
	if key == kv.KeyDailyCompletions && s.pending > 0 {
		s.pending--
		s.failed++
		s.mu.Unlock()
		return errors.New("store unavailable")
	}
	s.mu.Unlock()

	if err := s.Store.Update(ctx, origin, key, fn); err != nil {
		return err
	}
	if key == kv.KeyCompletions {
		s.mu.Lock()
		s.pending = s.failures
		s.mu.Unlock()
	}
	return nil
}

func withDailyFailures(f *fixture, failures int) *dailyFailStore {
	store := &dailyFailStore{Store: f.store, failures: failures}
	f.completions.store = store
	f.completions.counterRetryDelay = time.Millisecond
	return store
}

func TestCompletionService_MarkCompleted_RetriesDailyCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := withDailyFailures(f, 2)

	added, err := f.completions.MarkCompleted(ctx, testOrigin, "u-1", "s-1", nil)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 2, store.failed)

	count, err := f.completions.TodayCount(ctx, testOrigin, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCompletionService_MarkCompleted_CounterFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := withDailyFailures(f, counterRetries+1)

	added, err := f.completions.MarkCompleted(ctx, testOrigin, "u-1", "s-1", nil)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, counterRetries+1, store.failed)

	done, err := f.completions.HasCompleted(ctx, testOrigin, "u-1", "s-1")
	require.NoError(t, err)
	assert.True(t, done)

	_, found, err := f.store.Get(ctx, testOrigin, kv.KeyVersion)
	require.NoError(t, err)
	assert.True(t, found, "version marker still bumped")
}
