package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/kv"
)

func TestProfileService_GetUser_CreatesDefaultOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.profiles.GetUserResult(ctx, testOrigin)
	require.NoError(t, err)
	assert.Equal(t, kv.OutcomeMissing, d.Outcome)
	assert.Equal(t, "user-1", d.Value.ID)
	assert.Equal(t, "Guest", d.Value.Name)
	assert.Equal(t, domain.TierFree, d.Value.Tier)
	assert.Equal(t, domain.PlanFree, d.Value.Plan)
	assert.Zero(t, d.Value.Balance)
	assert.Equal(t, f.clock.Now().UnixMilli(), d.Value.CreatedAt)

	again, err := f.profiles.GetUser(ctx, testOrigin)
	require.NoError(t, err)
	assert.Equal(t, "user-1", again.ID, "second read returns the persisted profile")

	raw, found, err := f.store.Get(ctx, testOrigin, kv.KeyUser)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, string(raw), `"id":"user-1"`)
}

func TestProfileService_GetUser_OriginsAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.profiles.GetUser(ctx, "origin-a")
	require.NoError(t, err)
	b, err := f.profiles.GetUser(ctx, "origin-b")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestProfileService_GetUser_ReplacesMalformedProfile(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "{oops"},
		{name: "json null", raw: "null"},
		{name: "no id", raw: `{"name":"Nobody"}`},
		{name: "wrong shape", raw: `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.store.Set(ctx, testOrigin, kv.KeyUser, []byte(tt.raw)))

			d, err := f.profiles.GetUserResult(ctx, testOrigin)
			require.NoError(t, err)
			assert.Equal(t, kv.OutcomeDefaulted, d.Outcome)
			assert.Equal(t, "user-1", d.Value.ID)

			d, err = f.profiles.GetUserResult(ctx, testOrigin)
			require.NoError(t, err)
			assert.Equal(t, kv.OutcomeOK, d.Outcome, "the default was written back")
		})
	}
}

func TestProfileService_GetUser_KeepsIdentityWithMistypedFields(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		tier     domain.Tier
		balance  float64
		userName string
	}{
		{
			name:     "balance stored as a string",
			raw:      `{"id":"kept-1","tier":"gold","plan":"free","balance":"150"}`,
			tier:     domain.TierGold,
			balance:  150,
			userName: "Guest",
		},
		{
			name:     "unparseable balance",
			raw:      `{"id":"kept-1","name":"Ann","tier":"silver","balance":"lots"}`,
			tier:     domain.TierSilver,
			balance:  0,
			userName: "Ann",
		},
		{
			name:     "mistyped tier and name",
			raw:      `{"id":"kept-1","name":42,"tier":["gold"],"balance":80}`,
			tier:     domain.TierFree,
			balance:  80,
			userName: "Guest",
		},
		{
			name:     "numeric id",
			raw:      `{"id":7,"tier":"gold"}`,
			tier:     domain.TierGold,
			userName: "Guest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.store.Set(ctx, testOrigin, kv.KeyUser, []byte(tt.raw)))

			d, err := f.profiles.GetUserResult(ctx, testOrigin)
			require.NoError(t, err)
			assert.Equal(t, kv.OutcomeOK, d.Outcome)
			assert.NotEqual(t, "user-1", d.Value.ID, "no fresh profile was created")
			assert.Equal(t, tt.tier, d.Value.Tier)
			assert.Equal(t, tt.balance, d.Value.Balance)
			assert.Equal(t, tt.userName, d.Value.Name)
		})
	}
}

func TestProfileService_GetUser_MistypedFieldsKeepCompletions(t *testing.T) {
	f := newFixture(t, entry("a", false, 100))
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, testOrigin, kv.KeyUser,
		[]byte(`{"id":"kept-1","tier":"gold","plan":"free","balance":"150"}`)))

	_, err := f.completions.MarkCompleted(ctx, testOrigin, "kept-1", "a", nil)
	require.NoError(t, err)

	user, err := f.profiles.GetUser(ctx, testOrigin)
	require.NoError(t, err)
	require.Equal(t, "kept-1", user.ID)

	err = f.quota.EnsureNotCompleted(ctx, testOrigin, "a")
	assert.True(t, domain.IsAlreadyCompleted(err), "completions stay attached to the kept id")

	credited, err := f.profiles.Credit(ctx, testOrigin, 50)
	require.NoError(t, err)
	assert.Equal(t, "kept-1", credited.ID)
	assert.Equal(t, float64(200), credited.Balance)
}

func TestProfileService_SetUser_MergesPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.profiles.GetUser(ctx, testOrigin)
	require.NoError(t, err)

	name := "Akinyi"
	updated, err := f.profiles.SetUser(ctx, testOrigin, domain.UserPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Akinyi", updated.Name)
	assert.Equal(t, domain.TierFree, updated.Tier)

	stored, err := f.profiles.GetUser(ctx, testOrigin)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestProfileService_Credit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.profiles.Credit(ctx, testOrigin, 150)
	require.NoError(t, err)
	u, err := f.profiles.Credit(ctx, testOrigin, 50.5)
	require.NoError(t, err)

	assert.Equal(t, 200.5, u.Balance)
}
