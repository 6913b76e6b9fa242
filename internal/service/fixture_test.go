package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/kv"
)

const testOrigin = "origin-test"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source shared by the services under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// stubLoader serves a fixed catalog, or err when set.
type stubLoader struct {
	catalog *domain.Catalog
	err     error
	calls   int
}

func (l *stubLoader) Load(ctx context.Context) (*domain.Catalog, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.catalog, nil
}

type fixture struct {
	store       *kv.MemoryStore
	clock       *fakeClock
	loader      *stubLoader
	profiles    *profileService
	completions *completionService
	quota       QuotaService
	surveys     SurveyService
	browse      BrowseService
}

func newFixture(t *testing.T, entries ...domain.CatalogEntry) *fixture {
	t.Helper()

	store := kv.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	clock := &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	logger := testLogger()

	profiles := NewProfileService(store, logger).(*profileService)
	profiles.now = clock.Now
	ids := 0
	profiles.newID = func() string {
		ids++
		return fmt.Sprintf("user-%d", ids)
	}

	completions := NewCompletionService(store, time.UTC, logger).(*completionService)
	completions.now = clock.Now

	loader := &stubLoader{catalog: &domain.Catalog{Surveys: entries}}
	quota := NewQuotaService(profiles, completions, logger)
	surveys := NewSurveyService(loader, profiles, completions, logger)

	return &fixture{
		store:       store,
		clock:       clock,
		loader:      loader,
		profiles:    profiles,
		completions: completions,
		quota:       quota,
		surveys:     surveys,
		browse:      NewBrowseService(profiles, completions, quota, surveys, logger),
	}
}

// setTier switches the fixture user's tier.
func (f *fixture) setTier(t *testing.T, tier domain.Tier) domain.User {
	t.Helper()
	u, err := f.profiles.SetUser(context.Background(), testOrigin, domain.UserPatch{Tier: &tier})
	if err != nil {
		t.Fatalf("set tier: %v", err)
	}
	return u
}

func entry(id string, premium bool, payout float64) domain.CatalogEntry {
	return domain.CatalogEntry{ID: id, Name: "Survey " + id, Premium: premium, Payout: &payout}
}
