package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/kv"
	"github.com/DukeRupert/surveypro/internal/metrics"
)

// =============================================================================
// Interface Definition
// =============================================================================

// CompletionService records finished surveys and the per-day counters that
// the quota is checked against.
type CompletionService interface {
	// HasCompleted reports whether userID finished surveyID.
	HasCompleted(ctx context.Context, origin, userID, surveyID string) (bool, error)

	// GetCompletedIDs returns the ids of every survey userID finished.
	GetCompletedIDs(ctx context.Context, origin, userID string) (map[string]struct{}, error)

	// MarkCompleted records the completion, bumps today's counter and the
	// version marker. It is a no-op returning false if the survey was
	// already completed. Once the record is written it reports true even if
	// the counter or the marker could not be updated.
	MarkCompleted(ctx context.Context, origin, userID, surveyID string, answers map[string]any) (bool, error)

	// ResetCompletions forgets every completion of userID. Daily counters
	// are kept, so a reset does not restore today's quota.
	ResetCompletions(ctx context.Context, origin, userID string) error

	// TodayCount returns how many surveys userID completed today, pruning
	// counters for any other day.
	TodayCount(ctx context.Context, origin, userID string) (int, error)
}

// completedAtLayout is RFC 3339 in UTC with millisecond precision.
const completedAtLayout = "2006-01-02T15:04:05.000Z"

// completionsDoc is the stored completions value: userID -> surveyID -> record.
// Records stay raw so entries written by other versions survive rewrites.
type completionsDoc map[string]map[string]json.RawMessage

// dailyDoc is the stored daily counter value: userID -> "YYYY-MM-DD" -> count.
type dailyDoc map[string]map[string]int

// =============================================================================
// Implementation
// =============================================================================

// counterRetries bounds the retries of the daily counter after a completion
// has been recorded.
const counterRetries = 3

type completionService struct {
	store             kv.Store
	loc               *time.Location
	logger            *slog.Logger
	now               func() time.Time
	counterRetryDelay time.Duration
}

// NewCompletionService creates a new CompletionService. Days roll over at
// midnight in loc (UTC when nil).
func NewCompletionService(store kv.Store, loc *time.Location, logger *slog.Logger) CompletionService {
	if loc == nil {
		loc = time.UTC
	}
	return &completionService{
		store:             store,
		loc:               loc,
		logger:            logger,
		now:               time.Now,
		counterRetryDelay: 20 * time.Millisecond,
	}
}

func (s *completionService) today() string {
	return domain.DayKey(s.now(), s.loc)
}

func (s *completionService) readCompletions(ctx context.Context, op, origin string) (completionsDoc, error) {
	raw, found, err := s.store.Get(ctx, origin, kv.KeyCompletions)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read completions")
	}
	d := kv.Decode(raw, found, completionsDoc{})
	s.noteDefaulted(d.Outcome, kv.KeyCompletions, origin)
	return d.Value, nil
}

func (s *completionService) HasCompleted(ctx context.Context, origin, userID, surveyID string) (bool, error) {
	const op = "completion.has_completed"

	all, err := s.readCompletions(ctx, op, origin)
	if err != nil {
		return false, err
	}
	_, ok := all[userID][surveyID]
	return ok, nil
}

func (s *completionService) GetCompletedIDs(ctx context.Context, origin, userID string) (map[string]struct{}, error) {
	const op = "completion.get_completed_ids"

	all, err := s.readCompletions(ctx, op, origin)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(all[userID]))
	for id := range all[userID] {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *completionService) MarkCompleted(ctx context.Context, origin, userID, surveyID string, answers map[string]any) (bool, error) {
	const op = "completion.mark_completed"

	if answers == nil {
		answers = map[string]any{}
	}
	now := s.now()
	record, err := json.Marshal(domain.CompletionRecord{
		Answers:     answers,
		CompletedAt: now.UTC().Format(completedAtLayout),
	})
	if err != nil {
		return false, domain.Invalid(op, "answers could not be encoded")
	}

	added := false
	err = s.store.Update(ctx, origin, kv.KeyCompletions, func(old []byte, exists bool) ([]byte, bool, error) {
		added = false
		all := kv.Decode(old, exists, completionsDoc{}).Value
		if _, done := all[userID][surveyID]; done {
			return nil, false, nil
		}
		if all[userID] == nil {
			all[userID] = map[string]json.RawMessage{}
		}
		all[userID][surveyID] = record
		added = true
		next, err := kv.Encode(all)
		return next, true, err
	})
	if err != nil {
		return false, translateStoreError(err, op, "failed to record completion")
	}
	if !added {
		s.logger.Info("survey already completed, ignoring", "origin", origin, "user_id", userID, "survey_id", surveyID)
		return false, nil
	}

	// The record is written, so the survey counts as completed from here on.
	// Counter and marker failures are logged, not returned.
	today := domain.DayKey(now, s.loc)
	if err := s.countCompletion(ctx, op, origin, userID, today); err != nil {
		s.logger.Warn("completion recorded but daily counter not updated",
			"origin", origin, "user_id", userID, "survey_id", surveyID, "error", err)
	}
	if err := s.bumpVersion(ctx, origin, now); err != nil {
		s.logger.Warn("completion recorded but version marker not updated",
			"origin", origin, "user_id", userID, "survey_id", surveyID, "error", err)
	}

	s.logger.Info("survey completed", "origin", origin, "user_id", userID, "survey_id", surveyID, "day", today)
	return true, nil
}

func (s *completionService) ResetCompletions(ctx context.Context, origin, userID string) error {
	const op = "completion.reset"

	removed := false
	err := s.store.Update(ctx, origin, kv.KeyCompletions, func(old []byte, exists bool) ([]byte, bool, error) {
		removed = false
		all := kv.Decode(old, exists, completionsDoc{}).Value
		if _, ok := all[userID]; !ok {
			return nil, false, nil
		}
		delete(all, userID)
		removed = true
		next, err := kv.Encode(all)
		return next, true, err
	})
	if err != nil {
		return translateStoreError(err, op, "failed to reset completions")
	}
	if !removed {
		return nil
	}

	if err := s.bumpVersion(ctx, origin, s.now()); err != nil {
		return domain.Internal(err, op, "failed to update version marker")
	}
	s.logger.Info("completions reset", "origin", origin, "user_id", userID)
	return nil
}

func (s *completionService) TodayCount(ctx context.Context, origin, userID string) (int, error) {
	const op = "completion.today_count"
	return s.updateDaily(ctx, op, origin, userID, s.today(), 0)
}

// countCompletion adds one to today's counter, retrying transient store
// failures a few times.
func (s *completionService) countCompletion(ctx context.Context, op, origin, userID, today string) error {
	backoff := retry.WithMaxRetries(counterRetries, retry.NewExponential(s.counterRetryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := s.updateDaily(ctx, op, origin, userID, today, 1); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// updateDaily drops the user's counters for any day other than today,
// adds delta to today's count and returns the result. Other users'
// counters are left alone.
func (s *completionService) updateDaily(ctx context.Context, op, origin, userID, today string, delta int) (int, error) {
	count := 0
	outcome := kv.OutcomeOK
	err := s.store.Update(ctx, origin, kv.KeyDailyCompletions, func(old []byte, exists bool) ([]byte, bool, error) {
		d := kv.Decode(old, exists, dailyDoc{})
		outcome = d.Outcome
		all := d.Value

		counters := all[userID]
		changed := d.Outcome == kv.OutcomeDefaulted
		for day := range counters {
			if day != today {
				delete(counters, day)
				changed = true
			}
		}
		count = counters[today] + delta

		if delta != 0 {
			if counters == nil {
				counters = map[string]int{}
			}
			counters[today] = count
			all[userID] = counters
			changed = true
		}
		if !changed {
			return nil, false, nil
		}
		next, err := kv.Encode(all)
		return next, true, err
	})
	if err != nil {
		return 0, translateStoreError(err, op, "failed to update daily completions")
	}
	s.noteDefaulted(outcome, kv.KeyDailyCompletions, origin)
	return count, nil
}

func (s *completionService) bumpVersion(ctx context.Context, origin string, now time.Time) error {
	return s.store.Set(ctx, origin, kv.KeyVersion, []byte(strconv.FormatInt(now.UnixMilli(), 10)))
}

func (s *completionService) noteDefaulted(outcome kv.Outcome, key, origin string) {
	if outcome != kv.OutcomeDefaulted {
		return
	}
	metrics.StoreDecodeDefaults.WithLabelValues(key).Inc()
	s.logger.Warn("stored value was malformed, using default", "origin", origin, "key", key, "outcome", outcome.String())
}
