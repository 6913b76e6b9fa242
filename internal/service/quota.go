package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/metrics"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService decides whether a survey may be started under the daily
// quota of the user's tier.
type QuotaService interface {
	// GetUsage returns today's usage for the origin's user.
	GetUsage(ctx context.Context, origin string) (*domain.QuotaUsage, error)

	// GetRemainingSurveys returns how many more surveys userID may complete
	// today under the tier of the origin's user.
	GetRemainingSurveys(ctx context.Context, origin, userID string) (int, error)

	// CanStartSurvey reports whether the origin's user may start surveyID:
	// not already completed and still under today's limit.
	CanStartSurvey(ctx context.Context, origin, surveyID string) (bool, error)

	// EnsureNotCompleted returns nil if the survey may be started,
	// an ECONFLICT error if it was already completed, or an EQUOTA error
	// if today's quota is used up.
	EnsureNotCompleted(ctx context.Context, origin, surveyID string) error
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	profiles    ProfileService
	completions CompletionService
	logger      *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(profiles ProfileService, completions CompletionService, logger *slog.Logger) QuotaService {
	return &quotaService{
		profiles:    profiles,
		completions: completions,
		logger:      logger,
	}
}

func (s *quotaService) GetUsage(ctx context.Context, origin string) (*domain.QuotaUsage, error) {
	user, err := s.profiles.GetUser(ctx, origin)
	if err != nil {
		return nil, err
	}
	return s.usage(ctx, origin, user.ID, user.Tier)
}

func (s *quotaService) GetRemainingSurveys(ctx context.Context, origin, userID string) (int, error) {
	user, err := s.profiles.GetUser(ctx, origin)
	if err != nil {
		return 0, err
	}
	usage, err := s.usage(ctx, origin, userID, user.Tier)
	if err != nil {
		return 0, err
	}
	return usage.Remaining, nil
}

func (s *quotaService) CanStartSurvey(ctx context.Context, origin, surveyID string) (bool, error) {
	err := s.check(ctx, origin, surveyID, false)
	if domain.IsAlreadyCompleted(err) || domain.IsQuotaExceeded(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *quotaService) EnsureNotCompleted(ctx context.Context, origin, surveyID string) error {
	return s.check(ctx, origin, surveyID, true)
}

// check applies the retake rule before the daily limit.
func (s *quotaService) check(ctx context.Context, origin, surveyID string, record bool) error {
	const op = "quota.ensure_not_completed"

	user, err := s.profiles.GetUser(ctx, origin)
	if err != nil {
		return err
	}
	limit := domain.DailyLimit(user.Tier)

	done, err := s.completions.HasCompleted(ctx, origin, user.ID, surveyID)
	if err != nil {
		return err
	}
	if done {
		if record {
			metrics.QuotaDenials.WithLabelValues("already_completed").Inc()
			s.logger.Info("survey retake refused", "origin", origin, "user_id", user.ID, "survey_id", surveyID)
		}
		return domain.AlreadyCompleted(op, surveyID, limit)
	}

	used, err := s.completions.TodayCount(ctx, origin, user.ID)
	if err != nil {
		return err
	}
	if used >= limit {
		if record {
			metrics.QuotaDenials.WithLabelValues("daily_limit").Inc()
			s.logger.Info("daily survey quota exceeded",
				"origin", origin,
				"user_id", user.ID,
				"tier", user.Tier,
				"used", used,
				"limit", limit,
			)
		}
		return domain.QuotaExceeded(op, limit)
	}
	return nil
}

func (s *quotaService) usage(ctx context.Context, origin, userID string, tier domain.Tier) (*domain.QuotaUsage, error) {
	used, err := s.completions.TodayCount(ctx, origin, userID)
	if err != nil {
		return nil, err
	}
	limit := domain.DailyLimit(tier)
	return &domain.QuotaUsage{
		Tier:      tier,
		Used:      used,
		Limit:     limit,
		Remaining: domain.Remaining(limit, used),
	}, nil
}
