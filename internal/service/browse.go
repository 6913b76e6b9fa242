package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/metrics"
)

// StartOutcome is the result of trying to start a survey.
type StartOutcome string

const (
	StartProceed          StartOutcome = "proceed"
	StartAlreadyCompleted StartOutcome = "already_completed"
	StartDailyLimit       StartOutcome = "daily_limit"
	StartPremiumUpsell    StartOutcome = "premium_upsell"
)

// StartDecision tells the client what to do after a start attempt: follow
// Redirect, or show Dialog.
type StartDecision struct {
	Outcome  StartOutcome       `json:"outcome"`
	Redirect string             `json:"redirect,omitempty"`
	Dialog   *domain.Dialog     `json:"dialog,omitempty"`
	Survey   *domain.SurveyView `json:"survey,omitempty"`
}

// Overview is everything the survey listing page shows.
type Overview struct {
	User      domain.User
	Package   domain.TierPackage
	Surveys   []domain.SurveyView
	Remaining int
	Limit     int

	// Badge is the quota status above the list.
	Badge string

	// EmptyMessage is set when there are no surveys to list.
	EmptyMessage string

	// CatalogError is set when the catalog could not be loaded; the rest of
	// the page still renders.
	CatalogError string
}

// CompletionResult is returned after a survey is submitted.
type CompletionResult struct {
	User      domain.User `json:"user"`
	Recorded  bool        `json:"recorded"`
	Credited  float64     `json:"credited"`
	Remaining int         `json:"remaining"`
}

// =============================================================================
// Interface Definition
// =============================================================================

// BrowseService drives the survey listing flow.
type BrowseService interface {
	// Overview assembles the listing page for the origin's user.
	Overview(ctx context.Context, origin string) (*Overview, error)

	// Start decides whether surveyID may be opened. Eligibility problems
	// come back as a dialog, never as an error.
	Start(ctx context.Context, origin, surveyID string) (*StartDecision, error)

	// Complete records a submitted survey and credits its payout.
	Complete(ctx context.Context, origin, surveyID string, answers map[string]any) (*CompletionResult, error)

	// Reset forgets the user's completions.
	Reset(ctx context.Context, origin string) error

	// Upgrade switches the user to tier. No payment is involved.
	Upgrade(ctx context.Context, origin string, tier string) (domain.User, error)
}

// =============================================================================
// Implementation
// =============================================================================

type browseService struct {
	profiles    ProfileService
	completions CompletionService
	quota       QuotaService
	surveys     SurveyService
	logger      *slog.Logger
}

// NewBrowseService creates a new BrowseService.
func NewBrowseService(
	profiles ProfileService,
	completions CompletionService,
	quota QuotaService,
	surveys SurveyService,
	logger *slog.Logger,
) BrowseService {
	return &browseService{
		profiles:    profiles,
		completions: completions,
		quota:       quota,
		surveys:     surveys,
		logger:      logger,
	}
}

func (s *browseService) Overview(ctx context.Context, origin string) (*Overview, error) {
	user, err := s.profiles.GetUser(ctx, origin)
	if err != nil {
		return nil, err
	}
	remaining, err := s.quota.GetRemainingSurveys(ctx, origin, user.ID)
	if err != nil {
		return nil, err
	}

	ov := &Overview{
		User:      user,
		Package:   domain.GetTierPackage(user.Tier),
		Remaining: remaining,
		Limit:     domain.DailyLimit(user.Tier),
		Badge:     domain.RemainingBadge(remaining, user.Tier),
		Surveys:   []domain.SurveyView{},
	}

	surveys, err := s.surveys.ListSurveysForUser(ctx, origin)
	switch {
	case domain.ErrorCode(err) == domain.EUNAVAILABLE:
		ov.CatalogError = domain.ErrorMessage(err)
		return ov, nil
	case err != nil:
		return nil, err
	}

	ov.Surveys = surveys
	if len(surveys) == 0 {
		ov.EmptyMessage = domain.EmptyCatalogMessage(remaining, user.Tier)
	}
	return ov, nil
}

func (s *browseService) Start(ctx context.Context, origin, surveyID string) (*StartDecision, error) {
	survey, err := s.surveys.GetSurvey(ctx, origin, surveyID)
	if err != nil {
		return nil, err
	}
	user, err := s.profiles.GetUser(ctx, origin)
	if err != nil {
		return nil, err
	}

	decision := &StartDecision{Survey: survey}
	err = s.quota.EnsureNotCompleted(ctx, origin, surveyID)
	switch {
	case domain.IsAlreadyCompleted(err):
		decision.Outcome = StartAlreadyCompleted
		decision.Dialog = domain.AlreadyCompletedDialog(domain.ErrorMessage(err))
	case domain.IsQuotaExceeded(err):
		decision.Outcome = StartDailyLimit
		decision.Dialog = domain.DailyLimitDialog(user.Tier)
	case err != nil:
		return nil, err
	case survey.Premium && !user.IsPremium():
		decision.Outcome = StartPremiumUpsell
		decision.Dialog = domain.PremiumUpsellDialog()
	default:
		decision.Outcome = StartProceed
		decision.Redirect = "/surveys/" + surveyID
	}

	metrics.SurveyStartDecisions.WithLabelValues(string(decision.Outcome)).Inc()
	s.logger.Debug("survey start decided",
		"origin", origin,
		"user_id", user.ID,
		"survey_id", surveyID,
		"outcome", decision.Outcome,
	)
	return decision, nil
}

func (s *browseService) Complete(ctx context.Context, origin, surveyID string, answers map[string]any) (*CompletionResult, error) {
	const op = "browse.complete"

	survey, err := s.surveys.GetSurvey(ctx, origin, surveyID)
	if err != nil {
		return nil, err
	}
	user, err := s.profiles.GetUser(ctx, origin)
	if err != nil {
		return nil, err
	}
	if survey.Premium && !user.IsPremium() {
		return nil, domain.Invalid(op, "This is a premium survey. Upgrade to access it.")
	}
	if err := s.quota.EnsureNotCompleted(ctx, origin, surveyID); err != nil {
		return nil, err
	}

	recorded, err := s.completions.MarkCompleted(ctx, origin, user.ID, surveyID, answers)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{User: user, Recorded: recorded}
	if recorded {
		metrics.SurveysCompleted.WithLabelValues(string(user.Tier)).Inc()
		if survey.Reward != nil && *survey.Reward > 0 {
			credited, err := s.profiles.Credit(ctx, origin, *survey.Reward)
			if err != nil {
				return nil, err
			}
			result.User = credited
			result.Credited = *survey.Reward
		}
	}

	result.Remaining, err = s.quota.GetRemainingSurveys(ctx, origin, user.ID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *browseService) Reset(ctx context.Context, origin string) error {
	user, err := s.profiles.GetUser(ctx, origin)
	if err != nil {
		return err
	}
	return s.completions.ResetCompletions(ctx, origin, user.ID)
}

func (s *browseService) Upgrade(ctx context.Context, origin string, tier string) (domain.User, error) {
	const op = "browse.upgrade"

	t, ok := domain.ParseTier(tier)
	if !ok {
		return domain.User{}, domain.Invalid(op, "Unknown package: "+tier)
	}
	user, err := s.profiles.SetUser(ctx, origin, domain.UserPatch{Tier: &t})
	if err != nil {
		return domain.User{}, err
	}

	metrics.TierChanges.WithLabelValues(string(t)).Inc()
	s.logger.Info("package switched", "origin", origin, "user_id", user.ID, "tier", t)
	return user, nil
}
