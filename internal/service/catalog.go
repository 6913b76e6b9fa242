package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/surveypro/internal/catalog"
	"github.com/DukeRupert/surveypro/internal/domain"
)

// CatalogLoader is the subset of catalog.Loader the services need.
type CatalogLoader interface {
	Load(ctx context.Context) (*domain.Catalog, error)
}

// =============================================================================
// Interface Definition
// =============================================================================

// SurveyService exposes the catalog as seen by one user.
type SurveyService interface {
	// ListSurveysForUser returns every catalog entry, in catalog order,
	// annotated with the origin user's completion state.
	ListSurveysForUser(ctx context.Context, origin string) ([]domain.SurveyView, error)

	// GetSurvey returns one annotated entry, or ENOTFOUND.
	GetSurvey(ctx context.Context, origin, surveyID string) (*domain.SurveyView, error)
}

// =============================================================================
// Implementation
// =============================================================================

type surveyService struct {
	loader      CatalogLoader
	profiles    ProfileService
	completions CompletionService
	logger      *slog.Logger
}

// NewSurveyService creates a new SurveyService.
func NewSurveyService(loader CatalogLoader, profiles ProfileService, completions CompletionService, logger *slog.Logger) SurveyService {
	return &surveyService{
		loader:      loader,
		profiles:    profiles,
		completions: completions,
		logger:      logger,
	}
}

func (s *surveyService) ListSurveysForUser(ctx context.Context, origin string) ([]domain.SurveyView, error) {
	user, err := s.profiles.GetUser(ctx, origin)
	if err != nil {
		return nil, err
	}
	completed, err := s.completions.GetCompletedIDs(ctx, origin, user.ID)
	if err != nil {
		return nil, err
	}
	cat, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.NormalizeAll(cat.Surveys, completed), nil
}

func (s *surveyService) GetSurvey(ctx context.Context, origin, surveyID string) (*domain.SurveyView, error) {
	const op = "survey.get"

	surveys, err := s.ListSurveysForUser(ctx, origin)
	if err != nil {
		return nil, err
	}
	for i := range surveys {
		if surveys[i].ID == surveyID {
			return &surveys[i], nil
		}
	}
	return nil, domain.NotFound(op, "Survey", surveyID)
}
