// Package handler contains HTTP handlers for the survey server.
//
// This file implements the survey listing flow: the list page, starting and
// submitting a survey, resetting completions, and the JSON API used by
// scripts and the browser.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/DukeRupert/surveypro/internal/auth"
	"github.com/DukeRupert/surveypro/internal/csrf"
	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/service"
	"github.com/DukeRupert/surveypro/internal/templ/pages/surveys"
	"github.com/DukeRupert/surveypro/internal/templ/shared"
)

// maxAnswersBytes bounds a submitted answers document.
const maxAnswersBytes = 64 << 10

// =============================================================================
// Response Types
// =============================================================================

// OverviewResponse is the JSON form of the survey list.
type OverviewResponse struct {
	User         domain.User         `json:"user"`
	Surveys      []domain.SurveyView `json:"surveys"`
	Remaining    int                 `json:"remaining"`
	Limit        int                 `json:"limit"`
	Badge        string              `json:"badge"`
	EmptyMessage string              `json:"emptyMessage,omitempty"`
	CatalogError string              `json:"catalogError,omitempty"`
}

// MeResponse is returned by /api/me.
type MeResponse struct {
	User  domain.User `json:"user"`
	Usage UsageJSON   `json:"usage"`
}

// UsageJSON is today's quota usage.
type UsageJSON struct {
	Tier      domain.Tier `json:"tier"`
	Used      int         `json:"used"`
	Limit     int         `json:"limit"`
	Remaining int         `json:"remaining"`
}

// =============================================================================
// Handler Configuration
// =============================================================================

// SurveyHandler handles survey-related HTTP requests.
type SurveyHandler struct {
	browse   service.BrowseService
	surveys  service.SurveyService
	profiles service.ProfileService
	quota    service.QuotaService
	logger   *slog.Logger
}

// NewSurveyHandler creates a new SurveyHandler.
func NewSurveyHandler(
	browse service.BrowseService,
	surveys service.SurveyService,
	profiles service.ProfileService,
	quota service.QuotaService,
	logger *slog.Logger,
) *SurveyHandler {
	return &SurveyHandler{
		browse:   browse,
		surveys:  surveys,
		profiles: profiles,
		quota:    quota,
		logger:   logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers all survey routes with the provided mux.
//
// Every route requires an origin. Mutating routes are additionally wrapped
// by limit.
//
// Routes:
// - GET   /surveys                -> Index
// - GET   /surveys/{id}           -> Show
// - POST  /surveys/{id}/start     -> Start
// - POST  /surveys/{id}/complete  -> Complete
// - POST  /surveys/reset          -> Reset
// - GET   /api/surveys            -> APIList
// - GET   /api/me                 -> Me
// - PATCH /api/me                 -> UpdateMe
func (h *SurveyHandler) RegisterRoutes(mux *http.ServeMux, requireOrigin, limit func(http.Handler) http.Handler) {
	mux.Handle("GET /surveys", requireOrigin(http.HandlerFunc(h.Index)))
	mux.Handle("GET /surveys/{id}", requireOrigin(http.HandlerFunc(h.Show)))
	mux.Handle("POST /surveys/{id}/start", requireOrigin(limit(http.HandlerFunc(h.Start))))
	mux.Handle("POST /surveys/{id}/complete", requireOrigin(limit(http.HandlerFunc(h.Complete))))
	mux.Handle("POST /surveys/reset", requireOrigin(limit(http.HandlerFunc(h.Reset))))
	mux.Handle("GET /api/surveys", requireOrigin(http.HandlerFunc(h.APIList)))
	mux.Handle("GET /api/me", requireOrigin(http.HandlerFunc(h.Me)))
	mux.Handle("PATCH /api/me", requireOrigin(limit(http.HandlerFunc(h.UpdateMe))))
}

// =============================================================================
// GET /surveys - List Surveys
// =============================================================================

// Index lists the catalog with the user's completion state and quota.
func (h *SurveyHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, http.StatusOK, flashFromQuery(r), nil)
}

// renderList renders the list page, or its JSON form, optionally with a
// flash or a dialog on top.
func (h *SurveyHandler) renderList(w http.ResponseWriter, r *http.Request, status int, flash *shared.Flash, dialog *domain.Dialog) {
	origin := auth.GetOriginFromRequest(r)

	ov, err := h.browse.Overview(r.Context(), origin)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if acceptsJSON(r) {
		writeJSON(w, status, overviewToJSON(ov))
		return
	}

	data := surveys.ListPageData{
		Layout: shared.LayoutData{
			Title: "Surveys",
			Nav:   navFor(ov.User),
			Flash: flash,
		},
		Surveys:      ov.Surveys,
		Badge:        ov.Badge,
		Remaining:    ov.Remaining,
		EmptyMessage: ov.EmptyMessage,
		CatalogError: ov.CatalogError,
		Dialog:       dialog,
	}
	h.render(w, r, status, surveys.ListPage(data))
}

// =============================================================================
// GET /surveys/{id} - Show Survey
// =============================================================================

// Show renders the survey form. A survey the user may not start shows the
// list with the matching dialog instead.
func (h *SurveyHandler) Show(w http.ResponseWriter, r *http.Request) {
	origin := auth.GetOriginFromRequest(r)

	decision, err := h.browse.Start(r.Context(), origin, r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if acceptsJSON(r) {
		writeJSON(w, http.StatusOK, decision)
		return
	}
	if decision.Outcome != service.StartProceed {
		h.renderList(w, r, http.StatusOK, nil, decision.Dialog)
		return
	}

	user, err := h.profiles.GetUser(r.Context(), origin)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	data := surveys.DetailPageData{
		Layout: shared.LayoutData{Title: decision.Survey.Title, Nav: navFor(user)},
		Survey: *decision.Survey,
	}
	h.render(w, r, http.StatusOK, surveys.DetailPage(data))
}

// =============================================================================
// POST /surveys/{id}/start - Start Survey
// =============================================================================

// Start decides whether the survey may be opened. Browsers are redirected
// to the survey or shown a dialog; API clients get the decision.
func (h *SurveyHandler) Start(w http.ResponseWriter, r *http.Request) {
	origin := auth.GetOriginFromRequest(r)

	decision, err := h.browse.Start(r.Context(), origin, r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if acceptsJSON(r) {
		writeJSON(w, http.StatusOK, decision)
		return
	}
	if decision.Outcome == service.StartProceed {
		http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
		return
	}
	h.renderList(w, r, http.StatusOK, nil, decision.Dialog)
}

// =============================================================================
// POST /surveys/{id}/complete - Submit Survey
// =============================================================================

// Complete records a submitted survey.
func (h *SurveyHandler) Complete(w http.ResponseWriter, r *http.Request) {
	origin := auth.GetOriginFromRequest(r)
	surveyID := r.PathValue("id")

	answers, err := readAnswers(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.browse.Complete(r.Context(), origin, surveyID, answers)
	if err != nil {
		if acceptsJSON(r) {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		switch domain.ErrorCode(err) {
		case domain.ECONFLICT, domain.EQUOTA, domain.EINVALID:
			h.renderList(w, r, ErrorCodeToHTTPStatus(domain.ErrorCode(err)),
				&shared.Flash{Type: shared.FlashError, Message: domain.ErrorMessage(err)}, nil)
		default:
			ErrorResponse(w, r, h.logger, err)
		}
		return
	}

	if acceptsJSON(r) {
		writeJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/surveys?completed="+surveyID, http.StatusSeeOther)
}

// readAnswers accepts a JSON object body or form fields.
func readAnswers(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	const op = "survey.read_answers"

	r.Body = http.MaxBytesReader(w, r.Body, maxAnswersBytes)

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Answers map[string]any `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, domain.Invalid(op, "Answers must be a JSON object")
		}
		return body.Answers, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, domain.Invalid(op, "Invalid form data")
	}
	answers := make(map[string]any, len(r.PostForm))
	for name, values := range r.PostForm {
		if name == csrf.FormFieldName {
			continue
		}
		if len(values) == 1 {
			answers[name] = values[0]
		} else {
			answers[name] = values
		}
	}
	return answers, nil
}

// =============================================================================
// POST /surveys/reset - Reset Completions
// =============================================================================

// Reset forgets the user's completions. Today's quota is not restored.
func (h *SurveyHandler) Reset(w http.ResponseWriter, r *http.Request) {
	origin := auth.GetOriginFromRequest(r)

	if err := h.browse.Reset(r.Context(), origin); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if acceptsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/surveys?reset=1", http.StatusSeeOther)
}

// =============================================================================
// JSON API
// =============================================================================

// APIList returns the annotated catalog.
func (h *SurveyHandler) APIList(w http.ResponseWriter, r *http.Request) {
	origin := auth.GetOriginFromRequest(r)

	list, err := h.surveys.ListSurveysForUser(r.Context(), origin)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"surveys": list})
}

// Me returns the profile and today's usage.
func (h *SurveyHandler) Me(w http.ResponseWriter, r *http.Request) {
	origin := auth.GetOriginFromRequest(r)

	user, err := h.profiles.GetUser(r.Context(), origin)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	usage, err := h.quota.GetUsage(r.Context(), origin)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: user, Usage: usageToJSON(usage)})
}

// UpdateMe applies a partial profile update.
func (h *SurveyHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	const op = "survey.update_me"
	origin := auth.GetOriginFromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxAnswersBytes)
	var patch domain.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Body must be a JSON object"))
		return
	}
	if err := validatePatch(op, patch); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.profiles.SetUser(r.Context(), origin, patch)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// validatePatch rejects tiers outside the known set and negative balances.
func validatePatch(op string, patch domain.UserPatch) error {
	if patch.Tier != nil {
		if _, ok := domain.ParseTier(string(*patch.Tier)); !ok {
			return domain.NewValidationError(op, "tier", "must be one of free, silver, gold, platinum")
		}
	}
	if patch.Balance != nil && *patch.Balance < 0 {
		return domain.NewValidationError(op, "balance", "must not be negative")
	}
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

func overviewToJSON(ov *service.Overview) OverviewResponse {
	return OverviewResponse{
		User:         ov.User,
		Surveys:      ov.Surveys,
		Remaining:    ov.Remaining,
		Limit:        ov.Limit,
		Badge:        ov.Badge,
		EmptyMessage: ov.EmptyMessage,
		CatalogError: ov.CatalogError,
	}
}

func usageToJSON(u *domain.QuotaUsage) UsageJSON {
	return UsageJSON{Tier: u.Tier, Used: u.Used, Limit: u.Limit, Remaining: u.Remaining}
}

// navFor builds the header summary for user.
func navFor(user domain.User) *shared.Nav {
	return &shared.Nav{
		Name:    user.DisplayName(),
		Tier:    domain.TierTitle(domain.GetTierPackage(user.Tier).Tier),
		Balance: surveys.RewardText(user.Balance, "ksh"),
	}
}

// flashFromQuery turns the markers left by post-redirect-get into a flash.
func flashFromQuery(r *http.Request) *shared.Flash {
	q := r.URL.Query()
	switch {
	case q.Get("completed") != "":
		return &shared.Flash{Type: shared.FlashSuccess, Message: "Thanks! Your answers were recorded."}
	case q.Get("reset") != "":
		return &shared.Flash{Type: shared.FlashInfo, Message: "Your completed surveys were reset. Today's limit still applies."}
	case q.Get("switched") != "":
		if t, ok := domain.ParseTier(q.Get("switched")); ok {
			return &shared.Flash{Type: shared.FlashSuccess, Message: "You are now on the " + domain.TierTitle(t) + " package."}
		}
	}
	return nil
}

func (h *SurveyHandler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	renderComponent(w, r, h.logger, status, c)
}
