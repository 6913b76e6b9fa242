package catalog

import (
	"encoding/json"
	"strings"

	"github.com/DukeRupert/surveypro/internal/domain"
)

// DefaultCurrency is used for entries that name no currency.
const DefaultCurrency = "ksh"

// Normalize maps a raw catalog entry onto the view shown to a user.
// completed is whether that user already finished the survey.
func Normalize(e domain.CatalogEntry, completed bool) domain.SurveyView {
	questions, count := questionsOf(e)

	title := e.Name
	if title == "" {
		title = e.Title
	}
	if title == "" {
		title = "Survey"
	}

	currency := strings.ToLower(e.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}

	v := domain.SurveyView{
		ID:             e.ID,
		Title:          title,
		Name:           e.Name,
		Description:    e.Description,
		Premium:        e.Premium,
		Reward:         e.Payout,
		Currency:       currency,
		Questions:      questions,
		QuestionsCount: count,
		Completed:      completed,
		Status:         domain.SurveyStatusAvailable,
		Locked:         completed,
	}
	if completed {
		reason := domain.RetakeBlockedReason
		v.Status = domain.SurveyStatusCompleted
		v.RetakeBlockedReason = &reason
	}
	return v
}

// NormalizeAll maps every entry, keeping catalog order.
func NormalizeAll(entries []domain.CatalogEntry, completed map[string]struct{}) []domain.SurveyView {
	out := make([]domain.SurveyView, 0, len(entries))
	for _, e := range entries {
		_, done := completed[e.ID]
		out = append(out, Normalize(e, done))
	}
	return out
}

// questionsOf prefers "items", then a "questions" list, then a numeric
// "questions" count with no question bodies.
func questionsOf(e domain.CatalogEntry) ([]json.RawMessage, int) {
	switch {
	case e.Items != nil:
		return e.Items, len(e.Items)
	case e.QuestionList != nil:
		return e.QuestionList, len(e.QuestionList)
	case e.QuestionCount != nil:
		return []json.RawMessage{}, int(*e.QuestionCount)
	default:
		return []json.RawMessage{}, 0
	}
}
