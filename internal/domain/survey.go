// Package domain contains core business types and interfaces.
//
// This file defines the survey catalog entry as it arrives from the static
// catalog, the per-user view derived from it, and completion records.
package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// SurveyStatus is the per-user state of a catalog entry.
type SurveyStatus string

const (
	SurveyStatusAvailable SurveyStatus = "available"
	SurveyStatusCompleted SurveyStatus = "completed"
)

// RetakeBlockedReason is shown on entries the user already completed.
const RetakeBlockedReason = "Already completed. Retakes are not allowed."

// Catalog is the decoded static catalog document.
type Catalog struct {
	Surveys []CatalogEntry `json:"surveys"`
}

// CatalogEntry is one survey as published in the catalog. The catalog is
// hand-edited, so the question collection comes in three shapes: an "items"
// list, a "questions" list, or a bare numeric "questions" count.
type CatalogEntry struct {
	ID          string
	Name        string
	Title       string
	Description string
	Premium     bool
	Payout      *float64
	Currency    string

	Items         []json.RawMessage // nil unless "items" is a list
	QuestionList  []json.RawMessage // nil unless "questions" is a list
	QuestionCount *float64          // set when "questions" is a finite number
}

// UnmarshalJSON accepts the loosely typed catalog fields.
func (e *CatalogEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		Name        json.RawMessage `json:"name"`
		Title       json.RawMessage `json:"title"`
		Description json.RawMessage `json:"description"`
		Premium     json.RawMessage `json:"premium"`
		Payout      json.RawMessage `json:"payout"`
		Currency    json.RawMessage `json:"currency"`
		Items       json.RawMessage `json:"items"`
		Questions   json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = CatalogEntry{
		ID:          scalarString(raw.ID),
		Name:        stringValue(raw.Name),
		Title:       stringValue(raw.Title),
		Description: stringValue(raw.Description),
		Premium:     truthy(raw.Premium),
		Payout:      numberValue(raw.Payout),
		Currency:    stringValue(raw.Currency),
		Items:       listValue(raw.Items),
	}

	if list := listValue(raw.Questions); list != nil {
		e.QuestionList = list
	} else if n := strictNumber(raw.Questions); n != nil {
		e.QuestionCount = n
	}
	return nil
}

// SurveyView is a catalog entry annotated with the viewer's completion state.
type SurveyView struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	Name                string            `json:"name,omitempty"`
	Description         string            `json:"description"`
	Premium             bool              `json:"premium"`
	Reward              *float64          `json:"reward"`
	Currency            string            `json:"currency"`
	Questions           []json.RawMessage `json:"questions"`
	QuestionsCount      int               `json:"questionsCount"`
	Completed           bool              `json:"completed"`
	Status              SurveyStatus      `json:"status"`
	Locked              bool              `json:"locked"`
	RetakeBlockedReason *string           `json:"retakeBlockedReason"`
}

// CompletionRecord is what gets stored when a user finishes a survey.
type CompletionRecord struct {
	Answers     map[string]any `json:"answers"`
	CompletedAt string         `json:"completedAt"` // RFC 3339
}

// =============================================================================
// Loose JSON helpers
// =============================================================================

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// scalarString renders a string or number id as a string.
func scalarString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.TrimSpace(string(raw))
}

func stringValue(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// truthy follows loose truthiness: false, 0, "" and null are false.
func truthy(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// numberValue accepts a JSON number or a numeric string.
func numberValue(raw json.RawMessage) *float64 {
	if n := strictNumber(raw); n != nil {
		return n
	}
	s := stringValue(raw)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// strictNumber accepts only a finite JSON number.
func strictNumber(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func listValue(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	if list == nil {
		list = []json.RawMessage{}
	}
	return list
}
