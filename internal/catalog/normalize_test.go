package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/surveypro/internal/domain"
)

func entry(t *testing.T, doc string) domain.CatalogEntry {
	t.Helper()
	var e domain.CatalogEntry
	require.NoError(t, json.Unmarshal([]byte(doc), &e))
	return e
}

func TestNormalize_QuestionCount(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantCount int
		wantLen   int
	}{
		{name: "items list", doc: `{"id":"1","items":[1,2,3]}`, wantCount: 3, wantLen: 3},
		{name: "questions list", doc: `{"id":"1","questions":["a","b"]}`, wantCount: 2, wantLen: 2},
		{name: "items wins over questions", doc: `{"id":"1","items":[1],"questions":[1,2,3,4]}`, wantCount: 1, wantLen: 1},
		{name: "numeric questions", doc: `{"id":"1","questions":7}`, wantCount: 7, wantLen: 0},
		{name: "string questions", doc: `{"id":"1","questions":"7"}`, wantCount: 0, wantLen: 0},
		{name: "nothing", doc: `{"id":"1"}`, wantCount: 0, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Normalize(entry(t, tt.doc), false)
			assert.Equal(t, tt.wantCount, v.QuestionsCount)
			assert.Len(t, v.Questions, tt.wantLen)
			assert.NotNil(t, v.Questions, "questions is always a list")
		})
	}
}

func TestNormalize_Title(t *testing.T) {
	assert.Equal(t, "Name", Normalize(entry(t, `{"id":"1","name":"Name","title":"Title"}`), false).Title)
	assert.Equal(t, "Title", Normalize(entry(t, `{"id":"1","title":"Title"}`), false).Title)
	assert.Equal(t, "Survey", Normalize(entry(t, `{"id":"1"}`), false).Title)
	assert.Equal(t, "Survey", Normalize(entry(t, `{"id":"1","name":""}`), false).Title)
}

func TestNormalize_Fields(t *testing.T) {
	v := Normalize(entry(t, `{"id":"s1","name":"Brand","premium":true,"payout":150,"currency":"KES"}`), false)

	assert.Equal(t, "s1", v.ID)
	assert.Equal(t, "", v.Description)
	assert.True(t, v.Premium)
	require.NotNil(t, v.Reward)
	assert.Equal(t, float64(150), *v.Reward)
	assert.Equal(t, "kes", v.Currency)
	assert.False(t, v.Completed)
	assert.False(t, v.Locked)
	assert.Equal(t, domain.SurveyStatusAvailable, v.Status)
	assert.Nil(t, v.RetakeBlockedReason)

	assert.Equal(t, "ksh", Normalize(entry(t, `{"id":"1"}`), false).Currency)
	assert.Nil(t, Normalize(entry(t, `{"id":"1"}`), false).Reward)
}

func TestNormalize_Completed(t *testing.T) {
	v := Normalize(entry(t, `{"id":"s1"}`), true)

	assert.True(t, v.Completed)
	assert.True(t, v.Locked)
	assert.Equal(t, domain.SurveyStatusCompleted, v.Status)
	require.NotNil(t, v.RetakeBlockedReason)
	assert.Equal(t, "Already completed. Retakes are not allowed.", *v.RetakeBlockedReason)
}

func TestNormalizeAll_KeepsOrderAndMarksCompleted(t *testing.T) {
	var cat domain.Catalog
	require.NoError(t, json.Unmarshal([]byte(`{"surveys":[{"id":"b"},{"id":"a"},{"id":3}]}`), &cat))

	views := NormalizeAll(cat.Surveys, map[string]struct{}{"a": {}, "3": {}})

	require.Len(t, views, 3)
	assert.Equal(t, []string{"b", "a", "3"}, []string{views[0].ID, views[1].ID, views[2].ID})
	assert.False(t, views[0].Completed)
	assert.True(t, views[1].Completed)
	assert.True(t, views[2].Completed)
}

func TestSurveyView_JSONShape(t *testing.T) {
	v := Normalize(entry(t, `{"id":"1","name":"N","questions":3}`), false)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id":"1","title":"N","name":"N","description":"","premium":false,
		"reward":null,"currency":"ksh","questions":[],"questionsCount":3,
		"completed":false,"status":"available","locked":false,"retakeBlockedReason":null
	}`, string(b))
}
