package packages

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/templ/shared"
)

func TestOptions(t *testing.T) {
	opts := Options(domain.TierSilver)
	require.Len(t, opts, 4)

	assert.Equal(t, domain.TierFree, opts[0].Tier)
	assert.Empty(t, opts[0].Benefits)
	assert.Equal(t, 1, opts[0].DailyLimit)

	assert.True(t, opts[1].Current)
	assert.Contains(t, opts[1].Benefits, "5 surveys/day")

	assert.Equal(t, "Platinum", opts[3].Title)
	assert.Contains(t, opts[3].Benefits, "20 surveys/day")
}

func TestPage_Render(t *testing.T) {
	var buf bytes.Buffer
	err := Page(PageData{
		Layout:  shared.LayoutData{Title: "Packages"},
		Current: domain.TierGold,
		Options: Options(domain.TierGold),
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, `action="/packages/platinum"`)
	assert.NotContains(t, html, `action="/packages/gold"`, "no switch button for the current plan")
	assert.Contains(t, html, "Current plan")
}
