package surveys

import (
	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/templ/shared"
)

// Banner is the notice above the survey list.
const Banner = "Surveys are filtered based on your location and plan type"

// ListPageData contains data for the survey list page.
type ListPageData struct {
	Layout       shared.LayoutData
	Surveys      []domain.SurveyView
	Badge        string
	Remaining    int
	EmptyMessage string
	CatalogError string

	// Dialog is shown over the list after a refused start.
	Dialog *domain.Dialog
}

// DetailPageData contains data for a single survey page.
type DetailPageData struct {
	Layout shared.LayoutData
	Survey domain.SurveyView
}
