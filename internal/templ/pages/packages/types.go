package packages

import (
	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/templ/shared"
)

// PageData contains data for the package selection page.
type PageData struct {
	Layout  shared.LayoutData
	Current domain.Tier
	Options []Option
}

// Option is one selectable package.
type Option struct {
	Tier       domain.Tier
	Title      string
	DailyLimit int
	Benefits   []string
	Current    bool
}
