// Package packages renders the package (tier) selection page.
package packages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/templ/shared"
)

// Options lists every tier in upgrade order, marking current.
func Options(current domain.Tier) []Option {
	opts := make([]Option, 0, len(domain.Tiers))
	for _, t := range domain.Tiers {
		opts = append(opts, Option{
			Tier:       t,
			Title:      domain.TierTitle(t),
			DailyLimit: domain.DailyLimit(t),
			Benefits:   benefitsOf(t),
			Current:    t == current,
		})
	}
	return opts
}

// benefitsOf returns what upgrading into t offers. Package benefits are
// listed on the tier below.
func benefitsOf(t domain.Tier) []string {
	for _, pkg := range domain.TierPackages {
		if pkg.NextTier == t {
			return pkg.Benefits
		}
	}
	return nil
}

// Page renders the package list.
func Page(data PageData) templ.Component {
	return shared.Layout(data.Layout, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := shared.NewWriter(w)
		h.Elem("h1", "Packages", "class", "text-2xl font-bold")
		h.Open("ul", "class", "grid gap-4 sm:grid-cols-2")
		for _, o := range data.Options {
			cardClass := "space-y-2 rounded-xl border border-slate-200 bg-white p-4"
			if o.Current {
				cardClass = shared.Cx(cardClass, "border-emerald-500 ring-2 ring-emerald-200")
			}
			h.Open("li", "class", cardClass, "data-tier", string(o.Tier))
			h.Elem("h2", o.Title, "class", "text-lg font-semibold")
			h.Elem("p", fmt.Sprintf("%d surveys per day", o.DailyLimit), "class", "text-sm text-slate-600")
			if len(o.Benefits) > 0 {
				h.Open("ul", "class", "list-disc pl-5 text-sm")
				for _, b := range o.Benefits {
					h.Elem("li", b)
				}
				h.Close("ul")
			}
			if o.Current {
				h.Elem("span", "Current plan", "class", shared.ButtonClass(shared.ButtonDisabled, "w-full"))
			} else {
				h.Open("form", "method", "post", "action", "/packages/"+string(o.Tier))
				h.CSRFField(ctx)
				h.Elem("button", "Switch to "+o.Title, "type", "submit", "class", shared.ButtonClass(shared.ButtonPrimary, "w-full"))
				h.Close("form")
			}
			h.Close("li")
		}
		h.Close("ul")
		return h.Err()
	}))
}
