// Package surveys renders the survey list and survey pages.
package surveys

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/templ/shared"
)

// ListPage renders the survey list.
func ListPage(data ListPageData) templ.Component {
	return shared.Layout(data.Layout, listBody(data))
}

func listBody(data ListPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := shared.NewWriter(w)

		h.Open("div", "id", ListRegionID, "class", "space-y-4")
		h.Open("div", "class", "flex items-center justify-between")
		h.Elem("h1", "Available Surveys", "class", "text-2xl font-bold")
		badgeClass := "rounded-full bg-emerald-100 px-3 py-1 text-xs font-semibold text-emerald-800"
		if data.Remaining == 0 {
			badgeClass = shared.Cx(badgeClass, "bg-amber-100 text-amber-800")
		}
		h.Elem("span", data.Badge, "class", badgeClass)
		h.Close("div")

		h.Elem("p", Banner, "class", "rounded-lg bg-sky-50 px-4 py-2 text-sm text-sky-800")

		switch {
		case data.CatalogError != "":
			h.Elem("div", data.CatalogError, "class", "rounded-lg border border-red-200 bg-red-50 px-4 py-3 text-red-800", "role", "alert")
		case len(data.Surveys) == 0:
			h.Elem("p", data.EmptyMessage, "class", "py-12 text-center text-slate-500")
		default:
			h.Open("ul", "class", "grid gap-4 sm:grid-cols-2")
			for _, s := range data.Surveys {
				h.Render(ctx, surveyCard(s))
			}
			h.Close("ul")
		}
		h.Close("div")

		if data.Dialog != nil {
			h.Render(ctx, dialog(*data.Dialog))
		}
		h.Raw("<script>" + listRefresher + "</script>")
		return h.Err()
	})
}

// ListRegionID marks the part of the list page that is refetched when the
// client's stored state changes. Dialogs sit outside it.
const ListRegionID = "survey-list"

// listRefresher swaps in a freshly rendered list region after storage
// changes. Bursts are coalesced, hidden tabs catch up when shown again, and
// a tab that is submitting a form ignores the changes it caused.
const listRefresher = `(function(){
  var region = document.getElementById("` + ListRegionID + `");
  if (!region || !window.fetch) return;
  var leaving = false, pending = false, timer = null;
  document.addEventListener("submit", function(){ leaving = true; });
  function refresh(){
    if (leaving) return;
    if (document.hidden) { pending = true; return; }
    pending = false;
    fetch(window.location.pathname, {headers: {"Accept": "text/html"}, credentials: "same-origin"})
      .then(function(r){ return r.ok ? r.text() : null; })
      .then(function(html){
        if (!html || leaving) return;
        var next = new DOMParser().parseFromString(html, "text/html").getElementById("` + ListRegionID + `");
        if (next) region.innerHTML = next.innerHTML;
      })
      .catch(function(){});
  }
  document.addEventListener("` + shared.StorageEventName + `", function(){
    clearTimeout(timer);
    timer = setTimeout(refresh, 250);
  });
  document.addEventListener("visibilitychange", function(){
    if (!document.hidden && pending) refresh();
  });
})();`

func surveyCard(s domain.SurveyView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := shared.NewWriter(w)
		cardClass := "rounded-xl border border-slate-200 bg-white p-4 shadow-sm"
		if s.Locked {
			cardClass = shared.Cx(cardClass, "opacity-60")
		}
		h.Open("li", "class", cardClass, "data-survey-id", s.ID)

		h.Open("div", "class", "flex items-start justify-between gap-2")
		h.Elem("h2", s.Title, "class", "font-semibold")
		if s.Premium {
			h.Elem("span", "Premium", "class", "rounded bg-amber-100 px-2 py-0.5 text-xs text-amber-800")
		}
		h.Close("div")

		if s.Description != "" {
			h.Elem("p", s.Description, "class", "mt-1 text-sm text-slate-600")
		}
		h.Open("p", "class", "mt-2 text-sm text-slate-500")
		h.Text(fmt.Sprintf("%d questions", s.QuestionsCount))
		if s.Reward != nil {
			h.Text(" · " + RewardText(*s.Reward, s.Currency))
		}
		h.Close("p")

		if s.Completed {
			h.Elem("p", *s.RetakeBlockedReason, "class", "mt-3 text-sm font-medium text-slate-500")
		} else {
			h.Open("form", "method", "post", "action", "/surveys/"+s.ID+"/start", "class", "mt-3")
			h.CSRFField(ctx)
			h.Elem("button", "Start Survey", "type", "submit", "class", shared.ButtonClass(shared.ButtonPrimary, "w-full"))
			h.Close("form")
		}

		h.Close("li")
		return h.Err()
	})
}

func dialog(d domain.Dialog) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := shared.NewWriter(w)
		h.Open("div", "class", "fixed inset-0 z-40 flex items-center justify-center bg-black/40", "role", "dialog", "data-dialog", d.Kind)
		h.Open("div", "class", "w-full max-w-md space-y-3 rounded-2xl bg-white p-6 shadow-xl")
		h.Elem("h2", d.Title, "class", "text-lg font-bold")
		h.Elem("p", d.Message, "class", "text-sm text-slate-700")
		for _, line := range d.Details {
			h.Elem("p", line, "class", "text-sm text-slate-600")
		}
		if len(d.Benefits) > 0 {
			h.Open("ul", "class", "list-disc space-y-1 pl-5 text-sm")
			for _, b := range d.Benefits {
				h.Elem("li", b)
			}
			h.Close("ul")
		}

		h.Open("div", "class", "flex justify-end gap-2 pt-2")
		if d.CancelText != "" {
			h.Open("a", "href", "/surveys", "class", shared.ButtonClass(shared.ButtonSecondary)).Text(d.CancelText).Close("a")
		}
		target := d.ConfirmURL
		if target == "" {
			target = "/surveys"
		}
		h.Open("a", "href", target, "class", shared.ButtonClass(shared.ButtonPrimary)).Text(d.ConfirmText).Close("a")
		h.Close("div")

		h.Close("div")
		h.Close("div")
		return h.Err()
	})
}
