package shared

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Nav is the user summary shown in the header.
type Nav struct {
	Name    string
	Tier    string
	Balance string
}

// LayoutData is what every page passes to Layout.
type LayoutData struct {
	Title string
	Nav   *Nav
	Flash *Flash
}

// Layout wraps body in the page shell: header, flash, toast area and the
// event stream client.
func Layout(data LayoutData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := NewWriter(w)
		h.Raw("<!DOCTYPE html>")
		h.Open("html", "lang", "en")
		h.Open("head")
		h.Raw(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.Elem("title", data.Title+" | SurveyPro")
		h.Raw(`<link rel="stylesheet" href="/static/app.css">`)
		h.Close("head")

		h.Open("body", "class", "min-h-screen bg-slate-50 text-slate-800")
		h.Open("header", "class", "border-b border-slate-200 bg-white")
		h.Open("div", "class", "mx-auto flex max-w-4xl items-center justify-between px-4 py-3")
		h.Open("a", "href", "/surveys", "class", "text-lg font-bold text-emerald-700").Text("SurveyPro").Close("a")
		if data.Nav != nil {
			h.Open("nav", "class", "flex items-center gap-4 text-sm")
			h.Elem("span", data.Nav.Name, "class", "font-medium")
			h.Open("a", "href", "/packages", "class", "rounded-full bg-amber-100 px-2 py-0.5 text-amber-800").
				Text(data.Nav.Tier).Close("a")
			h.Elem("span", data.Nav.Balance, "class", "font-semibold")
			h.Close("nav")
		}
		h.Close("div")
		h.Close("header")

		h.Open("main", "class", "mx-auto max-w-4xl space-y-4 px-4 py-6")
		if data.Flash != nil {
			h.Elem("div", data.Flash.Message, "class", data.Flash.Class(), "role", "alert")
		}
		h.Render(ctx, body)
		h.Close("main")

		h.Raw(`<div id="toasts" class="fixed right-4 top-4 z-50 space-y-2"></div>`)
		h.Raw(fmt.Sprintf("<script>%s</script>", eventClient))
		h.Close("body")
		h.Close("html")
		return h.Err()
	})
}

// StorageEventName is the DOM event the layout dispatches on document for
// every storage change of this client. Pages that show stored state listen
// for it; the layout itself never reloads.
const StorageEventName = "surveypro:storage"

// eventClient relays storage changes as StorageEventName and shows
// withdrawal toasts for five seconds.
const eventClient = `(function(){
  if (!window.EventSource) return;
  var es = new EventSource("/events");
  es.addEventListener("storage", function(e){
    document.dispatchEvent(new CustomEvent("` + StorageEventName + `", {detail: JSON.parse(e.data)}));
  });
  es.addEventListener("withdrawal", function(e){
    var t = JSON.parse(e.data);
    var box = document.createElement("div");
    box.className = "w-60 rounded-xl border border-amber-200 bg-white p-2 text-xs shadow-lg";
    var head = document.createElement("div");
    head.className = "font-bold text-green-900";
    head.textContent = "Withdrawal";
    var body = document.createElement("div");
    body.className = "mt-1 text-slate-700";
    body.textContent = t.text;
    box.appendChild(head); box.appendChild(body);
    document.getElementById("toasts").appendChild(box);
    setTimeout(function(){ box.remove(); }, 5000);
  });
})();`
