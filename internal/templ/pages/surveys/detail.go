package surveys

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/DukeRupert/surveypro/internal/templ/shared"
)

// DetailPage renders one survey as a form.
func DetailPage(data DetailPageData) templ.Component {
	return shared.Layout(data.Layout, detailBody(data))
}

func detailBody(data DetailPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := shared.NewWriter(w)
		s := data.Survey

		h.Elem("h1", s.Title, "class", "text-2xl font-bold")
		if s.Description != "" {
			h.Elem("p", s.Description, "class", "text-slate-600")
		}
		if s.Reward != nil {
			h.Elem("p", "Reward: "+RewardText(*s.Reward, s.Currency), "class", "text-sm font-semibold text-emerald-700")
		}

		h.Open("form", "method", "post", "action", "/surveys/"+s.ID+"/complete", "class", "space-y-4")
		h.CSRFField(ctx)
		for i, q := range s.Questions {
			name := fmt.Sprintf("q%d", i+1)
			h.Open("label", "class", "block space-y-1")
			h.Elem("span", QuestionLabel(q, i), "class", "text-sm font-medium")
			h.Open("input", "type", "text", "name", name, "class", "w-full rounded-lg border border-slate-300 px-3 py-2")
			h.Close("label")
		}
		if len(s.Questions) == 0 && s.QuestionsCount > 0 {
			h.Elem("p", fmt.Sprintf("This survey has %d questions.", s.QuestionsCount), "class", "text-sm text-slate-500")
		}
		h.Elem("button", "Submit", "type", "submit", "class", shared.ButtonClass(shared.ButtonPrimary))
		h.Close("form")
		return h.Err()
	})
}

// QuestionLabel picks a human-readable label for a catalog question, which
// may be a bare string or an object with a text-like field.
func QuestionLabel(raw json.RawMessage, index int) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil && text != "" {
		return text
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, field := range []string{"question", "text", "title", "label", "q"} {
			if v, ok := obj[field].(string); ok && v != "" {
				return v
			}
		}
	}
	return fmt.Sprintf("Question %d", index+1)
}

// RewardText formats a payout with its currency code.
func RewardText(amount float64, currency string) string {
	return fmt.Sprintf("%s %s", strings.ToUpper(currency), formatAmount(amount))
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
