// Package shared holds the layout and building blocks used by every page.
package shared

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/DukeRupert/surveypro/internal/csrf"
)

// Writer emits HTML, escaping text and attribute values. The first write
// error sticks and is returned by Err.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Raw writes s unescaped. Only pass trusted markup.
func (h *Writer) Raw(s string) *Writer {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
	return h
}

// Text writes s escaped.
func (h *Writer) Text(s string) *Writer {
	return h.Raw(templ.EscapeString(s))
}

// Open writes a start tag. attrs are name/value pairs; values are escaped.
func (h *Writer) Open(tag string, attrs ...string) *Writer {
	h.Raw("<" + tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] == "" {
			continue
		}
		h.Raw(" " + attrs[i] + `="` + templ.EscapeString(attrs[i+1]) + `"`)
	}
	return h.Raw(">")
}

// Close writes an end tag.
func (h *Writer) Close(tag string) *Writer {
	return h.Raw("</" + tag + ">")
}

// Elem writes a complete element with escaped text content.
func (h *Writer) Elem(tag, text string, attrs ...string) *Writer {
	return h.Open(tag, attrs...).Text(text).Close(tag)
}

// Render renders c inline.
func (h *Writer) Render(ctx context.Context, c templ.Component) *Writer {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
	return h
}

// CSRFField writes the hidden token input for a form. Nothing is written
// when ctx carries no token.
func (h *Writer) CSRFField(ctx context.Context) *Writer {
	token := csrf.Token(ctx)
	if token == "" {
		return h
	}
	return h.Open("input", "type", "hidden", "name", csrf.FormFieldName, "value", token)
}

// Err returns the first write error.
func (h *Writer) Err() error {
	return h.err
}
