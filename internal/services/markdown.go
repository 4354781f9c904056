package services

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown renders message content to HTML. Raw HTML in the source is escaped, links open in a new tab
// through the page script, and fenced code blocks are highlighted.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a new Markdown renderer using the given highlighting style, such as "github".
func NewMarkdown(style string) Markdown {
	if style == "" {
		style = "github"
	}
	return Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(highlighting.WithStyle(style)),
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		),
	}
}

// Render converts markdown source into HTML safe to embed in a template.
func (m Markdown) Render(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	// goldmark escapes raw HTML unless html.WithUnsafe is set, so the output can be trusted.
	return template.HTML(buf.String()), nil
}
