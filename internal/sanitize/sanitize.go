// Package sanitize flattens model-generated markdown and HTML into the plain
// text the bot sends to Telegram, where no parse mode is set.
package sanitize

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	blockTags = regexp.MustCompile(`<br\s*/?>|</?p>|</?div>|</?pre>|</?h[1-6]>|</?li>|</?ul>|</?ol>`)
	blankRuns = regexp.MustCompile(`\n\s*\n+`)
)

// Policy strips formatting from text produced by the model.
type Policy struct {
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewTelegramPolicy creates a Policy that renders markdown, drops every tag
// and keeps the line structure readable in a plain Telegram message.
func NewTelegramPolicy() *Policy {
	return &Policy{
		policy:   bluemonday.StrictPolicy(),
		markdown: goldmark.New(),
	}
}

// Flatten converts markdown to HTML, turns block-level tags into newlines,
// strips the rest and unescapes HTML entities. Input that fails to render is
// returned unchanged.
func (p *Policy) Flatten(text string) string {
	if text == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(text), &buf); err != nil {
		return text
	}

	flat := blockTags.ReplaceAllString(buf.String(), "\n")
	flat = p.policy.Sanitize(flat)
	flat = blankRuns.ReplaceAllString(flat, "\n\n")
	flat = html.UnescapeString(flat)

	return strings.TrimSpace(flat)
}
