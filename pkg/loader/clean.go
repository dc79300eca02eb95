package loader

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	mdhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	codeBlockRe  = regexp.MustCompile("(?s)```.*?```")
	shortNumRe   = regexp.MustCompile(`\b\d{1,5}\b`)
	urlRe        = regexp.MustCompile(`http\S+`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	markdown  = goldmark.New(goldmark.WithRendererOptions(mdhtml.WithUnsafe()))
	stripTags = bluemonday.StrictPolicy()
)

// CleanText turns markdown or HTML flavoured input into a single line of
// plain prose ready for chunking.
//
// Fenced code blocks are dropped, markdown is rendered and all markup is
// stripped. Standalone numbers of up to five digits and URLs are removed
// and whitespace runs collapse to a single space.
func CleanText(text string) string {
	text = codeBlockRe.ReplaceAllString(text, "")

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err == nil {
		text = buf.String()
	}
	text = html.UnescapeString(stripTags.Sanitize(text))

	text = shortNumRe.ReplaceAllString(text, "")
	text = urlRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
