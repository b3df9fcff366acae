package snapshot

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// digest caps, chosen to keep the summary a cheap complement to the HTML
// rather than a second full payload.
const (
	maxOutlineChars = 1_200
	maxHeadings     = 20
)

// Digest produces a compact structure summary of raw HTML: landmark and
// interactive-element counts plus a markdown heading outline. It is a
// cheap proxy for page semantics that complements the raw markup.
func Digest(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("snapshot: parse html: %w", err)
	}

	var b strings.Builder

	b.WriteString("landmarks:")
	for _, tag := range []string{"header", "nav", "main", "footer", "form", "table", "article", "section"} {
		if n := doc.Find(tag).Length(); n > 0 {
			fmt.Fprintf(&b, " %s=%d", tag, n)
		}
	}

	b.WriteString("\ninteractive:")
	for _, tag := range []string{"a", "button", "input", "select", "textarea"} {
		if n := doc.Find(tag).Length(); n > 0 {
			fmt.Fprintf(&b, " %s=%d", tag, n)
		}
	}

	if ids := countAttr(doc, "[id]"); ids > 0 {
		fmt.Fprintf(&b, "\nids=%d", ids)
	}
	if aria := countAttr(doc, "[aria-label]"); aria > 0 {
		fmt.Fprintf(&b, " aria-labels=%d", aria)
	}

	if hint := ContentHint(raw); hint != "" {
		fmt.Fprintf(&b, "\ncontent: %s", hint)
	}

	if outline := headingOutline(raw); outline != "" {
		b.WriteString("\noutline:\n")
		b.WriteString(outline)
	}

	return b.String(), nil
}

func countAttr(doc *goquery.Document, selector string) int {
	return doc.Find(selector).Length()
}

// headingOutline converts just the page's headings to markdown, giving the
// model a table of contents without the body text.
func headingOutline(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	var headings strings.Builder
	count := 0
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if count >= maxHeadings {
			return false
		}
		html, err := goquery.OuterHtml(s)
		if err != nil {
			return true
		}
		headings.WriteString(html)
		count++
		return true
	})
	if headings.Len() == 0 {
		return ""
	}

	md, err := htmltomarkdown.ConvertString(headings.String())
	if err != nil {
		return ""
	}
	return Truncate(strings.TrimSpace(md), maxOutlineChars)
}
