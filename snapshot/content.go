package snapshot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minContentChars is the smallest text length a node needs before it is
// considered a content candidate.
const minContentChars = 80

var boilerplateRe = regexp.MustCompile(`(?i)\b(nav|menu|sidebar|footer|header|banner|cookie|ad|ads|promo)\b`)

// ContentHint locates the likely main-content container via text density
// analysis: the subtree with the highest text-to-markup ratio that is not
// mostly links. Returns a CSS-ish path like "article.post" or "div#main",
// empty when nothing qualifies. The hint seeds the discovery prompt; it
// is never used as an extraction locator on its own.
func ContentHint(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	// Semantic landmarks win outright when present and substantial.
	for _, tag := range []string{"main", "article"} {
		hint := ""
		doc.Find(tag).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if isBoilerplate(s) {
				return true
			}
			if len(strings.TrimSpace(s.Text())) >= minContentChars {
				hint = nodePath(s)
				return false
			}
			return true
		})
		if hint != "" {
			return hint
		}
	}

	var best *goquery.Selection
	var bestScore float64
	doc.Find("div, section, td").Each(func(_ int, s *goquery.Selection) {
		if isBoilerplate(s) {
			return
		}
		text := strings.TrimSpace(s.Text())
		if len(text) < minContentChars {
			return
		}
		markup, err := goquery.OuterHtml(s)
		if err != nil || len(markup) == 0 {
			return
		}

		linkLen := len(strings.TrimSpace(s.Find("a").Text()))
		linkDens := float64(linkLen) / float64(len(text))
		if linkDens > 0.5 {
			// mostly links, probably navigation
			return
		}

		score := float64(len(text)) / float64(len(markup)) * logScale(len(text)) * (1 - linkDens)
		if score > bestScore {
			bestScore = score
			best = s
		}
	})

	if best == nil {
		return ""
	}
	return nodePath(best)
}

func isBoilerplate(s *goquery.Selection) bool {
	tag := goquery.NodeName(s)
	switch tag {
	case "nav", "header", "footer", "aside", "script", "style", "noscript":
		return true
	}
	class, _ := s.Attr("class")
	id, _ := s.Attr("id")
	role, _ := s.Attr("role")
	if role == "navigation" || role == "banner" || role == "contentinfo" {
		return true
	}
	return boilerplateRe.MatchString(class) || boilerplateRe.MatchString(id)
}

// nodePath renders a short CSS-ish identity for a node: tag plus id or
// first class when available.
func nodePath(s *goquery.Selection) string {
	tag := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok && id != "" {
		return fmt.Sprintf("%s#%s", tag, id)
	}
	if class, ok := s.Attr("class"); ok {
		if fields := strings.Fields(class); len(fields) > 0 {
			return fmt.Sprintf("%s.%s", tag, fields[0])
		}
	}
	return tag
}

// logScale favors longer text bodies without letting length dominate the
// density ratio.
func logScale(n int) float64 {
	scale := 1.0
	for n > 100 {
		scale++
		n /= 2
	}
	return scale
}
