package snapshot

import (
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Docs</title><script>alert("tracking")</script><style>body{color:red}</style></head>
<body onload="evil()">
  <header><h1>API Documentation</h1></header>
  <nav aria-label="primary">
    <a href="/docs" id="nav-docs" class="nav-link">Docs</a>
    <a href="/pricing" id="nav-pricing" class="nav-link">Pricing</a>
  </nav>
  <main>
    <h2>Getting Started</h2>
    <form action="/search" method="get">
      <input type="text" id="search" name="q" placeholder="Search docs" data-testid="search-box">
      <button type="submit" id="search-btn">Search</button>
    </form>
    <h2>Authentication</h2>
    <h3>API Keys</h3>
  </main>
  <footer><p>Copyright</p></footer>
</body>
</html>`

func TestCleanStripsScriptsKeepsLocators(t *testing.T) {
	out := Clean(samplePage)

	for _, banned := range []string{"<script", "alert(", "<style", "color:red", "onload"} {
		if strings.Contains(out, banned) {
			t.Errorf("clean output still contains %q", banned)
		}
	}
	// Locator-bearing attributes must survive; discovery depends on them.
	for _, kept := range []string{
		`id="search"`, `data-testid="search-box"`, `aria-label="primary"`,
		`class="nav-link"`, `placeholder="Search docs"`,
	} {
		if !strings.Contains(out, kept) {
			t.Errorf("clean output lost %q", kept)
		}
	}
}

func TestCleanCollapsesWhitespace(t *testing.T) {
	out := Clean("<div>a</div>\n\n\n   <div>b</div>")
	if strings.Contains(out, "  ") || strings.Contains(out, "\n") {
		t.Errorf("whitespace not collapsed: %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 4); got != "abcd" {
		t.Errorf("Truncate = %q, want abcd", got)
	}
	if got := Truncate("ab", 4); got != "ab" {
		t.Errorf("Truncate = %q, want ab", got)
	}
}

func TestDigest(t *testing.T) {
	summary, err := Digest(samplePage)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	for _, want := range []string{
		"header=1", "nav=1", "main=1", "footer=1", "form=1",
		"a=2", "button=1", "input=1",
		"aria-labels=1",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("digest missing %q in:\n%s", want, summary)
		}
	}

	// The heading outline comes through as markdown.
	if !strings.Contains(summary, "API Documentation") {
		t.Errorf("digest missing h1 text:\n%s", summary)
	}
	if !strings.Contains(summary, "Getting Started") {
		t.Errorf("digest missing h2 text:\n%s", summary)
	}
}

func TestFromHTMLBounded(t *testing.T) {
	// Build a page well over the cap.
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 2000; i++ {
		b.WriteString(`<div class="row">some repeated content for padding</div>`)
	}
	b.WriteString("</body></html>")

	snap, err := FromHTML(b.String())
	if err != nil {
		t.Fatalf("from html: %v", err)
	}
	if len(snap.HTML) > MaxHTMLChars {
		t.Errorf("HTML len = %d, exceeds cap %d", len(snap.HTML), MaxHTMLChars)
	}
	if snap.StructureSummary == "" {
		t.Error("structure summary empty")
	}
}
