package render

import (
	"errors"
	"strings"
	"testing"

	"bookdigest/internal/registry"
	"bookdigest/internal/summary"

	"github.com/PuerkitoBio/goquery"
)

const sampleDocument = `{
	"title": "Atomic Habits",
	"overview": "Short summary.\nSecond paragraph with **bold**.",
	"key_insights": [
		{"text": "Systems beat goals", "page": 12},
		{"concept": "Atomic habits", "explanation": "Small changes compound", "page": 30}
	],
	"study_questions": [],
	"surprising_stat": "1% better every day"
}`

func mustParse(t *testing.T, style, raw string) *summary.Document {
	t.Helper()

	doc, err := summary.Parse(style, raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	return doc
}

func TestMarkdown(t *testing.T) {
	r := New(registry.Default())
	doc := mustParse(t, "executive", sampleDocument)

	got, err := r.Markdown(doc, "atomic.pdf")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	want := "# Atomic Habits\n" +
		"*Executive Summary — BookDigest*\n" +
		"\n## Overview\n\n" +
		"Short summary.\n\nSecond paragraph with **bold**.\n" +
		"\n## Key Insights\n\n" +
		"- Systems beat goals *(p. 12)*\n" +
		"- **Atomic habits** — Small changes compound *(p. 30)*\n" +
		"\n## Surprising Stat\n\n" +
		"1% better every day\n"

	if got != want {
		t.Fatalf("unexpected markdown: %q", got)
	}
}

func TestMarkdownUsesFallbackTitle(t *testing.T) {
	r := New(nil)
	doc := mustParse(t, "study", `{"overview":"o"}`)

	got, err := r.Markdown(doc, "notes.pdf")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	if !strings.HasPrefix(got, "# notes.pdf\n*Study Summary — BookDigest*\n") {
		t.Fatalf("unexpected markdown header: %q", got)
	}
}

func TestSpeech(t *testing.T) {
	r := New(registry.Default())
	doc := mustParse(t, "executive", sampleDocument)

	got, err := r.Speech(doc, "")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	want := "Atomic Habits. Executive summary. " +
		"Overview. Short summary. Second paragraph with bold. " +
		"Key Insights. Systems beat goals. Source: page 12. " +
		"Atomic habits. Small changes compound. Source: page 30. " +
		"Surprising Stat. 1% better every day."

	if got != want {
		t.Fatalf("unexpected speech: %q", got)
	}
}

func TestSpeechHasNoMarkup(t *testing.T) {
	r := New(nil)
	raw := `{
		"title": "**Deep** Work",
		"overview": "***Bold*** and *it* plus ` + "`code`" + ` and [link](https://example.com/x) and https://www.example.org/path",
		"key_insights": ["# Heading item", "- dashed", "__under__ score", {"text": "*cited*", "page": 2}]
	}`
	doc := mustParse(t, "executive", raw)

	got, err := r.Speech(doc, "")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	for _, forbidden := range []string{"*", "`", "#", "_", "](", "https://"} {
		if strings.Contains(got, forbidden) {
			t.Fatalf("unexpected %q in speech: %q", forbidden, got)
		}
	}

	if !strings.Contains(got, "link and example.org.") {
		t.Fatalf("expected link text and host name in speech: %q", got)
	}

	if !strings.HasPrefix(got, "Deep Work. Executive summary.") {
		t.Fatalf("unexpected speech opening: %q", got)
	}
}

func TestSpeechDropsEscapesAndTags(t *testing.T) {
	r := New(nil)
	doc := mustParse(t, "executive", `{"overview":"a\\*b and <b>bold</b> text","key_insights":["1. first","2) second"]}`)

	got, err := r.Speech(doc, "T")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	want := "T. Executive summary. Overview. ab and bold text. Key Insights. 1. first. 2) second."
	if got != want {
		t.Fatalf("unexpected speech: %q", got)
	}
}

func TestHighlightsScenario(t *testing.T) {
	r := New(registry.Default())
	doc := mustParse(t, "executive", `{"overview": "Short summary.", "key_insights": [{"text":"Systems beat goals","page":12},{"concept":"Atomic habits","explanation":"Small changes compound","page":30}]}`)

	got, err := r.Highlights(doc, "Atomic Habits")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	want := []Highlight{
		{Text: "Short summary.", Title: "Atomic Habits", SourceType: "books", Note: "Executive — Overview"},
		{Text: "Systems beat goals", Title: "Atomic Habits", SourceType: "books", Note: "Executive — Key Insights", Location: 12, LocationType: "page"},
		{Text: "Atomic habits — Small changes compound", Title: "Atomic Habits", SourceType: "books", Note: "Executive — Key Insights", Location: 30, LocationType: "page"},
	}

	if len(got) != len(want) {
		t.Fatalf("unexpected highlight count: %d", len(got))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected highlight %d: %+v", i, got[i])
		}
	}
}

func TestHighlightsEmpty(t *testing.T) {
	r := New(nil)
	doc := mustParse(t, "executive", `{"title":"T","key_insights":[],"overview":"  "}`)

	got, err := r.Highlights(doc, "")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil highlights: %+v", got)
	}
}

func TestHighlightsStripEmphasisAndTruncate(t *testing.T) {
	r := New(nil)
	long := strings.Repeat("é", MaxHighlightRunes+10)
	doc := mustParse(t, "action", `{"immediate_actions":["**Start** small","`+long+`"]}`)

	got, err := r.Highlights(doc, "Book")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	if got[0].Text != "Start small" {
		t.Fatalf("unexpected highlight text: %q", got[0].Text)
	}

	if n := len([]rune(got[1].Text)); n != MaxHighlightRunes {
		t.Fatalf("unexpected truncated length: %d", n)
	}
}

func TestHTML(t *testing.T) {
	r := New(registry.Default())
	doc := mustParse(t, "executive", sampleDocument)

	out, err := r.HTML(doc, "")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	page, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	if err != nil {
		t.Fatalf("unexpected HTML parse error: %v", err)
	}

	if lang, _ := page.Find("html").Attr("lang"); lang != "en" {
		t.Fatalf("unexpected lang: %q", lang)
	}

	if got := page.Find("h1").Text(); got != "Atomic Habits" {
		t.Fatalf("unexpected h1: %q", got)
	}

	if got := page.Find("p.subtitle").Text(); got != "💼 Executive Summary · BookDigest" {
		t.Fatalf("unexpected subtitle: %q", got)
	}

	var headings []string
	page.Find("h2").Each(func(_ int, s *goquery.Selection) {
		headings = append(headings, s.Text())
	})
	if strings.Join(headings, "|") != "Overview|Key Insights|Surprising Stat" {
		t.Fatalf("unexpected headings: %q", headings)
	}

	if n := page.Find("ul").Length(); n != 1 {
		t.Fatalf("unexpected list count: %d", n)
	}

	var badges []string
	page.Find("li span.page").Each(func(_ int, s *goquery.Selection) {
		badges = append(badges, s.Text())
	})
	if strings.Join(badges, "|") != "p.\u00a012|p.\u00a030" {
		t.Fatalf("unexpected page badges: %q", badges)
	}

	if got := page.Find("li strong").First().Text(); got != "Atomic habits" {
		t.Fatalf("unexpected headline: %q", got)
	}

	if got := page.Find("p strong").Text(); got != "bold" {
		t.Fatalf("unexpected emphasis: %q", got)
	}

	if page.Find("style").Length() != 1 || page.Find("link").Length() != 0 {
		t.Fatalf("expected a self-contained document")
	}
}

func TestHTMLEscapesRawMarkup(t *testing.T) {
	r := New(nil)
	doc := mustParse(t, "executive", `{"title":"<b>T</b>","overview":"<script>alert(1)</script> & more","key_insights":["# not a heading","1. not a list"]}`)

	out, err := r.HTML(doc, "")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	page, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	if err != nil {
		t.Fatalf("unexpected HTML parse error: %v", err)
	}

	if page.Find("script").Length() != 0 || page.Find("h1 b").Length() != 0 {
		t.Fatalf("raw HTML leaked into output: %s", out)
	}

	if got := page.Find("h2 + p").Text(); got != "<script>alert(1)</script> & more" {
		t.Fatalf("unexpected escaped paragraph: %q", got)
	}

	var items []string
	page.Find("li").Each(func(_ int, s *goquery.Selection) {
		items = append(items, s.Text())
	})
	if strings.Join(items, "|") != "# not a heading|1. not a list" {
		t.Fatalf("unexpected items: %q", items)
	}

	if page.Find("li h1, li ol").Length() != 0 {
		t.Fatalf("block syntax leaked into list items: %s", out)
	}
}

func TestHTMLKeepsQueryStringLinks(t *testing.T) {
	r := New(nil)
	doc := mustParse(t, "executive", `{"overview":"See https://a.com/?x=1&y=2 now"}`)

	out, err := r.HTML(doc, "T")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	if strings.Contains(out, "&amp;amp;") {
		t.Fatalf("ampersand escaped twice: %s", out)
	}

	page, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	if err != nil {
		t.Fatalf("unexpected HTML parse error: %v", err)
	}

	link := page.Find("p a")
	if href, _ := link.Attr("href"); href != "https://a.com/?x=1&y=2" {
		t.Fatalf("unexpected href: %q", href)
	}

	if got := link.Text(); got != "https://a.com/?x=1&y=2" {
		t.Fatalf("unexpected link text: %q", got)
	}
}

func TestRenderersRejectNilDocument(t *testing.T) {
	r := New(nil)

	if _, err := r.Markdown(nil, "t"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("unexpected markdown error: %v", err)
	}
	if _, err := r.HTML(nil, "t"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("unexpected HTML error: %v", err)
	}
	if _, err := r.Speech(nil, "t"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("unexpected speech error: %v", err)
	}
	if _, err := r.Highlights(nil, "t"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("unexpected highlights error: %v", err)
	}
}

func TestRenderersAgreeOnFieldOrderAndPages(t *testing.T) {
	r := New(nil)
	raw := `{"zeta_notes":"z","key_insights":[{"text":"a","page":7}],"alpha_notes":"a2"}`
	doc := mustParse(t, "research", raw)

	md, _ := r.Markdown(doc, "T")
	out, _ := r.HTML(doc, "T")
	speech, _ := r.Speech(doc, "T")
	highlights, _ := r.Highlights(doc, "T")

	labels := []string{"Zeta Notes", "Key Insights", "Alpha Notes"}
	for _, projection := range []string{md, out, speech} {
		last := -1
		for _, label := range labels {
			i := strings.Index(projection, label)
			if i <= last {
				t.Fatalf("unexpected field order in %q", projection)
			}
			last = i
		}
	}

	if strings.Count(md, "7") != 1 || strings.Count(speech, "7") != 1 || strings.Count(out, "p.&nbsp;7") != 1 {
		t.Fatalf("page citation duplicated or missing")
	}

	page, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	if err != nil {
		t.Fatalf("unexpected HTML parse error: %v", err)
	}

	for _, text := range []string{md, speech, page.Find("body").Text()} {
		if strings.Contains(text, `"page":`) || strings.Contains(text, "page:") {
			t.Fatalf("page key leaked into output: %q", text)
		}
	}

	if len(highlights) != 3 || highlights[1].Note != "Research — Key Insights" || highlights[1].Location != 7 {
		t.Fatalf("unexpected highlights: %+v", highlights)
	}
}

func TestRenderersAreIdempotent(t *testing.T) {
	r := New(nil)
	doc := mustParse(t, "study", sampleDocument)

	for name, render := range map[string]func(*summary.Document, string) (string, error){
		"markdown": r.Markdown,
		"html":     r.HTML,
		"speech":   r.Speech,
	} {
		first, _ := render(doc, "T")
		second, _ := render(doc, "T")
		if first != second {
			t.Fatalf("unexpected non-idempotent %s output", name)
		}
	}
}

func TestEmptyListRendersNothing(t *testing.T) {
	r := New(nil)
	doc := mustParse(t, "study", `{"study_questions":[]}`)

	md, _ := r.Markdown(doc, "T")
	out, _ := r.HTML(doc, "T")
	speech, _ := r.Speech(doc, "T")

	if strings.Contains(md, "- ") || strings.Contains(md, "Study Questions") {
		t.Fatalf("unexpected markdown for empty list: %q", md)
	}

	if strings.Contains(out, "<ul>") || strings.Contains(out, "<li>") {
		t.Fatalf("unexpected HTML for empty list: %q", out)
	}

	if speech != "T. Study summary." {
		t.Fatalf("unexpected speech for empty list: %q", speech)
	}
}

func TestInline(t *testing.T) {
	r := New(nil)

	tests := []struct {
		in   string
		want string
	}{
		{in: "**bold** text", want: "<strong>bold</strong> text"},
		{in: "*em*", want: "<em>em</em>"},
		{in: "- dash", want: "- dash"},
		{in: "1. first", want: "1. first"},
		{in: "a < b & c", want: "a &lt; b &amp; c"},
	}

	for _, tt := range tests {
		if got := r.inline(tt.in); got != tt.want {
			t.Fatalf("unexpected inline HTML for %q: %q", tt.in, got)
		}
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		title string
		style string
		want  string
	}{
		{title: "Atomic Habits", style: "executive", want: "atomic-habits-executive.md"},
		{title: "Atomic Habits!", style: "study", want: "atomic-habits--study.md"},
		{title: "", style: "action", want: "summary-action.md"},
	}

	for _, tt := range tests {
		if got := Filename(tt.title, tt.style); got != tt.want {
			t.Fatalf("unexpected filename for %q: %q", tt.title, got)
		}
	}
}
