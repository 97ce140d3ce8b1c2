package render

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"bookdigest/internal/summary"

	"mvdan.cc/xurls/v2"
)

var (
	markdownLink    = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	lineMarker      = regexp.MustCompile(`(?m)^\s*(?:#{1,6}\s*|>\s*|[-+*]\s+)`)
	htmlTag         = regexp.MustCompile(`</?[A-Za-z][A-Za-z0-9-]*(?:\s[^<>]*)?/?>`)
	speechMarkup    = strings.NewReplacer("\\", "", "*", "", "`", "", "~~", "", "_", " ", "#", " ")
	strictURL       = xurls.Strict()
	sentenceEndings = ".!?…:;"
)

// Speech renders a plain narration script with no markup characters.
func (r *Renderer) Speech(doc *summary.Document, title string) (string, error) {
	if doc == nil {
		return "", ErrNoDocument
	}

	pieces := []string{
		sentence(speakable(displayTitle(doc, title))),
		sentence(speakable(r.reg.Style(doc.Style).Label) + " summary"),
	}

	for _, f := range doc.Fields {
		if !summary.HasContent(f.Value) {
			continue
		}

		pieces = append(pieces, sentence(speakable(r.reg.Label(f.Key))))

		switch v := f.Value.(type) {
		case summary.Scalar:
			for _, p := range paragraphs(v.Text) {
				pieces = appendSentence(pieces, p)
			}
		case summary.List:
			for _, item := range v.Items {
				if summary.IsBlank(item) {
					continue
				}
				pieces = append(pieces, speechItem(item)...)
			}
		}
	}

	kept := pieces[:0]
	for _, p := range pieces {
		if p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, " "), nil
}

func speechItem(item summary.Item) []string {
	var out []string

	switch it := item.(type) {
	case summary.PlainItem:
		out = appendSentence(out, it.Text)
	case summary.CitedItem:
		out = appendSentence(out, it.Text)
	case summary.MultiPartItem:
		for _, p := range it.Parts {
			out = appendSentence(out, p.Value)
		}
	}

	if page := summary.ItemPage(item); page > 0 && len(out) > 0 {
		out = append(out, "Source: page "+pageString(page)+".")
	}

	return out
}

func appendSentence(pieces []string, text string) []string {
	if s := sentence(speakable(text)); s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}

// speakable turns Markdown-flavoured text into words a speech engine reads
// naturally. Links become their text and bare URLs their host name. HTML tags
// are dropped; numbered items keep their numbers.
func speakable(text string) string {
	text = htmlTag.ReplaceAllString(text, "")
	text = markdownLink.ReplaceAllString(text, "$1")
	text = strictURL.ReplaceAllStringFunc(text, spokenURL)
	text = lineMarker.ReplaceAllString(text, "")
	text = speechMarkup.Replace(text)

	return strings.Join(strings.Fields(text), " ")
}

func spokenURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "link"
	}

	return strings.TrimPrefix(u.Hostname(), "www.")
}

// sentence makes sure text ends with sentence punctuation.
func sentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if last, _ := utf8.DecodeLastRuneInString(text); strings.ContainsRune(sentenceEndings, last) {
		return text
	}

	return text + "."
}
