package render

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"bookdigest/internal/langdetect"
	"bookdigest/internal/summary"
)

const printCSS = `body{font-family:Georgia,serif;max-width:680px;margin:40px auto;color:#111;font-size:15px;line-height:1.7}
h1{font-size:22px;margin-bottom:2px}
.subtitle{color:#666;font-size:12px;margin-bottom:32px}
h2{font-size:14px;font-weight:700;margin-top:28px;margin-bottom:8px;text-transform:uppercase;letter-spacing:.05em;color:#333;border-bottom:1px solid #eee;padding-bottom:4px}
ul{margin:0;padding-left:20px}li{margin-bottom:6px}
.page{display:inline-block;margin-left:6px;padding:1px 5px;font-size:10px;font-weight:600;border-radius:4px;background:#f5edd8;color:#8a6820;border:1px solid #e8d5a0;white-space:nowrap}
p{margin:0 0 8px}@media print{body{margin:20px}}`

var (
	htmlSpecialChars   = strings.NewReplacer("<", "&lt;", ">", "&gt;")
	orderedListMarker  = regexp.MustCompile(`^\d{1,9}[.)]`)
	inlineParagraphTag = regexp.MustCompile(`^<p>([\s\S]*)</p>\n?$`)
)

// HTML renders a standalone document suitable for a browser print dialog.
func (r *Renderer) HTML(doc *summary.Document, title string) (string, error) {
	if doc == nil {
		return "", ErrNoDocument
	}

	style := r.reg.Style(doc.Style)
	heading := html.EscapeString(oneLine(displayTitle(doc, title)))

	var b strings.Builder

	b.WriteString(`<!DOCTYPE html><html lang="` + string(langdetect.DetectDocument(doc)) + `"><head><meta charset="utf-8">`)
	b.WriteString("<title>" + heading + "</title><style>\n" + printCSS + "\n</style></head><body>")
	b.WriteString("<h1>" + heading + "</h1>")
	b.WriteString(`<p class="subtitle">`)
	if style.Emoji != "" {
		b.WriteString(html.EscapeString(style.Emoji) + " ")
	}
	b.WriteString(html.EscapeString(style.Label) + " Summary · " + brand + "</p>")

	for _, f := range doc.Fields {
		if !summary.HasContent(f.Value) {
			continue
		}

		b.WriteString("<h2>" + html.EscapeString(r.reg.Label(f.Key)) + "</h2>")

		switch v := f.Value.(type) {
		case summary.Scalar:
			for _, p := range paragraphs(v.Text) {
				b.WriteString("<p>" + r.inline(p) + "</p>")
			}
		case summary.List:
			b.WriteString("<ul>")
			for _, item := range v.Items {
				if summary.IsBlank(item) {
					continue
				}
				b.WriteString("<li>" + r.htmlItem(item) + "</li>")
			}
			b.WriteString("</ul>")
		}
	}

	b.WriteString("</body></html>")

	return b.String(), nil
}

func (r *Renderer) htmlItem(item summary.Item) string {
	var text string

	switch it := item.(type) {
	case summary.PlainItem:
		text = r.inline(it.Text)
	case summary.CitedItem:
		text = r.inline(it.Text)
	case summary.MultiPartItem:
		head, _ := it.Headline()
		text = "<strong>" + r.inline(head.Value) + "</strong>"
		if rest := it.Rest(); len(rest) > 0 {
			text += " — " + r.inline(strings.Join(partValues(rest), " "))
		}
	}

	if page := summary.ItemPage(item); page > 0 {
		text += ` <span class="page">p.&nbsp;` + pageString(page) + "</span>"
	}

	return text
}

// inline renders inline Markdown emphasis to HTML. Block syntax is
// neutralized and raw HTML is escaped, so the result always fits inside an
// enclosing <p> or <li>.
func (r *Renderer) inline(text string) string {
	lines := paragraphs(text)
	if len(lines) == 0 {
		return ""
	}

	for i, line := range lines {
		lines[i] = escapeBlockSyntax(htmlSpecialChars.Replace(line))
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(strings.Join(lines, "\n")), &buf); err != nil {
		return html.EscapeString(strings.Join(paragraphs(text), " "))
	}

	m := inlineParagraphTag.FindStringSubmatch(buf.String())
	if m == nil {
		return html.EscapeString(strings.Join(paragraphs(text), " "))
	}

	return strings.TrimSpace(m[1])
}

// escapeBlockSyntax prefixes a backslash wherever a line would otherwise open
// a heading, list, quote, fence or thematic break.
func escapeBlockSyntax(line string) string {
	if line == "" {
		return line
	}

	switch line[0] {
	case '#', '-', '+', '=':
		return `\` + line
	case '*', '_':
		if len(line) == 1 || line[1] == ' ' || strings.Trim(line, "*_ ") == "" {
			return `\` + line
		}
	case '`', '~':
		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			return `\` + line
		}
	}

	if loc := orderedListMarker.FindStringIndex(line); loc != nil {
		i := loc[1] - 1
		return line[:i] + `\` + line[i:]
	}

	return line
}
