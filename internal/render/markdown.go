package render

import (
	"strings"

	"bookdigest/internal/summary"
)

// Markdown renders the downloadable .md projection.
func (r *Renderer) Markdown(doc *summary.Document, title string) (string, error) {
	if doc == nil {
		return "", ErrNoDocument
	}

	var b strings.Builder

	b.WriteString("# " + oneLine(displayTitle(doc, title)) + "\n")
	b.WriteString("*" + r.reg.Style(doc.Style).Label + " Summary — " + brand + "*\n")

	for _, f := range doc.Fields {
		if !summary.HasContent(f.Value) {
			continue
		}

		b.WriteString("\n## " + r.reg.Label(f.Key) + "\n\n")
		b.WriteString(MarkdownBody(f.Value))
	}

	return b.String(), nil
}

// MarkdownBody renders a single field value: paragraphs for a scalar, one
// bullet per non-blank item for a list.
func MarkdownBody(value summary.Value) string {
	var b strings.Builder

	switch v := value.(type) {
	case summary.Scalar:
		if p := paragraphs(v.Text); len(p) > 0 {
			b.WriteString(strings.Join(p, "\n\n"))
			b.WriteString("\n")
		}
	case summary.List:
		for _, item := range v.Items {
			if summary.IsBlank(item) {
				continue
			}
			b.WriteString("- " + markdownItem(item) + "\n")
		}
	}

	return b.String()
}

func markdownItem(item summary.Item) string {
	var text string

	switch it := item.(type) {
	case summary.PlainItem:
		text = oneLine(it.Text)
	case summary.CitedItem:
		text = oneLine(it.Text)
	case summary.MultiPartItem:
		head, _ := it.Headline()
		text = "**" + oneLine(head.Value) + "**"
		if rest := it.Rest(); len(rest) > 0 {
			text += " — " + oneLine(strings.Join(partValues(rest), " "))
		}
	}

	if page := summary.ItemPage(item); page > 0 {
		text += " *(p. " + pageString(page) + ")*"
	}

	return text
}
