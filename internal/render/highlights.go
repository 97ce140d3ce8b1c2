package render

import (
	"strings"
	"unicode/utf8"

	"bookdigest/internal/summary"
)

const (
	SourceTypeBooks  = "books"
	LocationTypePage = "page"

	// MaxHighlightRunes is the longest highlight text Readwise accepts.
	MaxHighlightRunes = 8191
)

// Highlight matches the Readwise v2 highlight object.
type Highlight struct {
	Text         string `json:"text"`
	Title        string `json:"title"`
	SourceType   string `json:"source_type"`
	Note         string `json:"note,omitempty"`
	Location     int    `json:"location,omitempty"`
	LocationType string `json:"location_type,omitempty"`
}

// Highlights renders one record per non-blank scalar field and one per
// non-blank list item. An empty result is valid.
func (r *Renderer) Highlights(doc *summary.Document, title string) ([]Highlight, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}

	bookTitle := displayTitle(doc, title)
	styleLabel := r.reg.Style(doc.Style).Label
	highlights := []Highlight{}

	for _, f := range doc.Fields {
		note := styleLabel + " — " + r.reg.Label(f.Key)

		switch v := f.Value.(type) {
		case summary.Scalar:
			if text := stripEmphasis(v.Text); text != "" {
				highlights = append(highlights, newHighlight(text, bookTitle, note, 0))
			}
		case summary.List:
			for _, item := range v.Items {
				if text := highlightText(item); text != "" {
					highlights = append(highlights, newHighlight(text, bookTitle, note, summary.ItemPage(item)))
				}
			}
		}
	}

	return highlights, nil
}

func highlightText(item summary.Item) string {
	switch it := item.(type) {
	case summary.PlainItem:
		return stripEmphasis(it.Text)
	case summary.CitedItem:
		return stripEmphasis(it.Text)
	case summary.MultiPartItem:
		parts := make([]string, 0, len(it.Parts))
		for _, p := range it.Parts {
			if v := stripEmphasis(p.Value); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, " — ")
	default:
		return ""
	}
}

func newHighlight(text, title, note string, page int) Highlight {
	h := Highlight{
		Text:       truncateRunes(text, MaxHighlightRunes),
		Title:      title,
		SourceType: SourceTypeBooks,
		Note:       note,
	}

	if page > 0 {
		h.Location = page
		h.LocationType = LocationTypePage
	}

	return h
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)

	return string(runes[:n])
}
