package summary

import "strings"

// Document is the canonical model of one AI-generated summary.
// Fields keep the order of the source object; "title" is held separately.
type Document struct {
	Style     string
	Title     string
	Fields    []Field
	Coercions []Coercion
}

type Field struct {
	Key   string
	Value Value
}

// Value is either a Scalar or a List.
type Value interface {
	isValue()
}

type Scalar struct {
	Text string
}

type List struct {
	Items []Item
}

func (Scalar) isValue() {}
func (List) isValue()   {}

// Item is one entry of a List: PlainItem, CitedItem or MultiPartItem.
type Item interface {
	isItem()
}

type PlainItem struct {
	Text string
}

// CitedItem is an object whose only non-page key is "text".
type CitedItem struct {
	Text string
	Page int
}

// MultiPartItem is any other object. The first part is the headline.
type MultiPartItem struct {
	Parts []Part
	Page  int
}

// Part is one labelled value of a MultiPartItem.
type Part struct {
	Label string
	Value string
}

func (PlainItem) isItem()     {}
func (CitedItem) isItem()     {}
func (MultiPartItem) isItem() {}

// Coercion records a list element that was neither a string nor an object
// and was turned into a PlainItem.
type Coercion struct {
	Key   string
	Index int
	Kind  string
	Raw   string
}

// DisplayTitle returns the document title, or fallback when it has none.
func (d *Document) DisplayTitle(fallback string) string {
	if d != nil {
		if title := strings.TrimSpace(d.Title); title != "" {
			return title
		}
	}

	return strings.TrimSpace(fallback)
}

func (d *Document) Field(key string) (Field, bool) {
	if d == nil {
		return Field{}, false
	}

	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}

	return Field{}, false
}

// ItemPage returns the page citation of an item, 0 when it has none.
func ItemPage(item Item) int {
	switch it := item.(type) {
	case CitedItem:
		return it.Page
	case MultiPartItem:
		return it.Page
	default:
		return 0
	}
}

// Headline returns the first part, if any.
func (m MultiPartItem) Headline() (Part, bool) {
	if len(m.Parts) == 0 {
		return Part{}, false
	}

	return m.Parts[0], true
}

// Rest returns every part after the headline.
func (m MultiPartItem) Rest() []Part {
	if len(m.Parts) < 2 {
		return nil
	}

	return m.Parts[1:]
}

// IsBlank reports whether an item carries no text to render.
func IsBlank(item Item) bool {
	switch it := item.(type) {
	case PlainItem:
		return strings.TrimSpace(it.Text) == ""
	case CitedItem:
		return strings.TrimSpace(it.Text) == ""
	case MultiPartItem:
		return len(it.Parts) == 0
	default:
		return true
	}
}

// Texts returns every text value of the document in field order, skipping
// blanks. Page citations and labels are not included.
func (d *Document) Texts() []string {
	if d == nil {
		return nil
	}

	var texts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			texts = append(texts, s)
		}
	}

	for _, f := range d.Fields {
		switch v := f.Value.(type) {
		case Scalar:
			add(v.Text)
		case List:
			for _, item := range v.Items {
				switch it := item.(type) {
				case PlainItem:
					add(it.Text)
				case CitedItem:
					add(it.Text)
				case MultiPartItem:
					for _, p := range it.Parts {
						add(p.Value)
					}
				}
			}
		}
	}

	return texts
}

// HasContent reports whether a value has anything to render.
func HasContent(v Value) bool {
	switch val := v.(type) {
	case Scalar:
		return strings.TrimSpace(val.Text) != ""
	case List:
		for _, item := range val.Items {
			if !IsBlank(item) {
				return true
			}
		}
	}

	return false
}
