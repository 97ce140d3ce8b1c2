// Package viewer builds the interactive view model of a summary: one
// collapsible section per field with copy support. It carries no rendering
// rules of its own; labels, citations and copy text come from the registry,
// the summary model and the Markdown renderer.
package viewer

import (
	"errors"
	"strings"

	"bookdigest/internal/registry"
	"bookdigest/internal/render"
	"bookdigest/internal/summary"
)

var ErrNoDocument = errors.New("no summary document")

type Line struct {
	Headline string
	Text     string
	Page     int
}

type Section struct {
	Key        string
	Label      string
	Paragraphs []string
	Lines      []Line
	value      summary.Value
}

func (s Section) IsList() bool {
	_, ok := s.value.(summary.List)
	return ok
}

// View is the view model of one document. It is not safe for concurrent use.
type View struct {
	Title     string
	StyleName string
	Style     registry.Style
	Sections  []Section
	expanded  []bool
}

func New(reg *registry.Registry, doc *summary.Document, title string) (*View, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}

	if reg == nil {
		reg = registry.Default()
	}

	v := &View{
		Title:     doc.DisplayTitle(title),
		StyleName: doc.Style,
		Style:     reg.Style(doc.Style),
	}

	for _, f := range doc.Fields {
		if !summary.HasContent(f.Value) {
			continue
		}

		v.Sections = append(v.Sections, newSection(reg, f))
	}
	v.expanded = make([]bool, len(v.Sections))

	return v, nil
}

func newSection(reg *registry.Registry, f summary.Field) Section {
	s := Section{
		Key:   f.Key,
		Label: reg.Label(f.Key),
		value: f.Value,
	}

	switch v := f.Value.(type) {
	case summary.Scalar:
		for _, p := range strings.Split(v.Text, "\n") {
			if p = strings.TrimSpace(p); p != "" {
				s.Paragraphs = append(s.Paragraphs, p)
			}
		}
	case summary.List:
		for _, item := range v.Items {
			if summary.IsBlank(item) {
				continue
			}
			s.Lines = append(s.Lines, newLine(item))
		}
	}

	return s
}

func newLine(item summary.Item) Line {
	switch it := item.(type) {
	case summary.PlainItem:
		return Line{Text: strings.TrimSpace(it.Text)}
	case summary.CitedItem:
		return Line{Text: strings.TrimSpace(it.Text), Page: it.Page}
	case summary.MultiPartItem:
		head, _ := it.Headline()
		values := make([]string, 0, len(it.Rest()))
		for _, p := range it.Rest() {
			values = append(values, p.Value)
		}
		return Line{Headline: head.Value, Text: strings.Join(values, " "), Page: it.Page}
	default:
		return Line{}
	}
}

func (v *View) index(key string) int {
	for i, s := range v.Sections {
		if s.Key == key {
			return i
		}
	}
	return -1
}

// Section returns the section at position i.
func (v *View) Section(i int) (Section, bool) {
	if v == nil || i < 0 || i >= len(v.Sections) {
		return Section{}, false
	}
	return v.Sections[i], true
}

// Toggle flips the expanded state of a section and returns the new state.
func (v *View) Toggle(key string) bool {
	i := v.index(key)
	if i < 0 {
		return false
	}

	v.expanded[i] = !v.expanded[i]

	return v.expanded[i]
}

func (v *View) Expanded(key string) bool {
	i := v.index(key)
	return i >= 0 && v.expanded[i]
}

// AnyExpanded reports whether at least one section is open.
func (v *View) AnyExpanded() bool {
	for _, e := range v.expanded {
		if e {
			return true
		}
	}
	return false
}

func (v *View) CollapseAll() {
	for i := range v.expanded {
		v.expanded[i] = false
	}
}

// CopyText returns the clipboard text of a section, in the same Markdown
// form as the downloadable projection.
func (v *View) CopyText(key string) (string, bool) {
	i := v.index(key)
	if i < 0 {
		return "", false
	}

	return strings.TrimRight(render.MarkdownBody(v.Sections[i].value), "\n"), true
}
