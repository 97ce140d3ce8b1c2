// Package render projects a parsed summary into Markdown, printable HTML,
// a narration script and Readwise highlights.
package render

import (
	"errors"
	"regexp"
	"strings"

	"bookdigest/internal/registry"
	"bookdigest/internal/summary"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	brand         = "BookDigest"
	untitledTitle = "Untitled"
)

var ErrNoDocument = errors.New("no summary document")

var slugDisallowed = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Renderer is safe for concurrent use. Every method is pure: it never
// mutates the document and builds its whole output before returning.
type Renderer struct {
	reg *registry.Registry
	md  goldmark.Markdown
}

func New(reg *registry.Registry) *Renderer {
	if reg == nil {
		reg = registry.Default()
	}

	return &Renderer{
		reg: reg,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

func (r *Renderer) Registry() *registry.Registry {
	return r.reg
}

// Filename is the download name of the Markdown projection.
func Filename(title, style string) string {
	slug := strings.ToLower(slugDisallowed.ReplaceAllString(strings.TrimSpace(title), "-"))
	if slug == "" {
		slug = "summary"
	}

	if style == "" {
		return slug + ".md"
	}

	return slug + "-" + style + ".md"
}

func displayTitle(doc *summary.Document, title string) string {
	if t := doc.DisplayTitle(title); t != "" {
		return t
	}

	return untitledTitle
}
