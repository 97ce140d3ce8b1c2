package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used whenever a language has no registry entry.
const DefaultLanguage = "en"

//go:embed registry.yaml
var embeddedRegistry []byte

type Style struct {
	Label       string `yaml:"label"`
	Emoji       string `yaml:"emoji"`
	Description string `yaml:"description"`
}

type Language struct {
	Label       string   `yaml:"label"`
	Suggestions []string `yaml:"suggestions"`
}

type file struct {
	Labels    map[string]string   `yaml:"labels"`
	Styles    map[string]Style    `yaml:"styles"`
	Languages map[string]Language `yaml:"languages"`
}

// Registry holds field labels, style metadata and per-language chat
// suggestions. It is immutable once built and safe for concurrent use.
type Registry struct {
	labels    map[string]string
	styles    map[string]Style
	languages map[string]Language
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := Parse(embeddedRegistry)
	if err != nil {
		panic(fmt.Sprintf("parse embedded registry: %v", err))
	}
	return r
})

// Default returns the registry compiled into the binary.
func Default() *Registry {
	return defaultRegistry()
}

// Load returns the embedded registry overlaid with the YAML file at path.
// An empty path yields the embedded registry unchanged.
func Load(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	var override file
	if err = yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("decode registry file: %w", err)
	}

	base := Default()
	merged := file{
		Labels:    make(map[string]string, len(base.labels)+len(override.Labels)),
		Styles:    make(map[string]Style, len(base.styles)+len(override.Styles)),
		Languages: make(map[string]Language, len(base.languages)+len(override.Languages)),
	}
	for k, v := range base.labels {
		merged.Labels[k] = v
	}
	for k, v := range override.Labels {
		merged.Labels[k] = v
	}
	for k, v := range base.styles {
		merged.Styles[k] = v
	}
	for k, v := range override.Styles {
		merged.Styles[k] = v
	}
	for k, v := range base.languages {
		merged.Languages[k] = v
	}
	for k, v := range override.Languages {
		merged.Languages[k] = v
	}

	return build(merged)
}

// Parse builds a registry from YAML data.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	return build(f)
}

func build(f file) (*Registry, error) {
	var errs []error

	for name, style := range f.Styles {
		if strings.TrimSpace(style.Label) == "" {
			errs = append(errs, fmt.Errorf("style %q has no label", name))
		}
	}

	for code, lang := range f.Languages {
		if strings.TrimSpace(lang.Label) == "" {
			errs = append(errs, fmt.Errorf("language %q has no label", code))
		}
		if len(lang.Suggestions) == 0 {
			errs = append(errs, fmt.Errorf("language %q has no suggestions", code))
		}
	}

	if _, ok := f.Languages[DefaultLanguage]; !ok {
		errs = append(errs, fmt.Errorf("default language %q is missing", DefaultLanguage))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("validate registry: %w", err)
	}

	r := &Registry{
		labels:    make(map[string]string, len(f.Labels)),
		styles:    make(map[string]Style, len(f.Styles)),
		languages: make(map[string]Language, len(f.Languages)),
	}
	for k, v := range f.Labels {
		r.labels[k] = v
	}
	for k, v := range f.Styles {
		r.styles[k] = v
	}
	for k, v := range f.Languages {
		v.Suggestions = slices.Clone(v.Suggestions)
		r.languages[k] = v
	}

	return r, nil
}

// Label resolves the display label of a field key, falling back to Humanize.
func (r *Registry) Label(key string) string {
	if r != nil {
		if label, ok := r.labels[key]; ok {
			return label
		}
	}

	return Humanize(key)
}

// Style returns the metadata of a style. Unknown styles get a humanized label.
func (r *Registry) Style(name string) Style {
	if r != nil {
		if style, ok := r.styles[name]; ok {
			return style
		}
	}

	return Style{Label: Humanize(name)}
}

func (r *Registry) HasStyle(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.styles[name]
	return ok
}

// Styles returns known style names in sorted order.
func (r *Registry) Styles() []string {
	if r == nil {
		return nil
	}

	names := make([]string, 0, len(r.styles))
	for name := range r.styles {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

func (r *Registry) LanguageLabel(code string) string {
	if r != nil {
		if lang, ok := r.languages[code]; ok {
			return lang.Label
		}
	}

	return code
}

// Suggestions returns the chat question suggestions for a language code,
// falling back to DefaultLanguage.
func (r *Registry) Suggestions(code string) []string {
	if r == nil {
		return nil
	}

	lang, ok := r.languages[code]
	if !ok {
		lang = r.languages[DefaultLanguage]
	}

	return slices.Clone(lang.Suggestions)
}

// Humanize turns a snake_case key into a title: underscores become spaces and
// the first letter of every word is upper-cased.
func Humanize(key string) string {
	if key == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(key))

	wordStart := true
	for i := 0; i < len(key); {
		r, size := utf8.DecodeRuneInString(key[i:])
		i += size

		if r == '_' {
			r = ' '
		}

		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if wordStart {
				r = unicode.ToUpper(r)
			}
			wordStart = false
		} else {
			wordStart = true
		}

		b.WriteRune(r)
	}

	return b.String()
}
