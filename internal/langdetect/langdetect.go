// Package langdetect guesses the language of a summary from its text with a
// small set of ordered word and diacritic rules.
package langdetect

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"bookdigest/internal/summary"
)

type Language string

const (
	English   Language = "en"
	Swedish   Language = "sv"
	German    Language = "de"
	French    Language = "fr"
	Spanish   Language = "es"
	Norwegian Language = "no"
	Danish    Language = "da"
	Finnish   Language = "fi"
)

// SampleRunes is how much text is inspected.
const SampleRunes = 800

var (
	finnishWords   = wordSet("että", "kanssa", "myös", "kuten", "ovat", "sekä", "joka", "kaikki", "kirja", "toiminta", "ensimmäinen")
	germanWords    = wordSet("und", "ist", "das", "nicht", "auch", "wird", "sind", "einer", "einen", "beim", "durch")
	frenchWords    = wordSet("les", "des", "est", "une", "pour", "dans", "qui", "sur", "avec", "très", "cette", "même", "être", "avoir")
	spanishWords   = wordSet("los", "las", "del", "una", "por", "con", "más", "para", "también", "acción", "capítulo")
	swedishWords   = wordSet("och", "att", "är", "för", "med", "till", "som", "det", "av", "på")
	norwegianWords = wordSet("ikke", "gjøre", "ønsker", "viktig", "første", "handling", "boken", "leseren")
	danishWords    = wordSet("ikke", "gøre", "ønsker", "vigtig", "første", "handling", "bogen", "læseren")
)

// Detect classifies raw summary content. Unparseable content is classified
// from its raw text.
func Detect(raw string) Language {
	doc, err := summary.Parse("", raw)
	if err != nil {
		return DetectText(truncate(raw, SampleRunes))
	}

	return DetectDocument(doc)
}

// DetectDocument classifies the text values of a parsed document.
func DetectDocument(doc *summary.Document) Language {
	return DetectText(truncate(strings.Join(doc.Texts(), " "), SampleRunes))
}

// DetectText applies the rules to text as given. English is the fallback.
func DetectText(text string) Language {
	t := strings.ToLower(text)
	words := tokenize(t)

	switch {
	case words.hasAny(finnishWords):
		return Finnish
	case strings.Contains(t, "ß") || words.hasAny(germanWords):
		return German
	case words.hasAny(frenchWords):
		return French
	case strings.Contains(t, "ñ") || words.hasAny(spanishWords):
		return Spanish
	case (strings.ContainsAny(t, "äö") && !strings.ContainsAny(t, "æø")) || words.hasAny(swedishWords):
		return Swedish
	case strings.ContainsAny(t, "æø"):
		if words.hasAny(norwegianWords) {
			return Norwegian
		}
		if words.hasAny(danishWords) {
			return Danish
		}
		return Norwegian
	default:
		return English
	}
}

type set map[string]struct{}

func wordSet(words ...string) set {
	s := make(set, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s set) hasAny(other set) bool {
	for w := range other {
		if _, ok := s[w]; ok {
			return true
		}
	}
	return false
}

func tokenize(text string) set {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	return wordSet(words...)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}

	return s
}
