package summary

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	titleKey = "title"
	textKey  = "text"
)

var ErrMalformedDocument = errors.New("malformed summary document")

// Parse classifies raw summary JSON into a Document. Anything that is not a
// JSON object yields ErrMalformedDocument.
func Parse(style, raw string) (*Document, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, fmt.Errorf("parse summary: %w: empty content", ErrMalformedDocument)
	}

	if !gjson.Valid(body) {
		return nil, fmt.Errorf("parse summary: %w: invalid JSON", ErrMalformedDocument)
	}

	root := gjson.Parse(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("parse summary: %w: top level is not an object", ErrMalformedDocument)
	}

	doc := &Document{Style: style}
	index := make(map[string]int)

	root.ForEach(func(k, v gjson.Result) bool {
		key := k.String()

		if key == titleKey {
			if v.Type == gjson.String {
				doc.Title = strings.TrimSpace(v.Str)
			}
			return true
		}

		value, coercions := classifyValue(key, v)

		if i, ok := index[key]; ok {
			doc.Fields[i].Value = value
			doc.Coercions = dropCoercions(doc.Coercions, key)
		} else {
			index[key] = len(doc.Fields)
			doc.Fields = append(doc.Fields, Field{Key: key, Value: value})
		}
		doc.Coercions = append(doc.Coercions, coercions...)

		return true
	})

	return doc, nil
}

func classifyValue(key string, v gjson.Result) (Value, []Coercion) {
	if !v.IsArray() {
		return Scalar{Text: v.String()}, nil
	}

	var (
		items     []Item
		coercions []Coercion
		index     int
	)

	v.ForEach(func(_, elem gjson.Result) bool {
		switch {
		case elem.Type == gjson.String:
			items = append(items, PlainItem{Text: elem.Str})
		case elem.IsObject():
			items = append(items, classifyObject(elem))
		default:
			items = append(items, PlainItem{Text: elem.String()})
			coercions = append(coercions, Coercion{
				Key:   key,
				Index: index,
				Kind:  kindOf(elem),
				Raw:   elem.Raw,
			})
		}
		index++

		return true
	})

	return List{Items: items}, coercions
}

func classifyObject(obj gjson.Result) Item {
	page, parts := ExtractPage(obj)

	if len(parts) == 1 && parts[0].Label == textKey {
		return CitedItem{Text: parts[0].Value, Page: page}
	}

	// Objects with a blank "text" and nothing else are still cited items.
	if len(parts) == 0 && hasOnlyText(obj) {
		return CitedItem{Page: page}
	}

	return MultiPartItem{Parts: parts, Page: page}
}

func hasOnlyText(obj gjson.Result) bool {
	only := false

	obj.ForEach(func(key, _ gjson.Result) bool {
		switch key.String() {
		case pageKey:
		case textKey:
			only = true
		default:
			only = false
			return false
		}
		return true
	})

	return only
}

func kindOf(v gjson.Result) string {
	switch {
	case v.Type == gjson.Null:
		return "null"
	case v.Type == gjson.True, v.Type == gjson.False:
		return "boolean"
	case v.Type == gjson.Number:
		return "number"
	case v.IsArray():
		return "array"
	default:
		return "unknown"
	}
}

func dropCoercions(coercions []Coercion, key string) []Coercion {
	kept := coercions[:0]
	for _, c := range coercions {
		if c.Key != key {
			kept = append(kept, c)
		}
	}

	return kept
}

// stripCodeFence removes a surrounding ```json fence that models sometimes
// wrap around their output.
func stripCodeFence(raw string) string {
	body := strings.TrimSpace(raw)
	if !strings.HasPrefix(body, "```") {
		return body
	}

	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```JSON")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	return strings.TrimSpace(body)
}
