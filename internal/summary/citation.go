package summary

import (
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

const pageKey = "page"

// ExtractPage splits a list-item object into its page citation and its
// remaining parts. The page key never appears in the returned parts; the page
// is reported only when it is a positive integer, otherwise 0. Parts with blank
// values are dropped and duplicate keys keep their first position with the
// last value.
func ExtractPage(obj gjson.Result) (int, []Part) {
	if !obj.IsObject() {
		return 0, nil
	}

	var (
		page  int
		parts []Part
		index = make(map[string]int)
	)

	obj.ForEach(func(key, value gjson.Result) bool {
		label := key.String()
		if label == pageKey {
			page = pageNumber(value)
			return true
		}

		text := strings.TrimSpace(value.String())

		if i, ok := index[label]; ok {
			parts[i].Value = text
			return true
		}

		index[label] = len(parts)
		parts = append(parts, Part{Label: label, Value: text})

		return true
	})

	kept := parts[:0]
	for _, p := range parts {
		if p.Value != "" {
			kept = append(kept, p)
		}
	}

	return page, kept
}

func pageNumber(value gjson.Result) int {
	if value.Type != gjson.Number {
		return 0
	}

	n := value.Num
	if n < 1 || n > math.MaxInt32 || n != math.Trunc(n) {
		return 0
	}

	return int(n)
}
