package markdown

import "testing"

func TestEscapeV2(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "plain text", want: "plain text"},
		{input: "p. 12", want: `p\. 12`},
		{input: "a_b*c[d]", want: `a\_b\*c\[d\]`},
		{input: `back\slash`, want: `back\\slash`},
		{input: "Привет!", want: `Привет\!`},
	}

	for _, tt := range tests {
		if got := EscapeV2(tt.input); got != tt.want {
			t.Fatalf("unexpected escape of %q: %q", tt.input, got)
		}
	}
}

func TestFromSummary(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "Focus **deeply** now.", want: `Focus *deeply* now\.`},
		{input: "**a** and **b**", want: `*a* and *b*`},
		{input: "unpaired ** marker", want: `unpaired \*\* marker`},
		{input: "empty **** bold", want: `empty \*\*\*\* bold`},
		{input: "no emphasis", want: "no emphasis"},
	}

	for _, tt := range tests {
		if got := FromSummary(tt.input); got != tt.want {
			t.Fatalf("unexpected conversion of %q: %q", tt.input, got)
		}
	}
}

func TestBoldItalic(t *testing.T) {
	if got := Bold("p. 1"); got != `*p\. 1*` {
		t.Fatalf("unexpected bold: %q", got)
	}
	if got := Italic("(p. 1)"); got != `_\(p\. 1\)_` {
		t.Fatalf("unexpected italic: %q", got)
	}
	if Bold("") != "" || Italic("") != "" {
		t.Fatalf("expected empty output for empty input")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("abcdefgh", 5); got != "abcd…" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate(`abc\.def`, 5); got != "abc…" {
		t.Fatalf("unexpected truncation across escape: %q", got)
	}
}
