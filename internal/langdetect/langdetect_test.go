package langdetect

import (
	"strings"
	"testing"
)

func TestDetectText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Language
	}{
		{name: "english", text: "Systems beat goals when habits compound.", want: English},
		{name: "finnish", text: "Kirja kertoo, että tavat ovat tärkeitä.", want: Finnish},
		{name: "german eszett", text: "Die Maßnahme hilft.", want: German},
		{name: "german words", text: "Das Buch ist gut und klar.", want: German},
		{name: "french", text: "Les habitudes sont importantes pour réussir.", want: French},
		{name: "spanish tilde", text: "El año pasado cambió todo.", want: Spanish},
		{name: "spanish words", text: "Los hábitos pequeños para crecer.", want: Spanish},
		{name: "swedish diacritics", text: "Vanor gör skillnad över tid.", want: Swedish},
		{name: "swedish words", text: "Boken handlar om vanor och mål.", want: Swedish},
		{name: "norwegian", text: "Leseren bør gjøre små endringer.", want: Norwegian},
		{name: "danish", text: "Læseren bør gøre små ændringer.", want: Danish},
		{name: "nordic fallback", text: "Små skridt blir større.", want: Norwegian},
		{name: "empty", text: "", want: English},
	}

	for _, tt := range tests {
		if got := DetectText(tt.text); got != tt.want {
			t.Fatalf("unexpected language for %s: %q", tt.name, got)
		}
	}
}

func TestDetectUsesWholeWords(t *testing.T) {
	// "understand" contains "und" and "stand"; only whole words count.
	if got := DetectText("Understand the sundial."); got != English {
		t.Fatalf("unexpected language: %q", got)
	}
}

func TestDetectDocumentIgnoresTitleAndKeys(t *testing.T) {
	raw := `{"title":"Das Kapital und mehr","key_insights":[{"text":"Capital grows over time","page":4}]}`

	if got := Detect(raw); got != English {
		t.Fatalf("unexpected language: %q", got)
	}
}

func TestDetectFallsBackToRawText(t *testing.T) {
	if got := Detect("Ceci est une note pour vous"); got != French {
		t.Fatalf("unexpected language: %q", got)
	}
}

func TestDetectInspectsOnlySample(t *testing.T) {
	raw := `{"overview":"` + strings.Repeat("a ", SampleRunes) + `und"}`

	if got := Detect(raw); got != English {
		t.Fatalf("unexpected language: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("ääää", 2); got != "ää" {
		t.Fatalf("unexpected truncation: %q", got)
	}

	if got := truncate("abc", 5); got != "abc" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}
