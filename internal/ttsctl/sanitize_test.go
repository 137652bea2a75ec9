package ttsctl

import "testing"

func TestSanitizeUnifiesCurlyQuotes(t *testing.T) {
	got := Sanitize("don’t")
	if got != "don't" {
		t.Fatalf("Sanitize = %q, want %q", got, "don't")
	}
}

func TestSanitizeStripsURLs(t *testing.T) {
	got := Sanitize("see https://example.com/path for details")
	want := "see for details"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

func TestSanitizeStripsMarkdownEmphasis(t *testing.T) {
	got := Sanitize("this is **bold** and _italic_ and `code`")
	want := "this is bold and italic and code"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

func TestSanitizeStripsMarkdownHeader(t *testing.T) {
	got := Sanitize("## Section Title")
	want := "Section Title"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

func TestSanitizeCollapsesEllipsis(t *testing.T) {
	got := Sanitize("wait for it.....")
	want := "wait for it."
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

func TestSanitizeCollapsesUnicodeEllipsis(t *testing.T) {
	got := Sanitize("wait for it…")
	want := "wait for it."
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

func TestSanitizeRemovesQuotesAndBrackets(t *testing.T) {
	got := Sanitize(`she said "hello" (quietly)`)
	want := "she said hello quietly"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

func TestSanitizeCompressesWhitespace(t *testing.T) {
	got := Sanitize("too    many     spaces")
	want := "too many spaces"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

func TestSanitizeNormalizesPunctuationSpacing(t *testing.T) {
	got := Sanitize("hi ,there.friend")
	want := "hi, there. friend"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

func TestSanitizeEmptyInputReturnsEmpty(t *testing.T) {
	if got := Sanitize("   "); got != "" {
		t.Fatalf("Sanitize(blank) = %q, want empty", got)
	}
}
