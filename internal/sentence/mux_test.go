package sentence

import (
	"strings"
	"testing"
)

func TestMuxSentenceStreaming(t *testing.T) {
	mux := New(250)
	var got []string
	emit := func(s string) { got = append(got, s) }

	deltas := []string{"Hel", "lo wor", "ld. How", " are you?"}
	for _, d := range deltas {
		mux.Push(d, emit)
	}
	mux.Flush(emit)

	if len(got) != 2 {
		t.Fatalf("want 2 sentences, got %d: %q", len(got), got)
	}
	if got[0] != "Hello world." {
		t.Errorf("first sentence = %q, want %q", got[0], "Hello world.")
	}
	if got[1] != "How are you?" {
		t.Errorf("second sentence = %q, want %q", got[1], "How are you?")
	}
}

// TestMuxConcatenationInvariant checks P1: concatenating every emitted
// sentence reproduces the pushed text up to whitespace at boundaries.
func TestMuxConcatenationInvariant(t *testing.T) {
	cases := [][]string{
		{"One. Two. Three."},
		{"One.", " Two.", " Three."},
		{"No boundary here"},
		{"Para one.\n\nPara two."},
		{"- bullet one\n- bullet two"},
	}

	for _, deltas := range cases {
		mux := New(50)
		var got []string
		emit := func(s string) { got = append(got, s) }
		for _, d := range deltas {
			mux.Push(d, emit)
		}
		mux.Flush(emit)

		pushed := normalize(strings.Join(deltas, ""))
		produced := normalize(strings.Join(got, " "))
		if pushed != produced {
			t.Errorf("deltas %v: pushed=%q produced=%q", deltas, pushed, produced)
		}
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestMuxFlushWithoutBoundary(t *testing.T) {
	mux := New(250)
	var got []string
	mux.Push("no terminator yet", func(s string) { got = append(got, s) })
	if len(got) != 0 {
		t.Fatalf("expected no emission before flush, got %v", got)
	}
	mux.Flush(func(s string) { got = append(got, s) })
	if len(got) != 1 || got[0] != "no terminator yet" {
		t.Fatalf("flush emission = %v", got)
	}
}
