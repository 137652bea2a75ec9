package asrctl

import (
	"testing"
	"time"
)

func TestPhraseDetectorAccumulatesPrefixGrowth(t *testing.T) {
	d := NewPhraseDetector(PhraseConfig{PhraseMin: 3, PhraseStableMs: time.Hour})
	now := time.Now()

	if _, ready := d.Update("hello", now); ready {
		t.Fatal("should not be ready yet: below PhraseMin and no punctuation")
	}
	phrase, ready := d.Update("hello there", now)
	if ready {
		t.Fatal("still below PhraseMin")
	}
	if phrase != "" {
		t.Fatalf("phrase = %q, want empty while not ready", phrase)
	}
}

func TestPhraseDetectorResetsOnNonPrefix(t *testing.T) {
	d := NewPhraseDetector(DefaultPhraseConfig())
	now := time.Now()

	d.Update("hello world", now)
	// a correction, not a growth of the prior partial
	d.Update("goodbye", now)

	if d.lastPartial != "goodbye" {
		t.Fatalf("lastPartial = %q, want replaced by non-prefix partial", d.lastPartial)
	}
	if d.pend != "goodbye" {
		t.Fatalf("pend = %q, want reset to the new partial", d.pend)
	}
}

func TestPhraseDetectorEmitsOnPunctuation(t *testing.T) {
	d := NewPhraseDetector(PhraseConfig{PhraseMin: 2, PhraseStableMs: time.Hour})
	now := time.Now()

	phrase, ready := d.Update("one two three.", now)
	if !ready {
		t.Fatal("expected ready: meets PhraseMin and ends in punctuation")
	}
	if phrase != "one two three." {
		t.Fatalf("phrase = %q", phrase)
	}
	// pending buffer is cleared after emission
	if d.pend != "" {
		t.Fatalf("pend = %q, want cleared after emit", d.pend)
	}
}

func TestPhraseDetectorBelowMinDoesNotEmitOnPunctuation(t *testing.T) {
	d := NewPhraseDetector(PhraseConfig{PhraseMin: 5, PhraseStableMs: time.Hour})
	now := time.Now()

	_, ready := d.Update("hi.", now)
	if ready {
		t.Fatal("should not emit: word count below PhraseMin even with punctuation")
	}
}

func TestPhraseDetectorEmitsOnStability(t *testing.T) {
	d := NewPhraseDetector(PhraseConfig{PhraseMin: 2, PhraseStableMs: 200 * time.Millisecond})
	now := time.Now()

	if _, ready := d.Update("one two three", now); ready {
		t.Fatal("not stable yet")
	}

	later := now.Add(250 * time.Millisecond)
	phrase, ready := d.Tick(later)
	if !ready {
		t.Fatal("expected ready after PhraseStableMs elapsed without new text")
	}
	if phrase != "one two three" {
		t.Fatalf("phrase = %q", phrase)
	}
}

func TestPhraseDetectorResetClearsState(t *testing.T) {
	d := NewPhraseDetector(DefaultPhraseConfig())
	now := time.Now()
	d.Update("partial text here", now)

	d.Reset()

	if d.lastPartial != "" || d.pend != "" {
		t.Fatal("Reset should clear lastPartial and pend")
	}
	if _, ready := d.Tick(now.Add(time.Second)); ready {
		t.Fatal("no pending phrase should be ready after Reset")
	}
}
