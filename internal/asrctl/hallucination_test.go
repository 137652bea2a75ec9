package asrctl

import (
	"testing"
	"time"
)

func TestIsHallucinationRequiresSignOffMatch(t *testing.T) {
	if IsHallucination("the weather today is nice", Silence, false, ServerMeta{}) {
		t.Fatal("non-sign-off text must never be flagged")
	}
}

func TestIsHallucinationRequiresShortText(t *testing.T) {
	long := "thanks for watching this extremely long and detailed video essay about gophers"
	if IsHallucination(long, Silence, false, ServerMeta{}) {
		t.Fatal("sign-off match over 7 words must not be flagged")
	}
}

func TestIsHallucinationFlagsWhenNoVoiceObserved(t *testing.T) {
	if !IsHallucination("thanks for watching", Voice, false, ServerMeta{}) {
		t.Fatal("sign-off + short + no voice ever observed should be flagged regardless of vad/meta")
	}
}

func TestIsHallucinationFlagsDuringSilence(t *testing.T) {
	if !IsHallucination("like and subscribe", Silence, true, ServerMeta{}) {
		t.Fatal("sign-off + short + currently Silence should be flagged")
	}
}

func TestIsHallucinationNeedsCorroborationDuringVoice(t *testing.T) {
	// voice is ongoing, some voice was observed, and confidence signals are
	// all healthy: nothing corroborates the sign-off match.
	meta := ServerMeta{NoSpeechProb: 0.1, AvgLogprob: -0.2, CompressionRatio: 1.5}
	if IsHallucination("see you next time", Voice, true, meta) {
		t.Fatal("should not flag a confident in-voice sign-off with no corroborating signal")
	}
}

func TestIsHallucinationFlagsOnLowConfidenceDuringVoice(t *testing.T) {
	meta := ServerMeta{NoSpeechProb: 0.9}
	if !IsHallucination("see you next video", Voice, true, meta) {
		t.Fatal("high no_speech_prob should corroborate the sign-off match even mid-voice")
	}

	meta = ServerMeta{AvgLogprob: -2.0}
	if !IsHallucination("don't forget to subscribe", Voice, true, meta) {
		t.Fatal("low avg_logprob should corroborate the sign-off match")
	}

	meta = ServerMeta{CompressionRatio: 3.0}
	if !IsHallucination("link in the description", Voice, true, meta) {
		t.Fatal("high compression ratio should corroborate the sign-off match")
	}
}

func TestDedupCatchesRepeatWithinWindow(t *testing.T) {
	d := NewDedup(1500 * time.Millisecond)
	now := time.Now()

	if d.Check("hello there", now) {
		t.Fatal("first occurrence is never a duplicate")
	}
	if !d.Check("hello there", now.Add(500*time.Millisecond)) {
		t.Fatal("identical text within the window should be flagged as a duplicate")
	}
}

func TestDedupAllowsRepeatAfterWindow(t *testing.T) {
	d := NewDedup(1500 * time.Millisecond)
	now := time.Now()

	d.Check("hello there", now)
	if d.Check("hello there", now.Add(2*time.Second)) {
		t.Fatal("identical text after the window elapses should not be flagged")
	}
}

func TestDedupAllowsDifferentText(t *testing.T) {
	d := NewDedup(1500 * time.Millisecond)
	now := time.Now()

	d.Check("hello there", now)
	if d.Check("goodbye now", now.Add(100*time.Millisecond)) {
		t.Fatal("distinct text should never be flagged as a duplicate")
	}
}

func TestTrimmedEquals(t *testing.T) {
	if !TrimmedEquals("  hi  ", "hi") {
		t.Fatal("should ignore surrounding whitespace")
	}
	if TrimmedEquals("hi", "bye") {
		t.Fatal("distinct text should not be equal")
	}
}
