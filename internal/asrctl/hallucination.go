package asrctl

import (
	"regexp"
	"strings"
	"time"
)

// signOffRe matches generic broadcast sign-offs that whisper-family models
// are prone to hallucinating during silence or low-confidence audio.
// Grounded on the noise-transcript filtering in the teacher's
// internal/pipeline/pipeline.go isNoiseTranscript, generalized from a
// fixed phrase list to the fuller pattern + corroborating-condition guard
// the spec requires.
var signOffRe = regexp.MustCompile(`(?i)thanks for watching|like and subscribe|link in the description|don't forget to subscribe|see you (in the )?next (video|time)`)

// ServerMeta carries the recognizer's confidence signals for a final
// event, used only by the hallucination guard.
type ServerMeta struct {
	NoSpeechProb     float64
	AvgLogprob       float64
	CompressionRatio float64
}

// IsHallucination reports whether a candidate final transcript should be
// dropped: it must match the sign-off pattern, be short (<=7 words), and
// have at least one corroborating condition: no voice observed yet in the
// session, the VAD currently in Silence, or low-confidence server metadata.
func IsHallucination(text string, vad VoiceState, anyVoiceObserved bool, meta ServerMeta) bool {
	if !signOffRe.MatchString(text) {
		return false
	}
	if wordCount(text) > 7 {
		return false
	}
	lowConfidence := meta.NoSpeechProb > 0.6 || meta.AvgLogprob < -1.0 || meta.CompressionRatio > 2.4
	return !anyVoiceObserved || vad == Silence || lowConfidence
}

// Dedup drops a final transcript if it repeats the immediately prior one
// within a short window.
type Dedup struct {
	windowMs time.Duration
	lastText string
	lastAt   time.Time
	seen     bool
}

// NewDedup creates a dedup guard with the given window (default 1500ms).
func NewDedup(window time.Duration) *Dedup {
	return &Dedup{windowMs: window}
}

// Check reports whether text at time now is a duplicate of the last final
// seen, and records text as the new last-seen final regardless.
func (d *Dedup) Check(text string, now time.Time) bool {
	dup := d.seen && text == d.lastText && now.Sub(d.lastAt) < d.windowMs
	d.lastText = text
	d.lastAt = now
	d.seen = true
	return dup
}

// TrimmedEquals reports whether a and b are equal once surrounding
// whitespace is trimmed from both.
func TrimmedEquals(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
