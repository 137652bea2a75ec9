package asrctl

import (
	"regexp"
	"strings"
	"time"
)

// PhraseConfig tunes the phrase-boundary detector driven off partial
// transcript growth.
type PhraseConfig struct {
	PhraseMin       int           // minimum whitespace-delimited tokens before a phrase can emit
	PhraseStableMs  time.Duration // emit after this much quiet even without punctuation
}

// DefaultPhraseConfig matches the documented defaults.
func DefaultPhraseConfig() PhraseConfig {
	return PhraseConfig{PhraseMin: 3, PhraseStableMs: 350 * time.Millisecond}
}

var phraseEndRe = regexp.MustCompile(`[.!?;:,]\s*$`)

// PhraseDetector accumulates partial-transcript growth into a pending
// phrase and decides when it is ready to emit on the "phrase" port.
type PhraseDetector struct {
	cfg PhraseConfig

	lastPartial string
	pend        string
	pendSince   time.Time
}

// NewPhraseDetector creates a detector with cfg.
func NewPhraseDetector(cfg PhraseConfig) *PhraseDetector {
	return &PhraseDetector{cfg: cfg}
}

// Update feeds a new partial transcript at time now. If the new partial is
// a prefix extension of the prior one, the delta is accumulated into the
// pending phrase; otherwise the pending phrase is reset to the new text.
// Returns the phrase to emit and true if it is ready now.
func (d *PhraseDetector) Update(partial string, now time.Time) (string, bool) {
	if strings.HasPrefix(partial, d.lastPartial) {
		delta := partial[len(d.lastPartial):]
		if d.pend == "" {
			d.pendSince = now
		}
		d.pend += delta
	} else {
		d.pend = partial
		d.pendSince = now
	}
	d.lastPartial = partial

	return d.checkReady(now)
}

// Tick re-checks stability without new text, for a caller polling on a
// timer to catch the PhraseStableMs-without-punctuation case.
func (d *PhraseDetector) Tick(now time.Time) (string, bool) {
	return d.checkReady(now)
}

func (d *PhraseDetector) checkReady(now time.Time) (string, bool) {
	if d.pend == "" {
		return "", false
	}
	if wordCount(d.pend) < d.cfg.PhraseMin {
		return "", false
	}
	stable := now.Sub(d.pendSince) >= d.cfg.PhraseStableMs
	if phraseEndRe.MatchString(d.pend) || stable {
		out := d.pend
		d.pend = ""
		return out, true
	}
	return "", false
}

// Reset clears all phrase-detector state, called on session end.
func (d *PhraseDetector) Reset() {
	d.lastPartial = ""
	d.pend = ""
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
