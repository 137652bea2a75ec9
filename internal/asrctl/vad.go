// Package asrctl implements the ASR Controller (C6): a voice-activity
// state machine that opens/closes a remote streaming recognition session,
// paces PCM frames to it, ingests partial/phrase/final events, and guards
// against hallucinated transcripts.
//
// Grounded on the energy-based VAD in internal/audio/vad.go, generalized
// from a single dB threshold to the EMA/two-threshold design this system
// requires, driven here by a long-lived uplink state machine instead of
// that VAD's single-shot speech-segment buffering.
package asrctl

import (
	"math"
	"time"
)

// VoiceState is silence or voice.
type VoiceState int

const (
	Silence VoiceState = iota
	Voice
)

// VADConfig tunes the EMA voice-activity detector.
type VADConfig struct {
	EmaMs  time.Duration // EMA time constant
	HoldMs time.Duration // sustained offTh duration required before voice->silence
}

// DefaultVADConfig matches the documented defaults.
func DefaultVADConfig() VADConfig {
	return VADConfig{EmaMs: 200 * time.Millisecond, HoldMs: 250 * time.Millisecond}
}

// VAD tracks an exponential moving average of per-buffer RMS and derives
// a silence/voice state from it with asymmetric on/off thresholds.
//
// onTh/offTh are fixed once from the RMS of the first buffer processed
// (the ambient noise floor at session start) rather than recomputed from
// every incoming buffer's own RMS: a per-tick threshold can never be
// crossed by decay, since the ema always converges toward — and never
// below — the current buffer's own RMS it is being pulled toward.
type VAD struct {
	cfg VADConfig

	state        VoiceState
	ema          float64
	lastTick     time.Time
	haveBaseline bool
	baseline     float64
	belowOffAt   time.Time // when ema first dropped below offTh while in Voice
	haveBelowAt  bool
}

// NewVAD creates a VAD starting in Silence.
func NewVAD(cfg VADConfig) *VAD {
	return &VAD{cfg: cfg, state: Silence}
}

// rms computes root-mean-square energy of a float32 buffer in [-1, 1].
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Tick feeds one buffer's worth of samples at time now and returns the
// state after processing, plus whether this tick is a silence->voice or
// voice->silence transition.
func (v *VAD) Tick(samples []float32, now time.Time) (state VoiceState, transitioned bool) {
	r := rms(samples)

	if v.lastTick.IsZero() {
		v.ema = r
		v.lastTick = now
	} else {
		dt := now.Sub(v.lastTick).Seconds()
		alpha := 1 - math.Exp(-dt/v.cfg.EmaMs.Seconds())
		v.ema = (1-alpha)*v.ema + alpha*r
		v.lastTick = now
	}

	if !v.haveBaseline {
		v.baseline = r
		if v.baseline < 1e-4 {
			v.baseline = 1e-4
		}
		v.haveBaseline = true
	}
	onTh := v.baseline
	offTh := 0.7 * v.baseline

	switch v.state {
	case Silence:
		if v.ema >= onTh {
			v.state = Voice
			v.haveBelowAt = false
			return Voice, true
		}
	case Voice:
		if v.ema < offTh {
			if !v.haveBelowAt {
				v.belowOffAt = now
				v.haveBelowAt = true
			} else if now.Sub(v.belowOffAt) >= v.cfg.HoldMs {
				v.state = Silence
				v.haveBelowAt = false
				return Silence, true
			}
		} else {
			v.haveBelowAt = false
		}
	}
	return v.state, false
}

// State returns the current state without feeding new samples.
func (v *VAD) State() VoiceState { return v.state }
