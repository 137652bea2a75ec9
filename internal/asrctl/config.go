package asrctl

import "time"

// Config is the typed view of a NodeRecord's config map for an ASR node.
type Config struct {
	Rate          int
	ChunkMs       int
	HoldMs        int
	PreMs         int
	EmaMs         int
	PhraseMin     int
	PhraseStableMs int
	InflightCap   int
	DedupWindowMs int

	Live       bool
	SilenceMs  int
	Mode       string
	Prompt     string
	Model      string
}

// FromMap builds a Config from a NodeRecord.Config map, applying the
// documented defaults for anything absent.
func FromMap(m map[string]any) Config {
	c := Config{
		Rate: 16000, ChunkMs: 120, HoldMs: 250, PreMs: 450, EmaMs: 200,
		PhraseMin: 3, PhraseStableMs: 350, InflightCap: 4, DedupWindowMs: 1500,
		Live: true, SilenceMs: 800, Mode: "transcribe",
	}
	if v, ok := intVal(m, "rate"); ok {
		c.Rate = v
	}
	if v, ok := intVal(m, "chunkMs"); ok {
		c.ChunkMs = v
	}
	if v, ok := intVal(m, "holdMs"); ok {
		c.HoldMs = v
	}
	if v, ok := intVal(m, "preMs"); ok {
		c.PreMs = v
	}
	if v, ok := intVal(m, "emaMs"); ok {
		c.EmaMs = v
	}
	if v, ok := intVal(m, "phraseMin"); ok {
		c.PhraseMin = v
	}
	if v, ok := intVal(m, "phraseStableMs"); ok {
		c.PhraseStableMs = v
	}
	if v, ok := intVal(m, "inflightCap"); ok {
		c.InflightCap = v
	}
	if v, ok := intVal(m, "dedupWindowMs"); ok {
		c.DedupWindowMs = v
	}
	if v, ok := m["live"].(bool); ok {
		c.Live = v
	}
	if v, ok := intVal(m, "silenceMs"); ok {
		c.SilenceMs = v
	}
	if v, ok := m["mode"].(string); ok && v != "" {
		c.Mode = v
	}
	if v, ok := m["prompt"].(string); ok {
		c.Prompt = v
	}
	if v, ok := m["model"].(string); ok {
		c.Model = v
	}
	return c
}

func intVal(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func (c Config) vadConfig() VADConfig {
	return VADConfig{EmaMs: time.Duration(c.EmaMs) * time.Millisecond, HoldMs: time.Duration(c.HoldMs) * time.Millisecond}
}

func (c Config) phraseConfig() PhraseConfig {
	return PhraseConfig{PhraseMin: c.PhraseMin, PhraseStableMs: time.Duration(c.PhraseStableMs) * time.Millisecond}
}
