package ttsctl

const (
	// sourceSampleRate is the fixed PCM16LE rate the remote TTS service
	// streams at in "stream" mode, independent of the sink's own rate.
	sourceSampleRate = 22050

	defaultPrerollMs = 40
	defaultSpacerMs  = 30
)

// Config tunes a single TTS node's synthesis and playback behavior.
type Config struct {
	Voice      string
	Model      string
	Mode       string // "stream" or "file"
	PrerollMs  int
	SpacerMs   int
	SampleRate int // sink playback rate; resampled from sourceSampleRate when it differs
	UseRelay   bool
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		Mode:       "stream",
		PrerollMs:  defaultPrerollMs,
		SpacerMs:   defaultSpacerMs,
		SampleRate: 24000,
	}
}

// FromMap builds a Config from a NodeRecord.Config map, applying
// DefaultConfig first and overriding from whatever keys are present.
func FromMap(m map[string]any) Config {
	cfg := DefaultConfig()
	if v, ok := m["voice"].(string); ok {
		cfg.Voice = v
	}
	if v, ok := m["model"].(string); ok {
		cfg.Model = v
	}
	if v, ok := m["mode"].(string); ok && v != "" {
		cfg.Mode = v
	}
	if v, ok := intVal(m["prerollMs"]); ok {
		cfg.PrerollMs = v
	}
	if v, ok := intVal(m["spacerMs"]); ok {
		cfg.SpacerMs = v
	}
	if v, ok := intVal(m["sampleRate"]); ok && v > 0 {
		cfg.SampleRate = v
	}
	if v, ok := m["useRelay"].(bool); ok {
		cfg.UseRelay = v
	}
	return cfg
}

func intVal(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
