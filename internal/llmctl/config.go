package llmctl

// Config tunes a single LLM node's message build and streaming behavior.
type Config struct {
	MemoryOn      bool
	UseSystem     bool
	MaxTurns      int
	Model         string
	SystemPrompt  string
	Stream        bool
	Engine        string
	StableMs      int
	UseRelay      bool
	RAGCollection string
	RAGTopK       int
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		MemoryOn:  true,
		UseSystem: false,
		MaxTurns:  20,
		Stream:    true,
		Engine:    "ollama",
		StableMs:  250,
	}
}

// FromMap builds a Config from a NodeRecord.Config map, applying
// DefaultConfig first and overriding from whatever keys are present.
func FromMap(m map[string]any) Config {
	cfg := DefaultConfig()
	if v, ok := m["memoryOn"].(bool); ok {
		cfg.MemoryOn = v
	}
	if v, ok := m["useSystem"].(bool); ok {
		cfg.UseSystem = v
	}
	if v, ok := intVal(m["maxTurns"]); ok {
		cfg.MaxTurns = v
	}
	if v, ok := m["model"].(string); ok {
		cfg.Model = v
	}
	if v, ok := m["system"].(string); ok {
		cfg.SystemPrompt = v
	}
	if v, ok := m["stream"].(bool); ok {
		cfg.Stream = v
	}
	if v, ok := m["engine"].(string); ok && v != "" {
		cfg.Engine = v
	}
	if v, ok := intVal(m["stableMs"]); ok {
		cfg.StableMs = v
	}
	if v, ok := m["useRelay"].(bool); ok {
		cfg.UseRelay = v
	}
	if v, ok := m["ragCollection"].(string); ok {
		cfg.RAGCollection = v
	}
	if v, ok := intVal(m["ragTopK"]); ok {
		cfg.RAGTopK = v
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
