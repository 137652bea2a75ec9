package store

// defaultConfig returns a fresh copy of the documented defaults for a node
// type. Callers get a new map every call — config is mutated in place by
// update(), so a shared default map would leak edits across nodes.
func defaultConfig(t NodeType) map[string]any {
	switch t {
	case NodeASR:
		return map[string]any{
			"rate":          16000,
			"chunkMs":       120,
			"holdMs":        250,
			"preMs":         450,
			"emaMs":         200,
			"phraseMin":     3,
			"phraseStableMs": 350,
			"inflightCap":   4,
			"dedupWindowMs": 1500,
		}
	case NodeLLM:
		return map[string]any{
			"stableMs":  250,
			"maxTurns":  20,
			"model":     "",
			"system":    "",
			"memoryOn":  true,
			"useSystem": false,
			"stream":    true,
			"useRelay":  false,
			"engine":    "ollama",
			"memory":    []any{},
			"ragCollection": "",
			"ragTopK":       3,
		}
	case NodeTTS:
		return map[string]any{
			"voice":      "",
			"model":      "",
			"mode":       "stream",
			"prerollMs":  40,
			"spacerMs":   30,
			"sampleRate": 24000,
			"useRelay":   false,
		}
	case NodeTextInput:
		return map[string]any{}
	case NodeTemplate:
		return map[string]any{
			"template": "",
		}
	case NodePeerDM:
		return map[string]any{
			"heartbeatIntervalSec": 15,
			"chunkBytes":           1800,
			"lingerEndMs":          150,
		}
	default:
		return map[string]any{}
	}
}
