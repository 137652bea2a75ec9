package main

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/graphrt/runtime/internal/env"
)

// tuning holds knobs loaded from graphd.json: values that may eventually
// move into per-node NodeStore config but for now ship as process-wide
// defaults, mirroring the teacher's gateway.json/tuning split.
type tuning struct {
	LLMSystemPrompt string  `json:"llm_system_prompt"`
	LLMMaxTokens    int     `json:"llm_max_tokens"`
	VADSpeechThresholdDB float64 `json:"vad_speech_threshold_db"`
	OpenAIURL       string  `json:"openai_url"`
	OpenAIModel     string  `json:"openai_model"`
	AnthropicURL    string  `json:"anthropic_url"`
	AnthropicModel  string  `json:"anthropic_model"`
}

func defaultTuning() tuning {
	return tuning{
		LLMSystemPrompt:      "You are a helpful assistant. Keep responses concise.",
		LLMMaxTokens:         2048,
		VADSpeechThresholdDB: -25,
		OpenAIURL:            "https://api.openai.com",
		OpenAIModel:          "gpt-4.1-nano",
		AnthropicURL:         "https://api.anthropic.com",
		AnthropicModel:       "claude-sonnet-4-5",
	}
}

// loadTuning reads graphd.json if present, otherwise returns defaults.
func loadTuning(path string) tuning {
	t := defaultTuning()
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Info("no config file, using defaults", "path", path)
		return t
	}
	if err := json.Unmarshal(data, &t); err != nil {
		slog.Warn("bad config file, using defaults", "path", path, "error", err)
		return defaultTuning()
	}
	slog.Info("loaded config", "path", path)
	return t
}

// deployment holds env-var-sourced deployment settings: URLs, ports,
// keys, connection strings. Loaded once at boot via internal/env.
type deployment struct {
	port      string
	redisURL  string
	relayAddr string

	ollamaURL   string
	ollamaModel string

	openaiAPIKey    string
	anthropicAPIKey string

	whisperServerURL string
	whisperPrompt    string

	piperURL string

	qdrantURL      string
	embeddingModel string
}

func loadDeployment() deployment {
	return deployment{
		port:      env.Str("GRAPHD_PORT", "8100"),
		redisURL:  env.Str("REDIS_URL", ""),
		relayAddr: env.Str("RELAY_ADDR", ""),

		ollamaURL:   env.Str("OLLAMA_URL", "http://localhost:11434"),
		ollamaModel: env.Str("OLLAMA_MODEL", "llama3.2:3b"),

		openaiAPIKey:    env.Str("OPENAI_API_KEY", ""),
		anthropicAPIKey: env.Str("ANTHROPIC_API_KEY", ""),

		whisperServerURL: env.Str("WHISPER_SERVER_URL", ""),
		whisperPrompt:    env.Str("WHISPER_PROMPT", "Transcript:"),

		piperURL: env.Str("PIPER_URL", "http://localhost:5100"),

		qdrantURL:      env.Str("QDRANT_URL", ""),
		embeddingModel: env.Str("EMBEDDING_MODEL", "nomic-embed-text"),
	}
}
