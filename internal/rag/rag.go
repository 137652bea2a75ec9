// Package rag retrieves relevant context from a vector knowledge base and
// formats it for injection as a leading system message ahead of the memory
// window.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/graphrt/runtime/internal/metrics"
)

// Client retrieves relevant context from a vector knowledge base.
type Client struct {
	embedder       *EmbeddingClient
	qdrant         *QdrantClient
	collection     string
	topK           int
	scoreThreshold float64
}

// Config holds configuration for a Client.
type Config struct {
	OllamaURL      string
	EmbedModel     string
	QdrantURL      string
	Collection     string
	TopK           int
	ScoreThreshold float64
	PoolSize       int
}

// New creates a RAG retrieval client, or returns nil if cfg names no
// collection (RAG is an opt-in per-node pre-step, not a default).
func New(cfg Config) *Client {
	if cfg.Collection == "" {
		return nil
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	return &Client{
		embedder:       NewEmbeddingClient(cfg.OllamaURL, cfg.EmbedModel, cfg.PoolSize),
		qdrant:         NewQdrantClient(cfg.QdrantURL, cfg.PoolSize),
		collection:     cfg.Collection,
		topK:           cfg.TopK,
		scoreThreshold: cfg.ScoreThreshold,
	}
}

// RetrieveContext embeds the query, searches the knowledge base, and returns
// formatted context. Returns empty string if no relevant results found.
func (c *Client) RetrieveContext(ctx context.Context, query string) (string, error) {
	start := time.Now()

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	results, err := c.qdrant.Search(ctx, c.collection, vector, c.topK, c.scoreThreshold)
	if err != nil {
		return "", fmt.Errorf("qdrant search: %w", err)
	}

	metrics.RAGDuration.Observe(time.Since(start).Seconds())

	if len(results) == 0 {
		return "", nil
	}

	return formatResults(results), nil
}

func formatResults(results []SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		text, ok := r.Payload["text"].(string)
		if !ok {
			text = fmt.Sprintf("%v", r.Payload["text"])
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n---\n")
}
