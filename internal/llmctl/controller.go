// Package llmctl implements the LLM Controller (C7): builds the chat
// message list for a turn, streams or single-shots the remote completion,
// splits tokens into sentences, and maintains the per-node memory window.
//
// Grounded on the teacher's internal/pipeline/llm.go (LLMChatClient,
// LLMRouter, Ollama NDJSON streaming client) for the remote-call shape,
// generalized here to emit onto port addresses instead of calling a TTS
// client directly, and internal/pipeline/pipeline.go's streamLLMWithTTS
// producer/consumer pattern for how streamed deltas feed a sentence
// splitter.
package llmctl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/graphrt/runtime/internal/graph"
	"github.com/graphrt/runtime/internal/ndjson"
	"github.com/graphrt/runtime/internal/rag"
	"github.com/graphrt/runtime/internal/relay"
	"github.com/graphrt/runtime/internal/sentence"
	"github.com/graphrt/runtime/internal/store"
	"github.com/graphrt/runtime/internal/transport"
)

var terminators = []string{"</s>", "<|eot_id|>"}

func stripTerminators(s string) string {
	for _, t := range terminators {
		s = strings.ReplaceAll(s, t, "")
	}
	return s
}

// Controller drives a single LLM node.
type Controller struct {
	nodeID string
	base   string
	auth   transport.Auth

	router *graph.Router
	mux    *transport.Mux
	ns     *store.NodeStore
	rag    *rag.Client // nil when this node has no knowledge base configured

	mu        sync.Mutex
	cfg       Config
	useSystem bool
}

// New creates a Controller for nodeID. ragClient may be nil, in which case
// turns are built without context retrieval.
func New(nodeID string, cfg Config, base string, auth transport.Auth, router *graph.Router, mux *transport.Mux, ns *store.NodeStore, ragClient *rag.Client) *Controller {
	return &Controller{
		nodeID:    nodeID,
		base:      base,
		auth:      auth,
		router:    router,
		mux:       mux,
		ns:        ns,
		rag:       ragClient,
		cfg:       cfg,
		useSystem: cfg.UseSystem,
	}
}

// OnSystem updates the system message and flips useSystem=true, per the
// "system" input contract.
func (c *Controller) OnSystem(payload any) {
	text := graph.Text(payload)
	c.mu.Lock()
	c.cfg.SystemPrompt = text
	c.useSystem = true
	c.mu.Unlock()
}

// OnPrompt starts a turn from the "prompt" input.
func (c *Controller) OnPrompt(payload any) {
	userMessage := graph.Text(payload)
	if strings.TrimSpace(userMessage) == "" {
		return
	}

	c.mu.Lock()
	cfg := c.cfg
	useSystem := c.useSystem
	c.mu.Unlock()

	ctx := context.Background()
	memory := c.loadMemory(ctx)
	messages := buildTurn(cfg.SystemPrompt, useSystem, cfg.MemoryOn, memory, userMessage, cfg.MaxTurns)
	messages = c.prependRAGContext(ctx, messages, userMessage)

	if cfg.Stream {
		c.runStreaming(ctx, cfg, messages, userMessage, memory)
	} else {
		c.runOnce(ctx, cfg, messages, userMessage, memory)
	}
}

// prependRAGContext retrieves top-K knowledge base hits for userMessage and,
// if any were found, prepends them as a leading system message ahead of
// everything buildTurn already produced. Additive: never replaces the
// conversation's own system prompt or memory window, and a no-op when this
// node has no knowledge base wired or retrieval finds nothing.
func (c *Controller) prependRAGContext(ctx context.Context, messages []Msg, userMessage string) []Msg {
	if c.rag == nil {
		return messages
	}
	text, err := c.rag.RetrieveContext(ctx, userMessage)
	if err != nil {
		slog.Warn("llmctl: rag retrieval failed", "node", c.nodeID, "error", err)
		return messages
	}
	if text == "" {
		return messages
	}
	ragMsg := Msg{Role: roleSystem, Content: "Relevant context:\n" + text}
	return append([]Msg{ragMsg}, messages...)
}

func (c *Controller) loadMemory(ctx context.Context) []Msg {
	rec, err := c.ns.Load(ctx, c.nodeID)
	if err != nil {
		return nil
	}
	raw, ok := rec.Config["memory"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var memory []Msg
	if err := json.Unmarshal(data, &memory); err != nil {
		return nil
	}
	return memory
}

func (c *Controller) saveMemory(ctx context.Context, memory []Msg) {
	if _, err := c.ns.Update(ctx, c.nodeID, map[string]any{"memory": memory}); err != nil {
		slog.Error("llmctl: persist memory failed", "node", c.nodeID, "error", err)
		return
	}
	c.router.SendFrom(c.nodeID, "memory", map[string]any{"type": "updated", "size": len(memory)})
}

func (c *Controller) emitDelta(s string) {
	if s == "" {
		return
	}
	c.router.SendFrom(c.nodeID, "delta", map[string]any{"nodeId": c.nodeID, "type": "text", "text": s, "eos": true})
}

func (c *Controller) emitFinal(s string) {
	if s == "" {
		return
	}
	c.router.SendFrom(c.nodeID, "delta", map[string]any{"nodeId": c.nodeID, "type": "text", "text": s, "eos": true})
	c.router.SendFrom(c.nodeID, "final", map[string]any{"nodeId": c.nodeID, "type": "text", "text": s, "eos": true})
}

// runStreaming posts stream:true, splits the NDJSON response into deltas,
// accumulates clean text, and feeds the sentence mux.
func (c *Controller) runStreaming(ctx context.Context, cfg Config, messages []Msg, userMessage string, memory []Msg) {
	body := chatRequest(messages, cfg.Model, true)

	var accum strings.Builder
	mux := sentence.New(cfg.StableMs)
	pump := ndjson.New()

	onLine := func(line string) {
		delta, _ := extractDelta(line)
		if delta == "" {
			return
		}
		clean := stripTerminators(delta)
		accum.WriteString(clean)
		mux.Push(clean, c.emitDelta)
	}

	var err error
	if cfg.UseRelay {
		err = c.streamViaRelay(ctx, body, pump, onLine)
	} else {
		err = c.streamDirect(ctx, body, pump, onLine)
	}

	pump.Flush(onLine)
	mux.Flush(c.emitFinal)

	if err != nil {
		slog.Error("llmctl: streaming turn failed", "node", c.nodeID, "error", err)
		return
	}

	final := accum.String()
	newMemory := updateMemory(memory, userMessage, final, cfg.MaxTurns)
	c.saveMemory(ctx, newMemory)
}

func (c *Controller) streamDirect(ctx context.Context, body map[string]any, pump *ndjson.Pump, onLine ndjson.OnLine) error {
	resp, err := c.mux.OpenDirectPostStream(ctx, c.base+"/api/chat", body, c.auth)
	if err != nil {
		return err
	}
	defer resp.Close()

	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Read(buf)
		if n > 0 {
			pump.Push(string(buf[:n]), onLine)
		}
		if rerr != nil {
			return nil
		}
	}
}

// streamViaRelay issues the chat POST over the relay's chunk-streaming
// path, reassembling out-of-order lines by seq before feeding the pump.
func (c *Controller) streamViaRelay(ctx context.Context, body map[string]any, pump *ndjson.Pump, onLine ndjson.OnLine) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	reorder := relay.NewReorder[string]()
	var mu sync.Mutex

	handlers := transport.StreamHandlers{
		OnLines: func(lines []relay.LineChunk) {
			mu.Lock()
			defer mu.Unlock()
			for _, lc := range lines {
				for _, ready := range reorder.Push(lc.Seq, lc.Line) {
					pump.Push(ready+"\n", onLine)
				}
			}
		},
	}

	req := relay.Request{
		URL: c.base + "/api/chat", Method: "POST",
		Headers: map[string]string{"Content-Type": "application/json"},
		JSON:    payload,
	}
	return c.mux.SendStream(ctx, req, handlers, 0)
}

// runOnce posts stream:false and passes the single response text through
// the sentence mux exactly once.
func (c *Controller) runOnce(ctx context.Context, cfg Config, messages []Msg, userMessage string, memory []Msg) {
	body := chatRequest(messages, cfg.Model, false)

	out, err := c.mux.PostJSON(ctx, c.base, "/api/chat", body, c.auth, false, 0)
	if err != nil {
		slog.Error("llmctl: non-streaming turn failed", "node", c.nodeID, "error", err)
		return
	}

	text := extractNonStreamText(out)
	text = stripTerminators(text)

	mux := sentence.New(cfg.StableMs)
	mux.Push(text, c.emitDelta)
	mux.Flush(c.emitFinal)

	newMemory := updateMemory(memory, userMessage, text, cfg.MaxTurns)
	c.saveMemory(ctx, newMemory)
}

func chatRequest(messages []Msg, model string, stream bool) map[string]any {
	return map[string]any{
		"model":    model,
		"stream":   stream,
		"messages": messages,
	}
}

// extractDelta pulls a token delta from one NDJSON line via, in order,
// message.content, response, delta. Reports terminal=true on done/complete.
func extractDelta(line string) (delta string, terminal bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return "", false
	}

	if done, _ := obj["done"].(bool); done {
		terminal = true
	}
	if complete, _ := obj["complete"].(bool); complete {
		terminal = true
	}

	if msg, ok := obj["message"].(map[string]any); ok {
		if s, ok := msg["content"].(string); ok && s != "" {
			return s, terminal
		}
	}
	if s, ok := obj["response"].(string); ok && s != "" {
		return s, terminal
	}
	if s, ok := obj["delta"].(string); ok && s != "" {
		return s, terminal
	}

	if terminal {
		if s, ok := obj["final"].(string); ok && s != "" {
			return s, terminal
		}
		if msg, ok := obj["message"].(map[string]any); ok {
			if s, ok := msg["content"].(string); ok {
				return s, terminal
			}
		}
	}

	return "", terminal
}

func extractNonStreamText(out any) string {
	obj, ok := out.(map[string]any)
	if !ok {
		return fmt.Sprint(out)
	}
	if msg, ok := obj["message"].(map[string]any); ok {
		if s, ok := msg["content"].(string); ok {
			return s
		}
	}
	if s, ok := obj["response"].(string); ok {
		return s
	}
	return ""
}
