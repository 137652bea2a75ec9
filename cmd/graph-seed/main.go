// Command graph-seed seeds a fresh NodeStore with a demo graph (an ASR
// node wired to an LLM node wired to a TTS node, default configs) for
// local development against graphd, mirroring the teacher's cmd/seed in
// shape: a flag-driven CLI with REDIS_URL/OLLAMA_URL-style env defaults,
// no interactive input, idempotent by default.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/graphrt/runtime/internal/env"
	"github.com/graphrt/runtime/internal/store"
	"github.com/graphrt/runtime/internal/store/memkv"
	"github.com/graphrt/runtime/internal/store/rediskv"
	"github.com/redis/go-redis/v9"
)

func main() {
	redisURL := flag.String("redis-url", env.Str("REDIS_URL", ""), "Redis URL (empty uses an in-process store, discarded on exit)")
	asrID := flag.String("asr-id", "asr-1", "ASR node id")
	llmID := flag.String("llm-id", "llm-1", "LLM node id")
	ttsID := flag.String("tts-id", "tts-1", "TTS node id")
	engine := flag.String("engine", "ollama", "LLM engine: ollama, openai, or anthropic")
	force := flag.Bool("force", false, "overwrite an existing workspace")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	kv := buildKV(ctx, *redisURL)
	ns := store.New(kv)

	existing, err := ns.LoadWorkspace(ctx)
	if err != nil {
		slog.Error("load workspace", "error", err)
		os.Exit(1)
	}
	if len(existing.Nodes) > 0 && !*force {
		fmt.Fprintln(os.Stderr, "workspace already seeded, pass --force to overwrite")
		os.Exit(1)
	}

	nodes := []store.WorkspaceNode{
		{ID: *asrID, Type: store.NodeASR},
		{ID: *llmID, Type: store.NodeLLM},
		{ID: *ttsID, Type: store.NodeTTS},
	}

	nodeConfigs := map[string]map[string]any{
		*llmID: {"engine": *engine},
	}

	for _, n := range nodes {
		if _, err := ns.Ensure(ctx, n.ID, n.Type); err != nil {
			slog.Error("ensure node", "id", n.ID, "error", err)
			os.Exit(1)
		}
		if patch, ok := nodeConfigs[n.ID]; ok {
			if _, err := ns.Update(ctx, n.ID, patch); err != nil {
				slog.Error("apply node config", "id", n.ID, "error", err)
				os.Exit(1)
			}
		}
	}

	links := []store.WireDTO{
		{FromNodeID: *asrID, FromPort: "final", ToNodeID: *llmID, ToPort: "prompt"},
		{FromNodeID: *llmID, FromPort: "delta", ToNodeID: *ttsID, ToPort: "text"},
	}

	ws := &store.Workspace{
		Nodes:       nodes,
		Links:       links,
		NodeConfigs: nodeConfigs,
	}
	if err := ns.SaveWorkspace(ctx, ws); err != nil {
		slog.Error("save workspace", "error", err)
		os.Exit(1)
	}

	graphCfg, err := ns.GraphConfig(ctx)
	if err != nil {
		slog.Error("load graph config", "error", err)
		os.Exit(1)
	}
	graphCfg.Wires = links
	if err := ns.SaveGraphConfig(ctx, graphCfg); err != nil {
		slog.Error("save graph config", "error", err)
		os.Exit(1)
	}

	slog.Info("seeded demo graph", "graphId", graphCfg.GraphID, "nodes", len(nodes), "wires", len(links))
}

func buildKV(ctx context.Context, redisURL string) store.KVStore {
	if redisURL == "" {
		slog.Info("no --redis-url/REDIS_URL, using in-memory store")
		return memkv.New()
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Error("parse redis url", "error", err)
		os.Exit(1)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("redis ping failed", "error", err)
		os.Exit(1)
	}
	return rediskv.New(client)
}
