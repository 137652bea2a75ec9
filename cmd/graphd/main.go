// Command graphd is the long-running graphrt process: one Router, one
// NodeStore, one TransportMux, one relay client shared by TransportMux's
// relay path and the PeerDM manager, and one controller per persisted
// node, wired together from the workspace restored at boot — mirroring
// how the teacher's cmd/gateway builds one ASRRouter/AgentLLM/TTSRouter
// and hands them to per-call pipelines.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/graphrt/runtime/internal/asrctl"
	"github.com/graphrt/runtime/internal/graph"
	"github.com/graphrt/runtime/internal/llmctl"
	"github.com/graphrt/runtime/internal/orchestrator"
	"github.com/graphrt/runtime/internal/peerdm"
	"github.com/graphrt/runtime/internal/rag"
	"github.com/graphrt/runtime/internal/relay"
	"github.com/graphrt/runtime/internal/store"
	"github.com/graphrt/runtime/internal/store/memkv"
	"github.com/graphrt/runtime/internal/store/rediskv"
	"github.com/graphrt/runtime/internal/template"
	"github.com/graphrt/runtime/internal/textinput"
	"github.com/graphrt/runtime/internal/transport"
	"github.com/graphrt/runtime/internal/ttsctl"
	"github.com/redis/go-redis/v9"
)

// runtime bundles everything registerRoutes and awaitShutdown need —
// the stoppable controllers plus the lookup tables the HTTP surface
// drives directly (text input, template triggers).
type runtime struct {
	router *graph.Router
	ns     *store.NodeStore
	mux    *transport.Mux
	relay  *relay.Client
	svcMgr *orchestrator.HTTPControlManager
	events *eventHub

	asrNodes   map[string]*asrctl.Controller
	ttsNodes   map[string]*ttsctl.Controller
	peerNodes  map[string]*peerdm.Controller
	textNodes  map[string]*textinput.Controller
	tmplNodes  map[string]*template.Controller
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	t := loadTuning("graphd.json")
	d := loadDeployment()

	ctx := context.Background()

	kv := buildKV(ctx, d)
	ns := store.New(kv)

	graphCfg, err := ns.GraphConfig(ctx)
	if err != nil {
		slog.Error("load graph config", "error", err)
		os.Exit(1)
	}

	relayClient := relay.NewClient(relay.NewNodeStoreSeeds(ns))
	if d.relayAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := relayClient.EnsureRelay(dialCtx, d.relayAddr); err != nil {
			slog.Warn("relay dial failed at boot, relay-dependent nodes will retry lazily", "error", err)
		}
		cancel()
	}

	transportMux := transport.New(relayClient, d.relayAddr)
	router := graph.NewRouter()
	peerManager := peerdm.NewManager(relayClient, graphCfg.GraphID)

	rt := &runtime{
		router:    router,
		ns:        ns,
		mux:       transportMux,
		relay:     relayClient,
		asrNodes:  make(map[string]*asrctl.Controller),
		ttsNodes:  make(map[string]*ttsctl.Controller),
		peerNodes: make(map[string]*peerdm.Controller),
		textNodes: make(map[string]*textinput.Controller),
		tmplNodes: make(map[string]*template.Controller),
	}
	rt.events = newEventHub(router)

	if err := rt.restore(ctx, d, t, graphCfg, peerManager); err != nil {
		slog.Error("restore workspace", "error", err)
		os.Exit(1)
	}

	persistWireChanges(router, ns, graphCfg)

	svcRegistry := orchestrator.NewRegistry(map[string]orchestrator.ServiceMeta{
		"whisper-server": {Category: "asr", HealthURL: d.whisperServerURL, ControlURL: d.whisperServerURL},
	})
	rt.svcMgr = orchestrator.NewHTTPControlManager(svcRegistry)

	httpMux := http.NewServeMux()
	registerRoutes(httpMux, rt)

	addr := ":" + d.port
	srv := &http.Server{Addr: addr, Handler: httpMux}

	go awaitShutdown(srv, rt)

	slog.Info("graphd starting", "addr", addr, "graphId", graphCfg.GraphID)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("graphd stopped")
}

func buildKV(ctx context.Context, d deployment) store.KVStore {
	if d.redisURL == "" {
		slog.Info("no REDIS_URL set, using in-memory store (not durable across restarts)")
		return memkv.New()
	}
	opt, err := redis.ParseURL(d.redisURL)
	if err != nil {
		slog.Error("parse REDIS_URL, falling back to in-memory store", "error", err)
		return memkv.New()
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("redis ping failed, falling back to in-memory store", "error", err)
		return memkv.New()
	}
	slog.Info("using redis store")
	return rediskv.New(client)
}

// restore loads the editor-owned workspace, Ensures a NodeRecord per
// node, applies any config overrides the editor last saved, constructs
// the matching controller, and adds the wire table. Node configs live in
// NodeStore (C4); a non-empty workspace nodeConfigs entry for a node is
// shallow-merged over that stored record on every boot.
func (rt *runtime) restore(ctx context.Context, d deployment, t tuning, graphCfg *store.GraphConfig, peerManager *peerdm.Manager) error {
	ws, err := rt.ns.LoadWorkspace(ctx)
	if err != nil {
		return err
	}

	for _, n := range ws.Nodes {
		rec, err := rt.ns.Ensure(ctx, n.ID, n.Type)
		if err != nil {
			slog.Error("ensure node", "id", n.ID, "error", err)
			continue
		}
		if patch, ok := ws.NodeConfigs[n.ID]; ok && len(patch) > 0 {
			rec, err = rt.ns.Update(ctx, n.ID, patch)
			if err != nil {
				slog.Error("apply workspace config override", "id", n.ID, "error", err)
			}
		}
		rt.buildController(n.ID, n.Type, rec.Config, d, t, graphCfg, peerManager)
	}

	wires := ws.Links
	if len(wires) == 0 {
		wires = graphCfg.Wires
	}
	for _, w := range wires {
		err := rt.router.AddWire(graph.Wire{
			From: graph.OutPort(w.FromNodeID, w.FromPort),
			To:   graph.InPort(w.ToNodeID, w.ToPort),
		})
		if err != nil {
			slog.Warn("skipping invalid persisted wire", "wire", w, "error", err)
		}
	}

	slog.Info("workspace restored", "nodes", len(ws.Nodes), "wires", len(wires))
	return nil
}

func (rt *runtime) buildController(id string, typ store.NodeType, cfgMap map[string]any, d deployment, t tuning, graphCfg *store.GraphConfig, peerManager *peerdm.Manager) {
	switch typ {
	case store.NodeASR:
		cfg := asrctl.FromMap(cfgMap)
		if cfg.Prompt == "" {
			cfg.Prompt = d.whisperPrompt
		}
		c := asrctl.New(id, cfg, d.whisperServerURL, transport.Auth{}, rt.router, rt.mux)
		c.Start()
		rt.asrNodes[id] = c

	case store.NodeLLM:
		cfg := llmctl.FromMap(cfgMap)
		base, auth := llmBackend(cfg.Engine, d, t)
		ragClient := rag.New(rag.Config{
			OllamaURL:  d.ollamaURL,
			EmbedModel: d.embeddingModel,
			QdrantURL:  d.qdrantURL,
			Collection: cfg.RAGCollection,
			TopK:       cfg.RAGTopK,
		})
		if cfg.Model == "" {
			cfg.Model = llmDefaultModel(cfg.Engine, d, t)
		}
		if cfg.SystemPrompt == "" {
			cfg.SystemPrompt = t.LLMSystemPrompt
		}
		c := llmctl.New(id, cfg, base, auth, rt.router, rt.mux, rt.ns, ragClient)
		rt.router.Register(graph.InPort(id, "prompt"), c.OnPrompt)
		rt.router.Register(graph.InPort(id, "system"), c.OnSystem)

	case store.NodeTTS:
		cfg := ttsctl.FromMap(cfgMap)
		c := ttsctl.New(id, cfg, d.piperURL, transport.Auth{}, rt.mux, nil)
		rt.router.Register(graph.InPort(id, "text"), c.OnText)
		rt.ttsNodes[id] = c

	case store.NodeTextInput:
		rt.textNodes[id] = textinput.New(id, rt.router)

	case store.NodeTemplate:
		cfg := template.FromMap(cfgMap)
		rt.tmplNodes[id] = template.New(id, cfg, rt.router)

	case store.NodePeerDM:
		cfg := peerdm.FromMap(cfgMap)
		c := peerdm.New(id, id, graphCfg.GraphID, cfg, rt.router, peerManager)
		rt.router.Register(graph.InPort(id, "text"), c.OnText)
		rt.peerNodes[id] = c

	default:
		slog.Warn("unknown node type, skipping", "id", id, "type", typ)
	}
}

// llmBackend picks the base URL and auth for a node's configured engine,
// falling back to ollama (the only backend that needs no API key) for an
// unrecognized or empty engine name.
func llmBackend(engine string, d deployment, t tuning) (string, transport.Auth) {
	switch engine {
	case "openai":
		return t.OpenAIURL, transport.Auth{APIKey: d.openaiAPIKey}
	case "anthropic":
		return t.AnthropicURL, transport.Auth{APIKey: d.anthropicAPIKey}
	default:
		return d.ollamaURL, transport.Auth{}
	}
}

func llmDefaultModel(engine string, d deployment, t tuning) string {
	switch engine {
	case "openai":
		return t.OpenAIModel
	case "anthropic":
		return t.AnthropicModel
	default:
		return d.ollamaModel
	}
}

// persistWireChanges keeps graphCfg.Wires (the C4-durable wire table) in
// sync with the live Router, so a restart with no workspace save still
// restores the wires that were added purely through the HTTP API.
func persistWireChanges(router *graph.Router, ns *store.NodeStore, graphCfg *store.GraphConfig) {
	router.OnWireChange(func(ev graph.WireEvent) {
		wires := router.ListWires()
		dtos := make([]store.WireDTO, 0, len(wires))
		for _, w := range wires {
			dtos = append(dtos, store.WireDTO{
				FromNodeID: w.From.NodeID, FromPort: w.From.Port,
				ToNodeID: w.To.NodeID, ToPort: w.To.Port,
			})
		}
		graphCfg.Wires = dtos
		if err := ns.SaveGraphConfig(context.Background(), graphCfg); err != nil {
			slog.Error("persist wire change", "error", err)
		}
	})
}

// awaitShutdown blocks until SIGINT/SIGTERM, then stops every controller
// and gracefully shuts the HTTP server down.
func awaitShutdown(srv *http.Server, rt *runtime) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	for id, c := range rt.asrNodes {
		slog.Info("stopping asr node", "id", id)
		c.Stop()
	}
	for id, c := range rt.ttsNodes {
		slog.Info("stopping tts node", "id", id)
		c.Stop()
	}
	for id, c := range rt.peerNodes {
		slog.Info("stopping peerdm node", "id", id)
		c.Stop()
	}
	rt.relay.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
