package store

import (
	"context"
	"testing"

	"github.com/graphrt/runtime/internal/store/memkv"
)

func TestEnsureCreatesDefaults(t *testing.T) {
	ctx := context.Background()
	ns := New(memkv.New())

	rec, err := ns.Ensure(ctx, "n1", NodeASR)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Type != NodeASR {
		t.Fatalf("type = %v", rec.Type)
	}
	if rec.Config["rate"] != 16000 {
		t.Fatalf("default rate = %v", rec.Config["rate"])
	}
}

func TestEnsureIdempotentForSameType(t *testing.T) {
	ctx := context.Background()
	ns := New(memkv.New())

	_, _ = ns.Ensure(ctx, "n1", NodeLLM)
	_, _ = ns.Update(ctx, "n1", map[string]any{"model": "gpt-4o"})

	rec, err := ns.Ensure(ctx, "n1", NodeLLM)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Config["model"] != "gpt-4o" {
		t.Fatalf("ensure with same type must not reset config, got %v", rec.Config)
	}
}

func TestEnsureResetsOnTypeChange(t *testing.T) {
	ctx := context.Background()
	ns := New(memkv.New())

	_, _ = ns.Ensure(ctx, "n1", NodeLLM)
	_, _ = ns.Update(ctx, "n1", map[string]any{"model": "gpt-4o"})

	rec, err := ns.Ensure(ctx, "n1", NodeTTS)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Type != NodeTTS {
		t.Fatalf("type should have changed to tts, got %v", rec.Type)
	}
	if _, ok := rec.Config["model"]; ok {
		t.Fatalf("config should have reset on type change, got %v", rec.Config)
	}
}

func TestUpdateShallowMerge(t *testing.T) {
	ctx := context.Background()
	ns := New(memkv.New())

	_, _ = ns.Ensure(ctx, "n1", NodeASR)
	rec, err := ns.Update(ctx, "n1", map[string]any{"holdMs": 500})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Config["holdMs"] != 500 {
		t.Fatalf("patched field = %v", rec.Config["holdMs"])
	}
	if rec.Config["rate"] != float64(16000) {
		t.Fatalf("untouched field must survive merge, got %v (%T)", rec.Config["rate"], rec.Config["rate"])
	}

	loaded, err := ns.Load(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Config["holdMs"] != float64(500) {
		// JSON round-trip through memkv turns ints into float64; document it.
		t.Fatalf("persisted holdMs = %v (%T)", loaded.Config["holdMs"], loaded.Config["holdMs"])
	}
}

func TestErase(t *testing.T) {
	ctx := context.Background()
	ns := New(memkv.New())

	_, _ = ns.Ensure(ctx, "n1", NodeASR)
	if err := ns.Erase(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	if _, err := ns.Load(ctx, "n1"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound after erase, got %v", err)
	}
}

func TestGraphConfigGeneratesGraphID(t *testing.T) {
	ctx := context.Background()
	ns := New(memkv.New())

	cfg, err := ns.GraphConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GraphID == "" {
		t.Fatal("graphId must be generated on first use")
	}
	if cfg.Transport != TransportHTTP {
		t.Fatalf("default transport = %v", cfg.Transport)
	}

	again, err := ns.GraphConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again.GraphID != cfg.GraphID {
		t.Fatal("graphId must be stable across loads")
	}
}

func TestSetRelay(t *testing.T) {
	ctx := context.Background()
	ns := New(memkv.New())

	rec, err := ns.SetRelay(ctx, "n1", NodePeerDM, "seed-abc")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Config["relay"] != "seed-abc" {
		t.Fatalf("relay = %v", rec.Config["relay"])
	}
}
