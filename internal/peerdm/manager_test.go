package peerdm

import (
	"testing"

	"github.com/graphrt/runtime/internal/graph"
	"github.com/graphrt/runtime/internal/relay"
)

func newTestManager() *Manager {
	client := relay.NewClient(nil)
	return NewManager(client, "graph-1")
}

func newTestController(t *testing.T, m *Manager, nodeID string, cfg Config) *Controller {
	t.Helper()
	router := graph.NewRouter()
	c := New(nodeID, nodeID, "graph-1", cfg, router, m)
	t.Cleanup(c.Stop)
	return c
}

func TestRouteByComponentIDTakesPriority(t *testing.T) {
	m := newTestManager()
	a := newTestController(t, m, "node-a", Config{HeartbeatIntervalSec: 5})
	newTestController(t, m, "node-b", Config{HeartbeatIntervalSec: 5})

	candidates := m.route(Envelope{TargetID: "node-a", From: "peer-x"})
	if len(candidates) != 1 || candidates[0] != a {
		t.Fatalf("expected exactly node-a, got %v", candidates)
	}
}

func TestRouteByRegisteredAddress(t *testing.T) {
	m := newTestManager()
	a := newTestController(t, m, "node-a", Config{HeartbeatIntervalSec: 5})
	a.mu.Lock()
	a.state.peerAddress = "peer-known"
	a.mu.Unlock()
	newTestController(t, m, "node-b", Config{HeartbeatIntervalSec: 5})

	candidates := m.route(Envelope{From: "peer-known", GraphID: "graph-1"})
	if len(candidates) != 1 || candidates[0] != a {
		t.Fatalf("expected exactly node-a by address match, got %v", candidates)
	}
}

func TestRouteFallsBackToUnassignedOrAutoAccept(t *testing.T) {
	m := newTestManager()
	newTestController(t, m, "node-a", Config{HeartbeatIntervalSec: 5, AutoAccept: false, PeerAddress: "somewhere-else"})
	b := newTestController(t, m, "node-b", Config{HeartbeatIntervalSec: 5})
	c := newTestController(t, m, "node-c", Config{HeartbeatIntervalSec: 5, AutoAccept: true})

	candidates := m.route(Envelope{From: "new-peer", GraphID: "graph-1"})
	found := map[*Controller]bool{}
	for _, cand := range candidates {
		found[cand] = true
	}
	if !found[b] {
		t.Fatal("unassigned node-b should be a fallback candidate")
	}
	if !found[c] {
		t.Fatal("autoAccept node-c should be a fallback candidate")
	}
}

func TestRouteRejectsMismatchedGraphID(t *testing.T) {
	m := newTestManager()
	newTestController(t, m, "node-a", Config{HeartbeatIntervalSec: 5})

	candidates := m.route(Envelope{From: "peer-x", GraphID: "other-graph"})
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates for mismatched graphId, got %v", candidates)
	}
}

func TestUnregisterRemovesFromRoutingTable(t *testing.T) {
	m := newTestManager()
	router := graph.NewRouter()
	c := New("node-a", "node-a", "graph-1", Config{HeartbeatIntervalSec: 5}, router, m)
	c.Stop()

	candidates := m.route(Envelope{TargetID: "node-a"})
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates after Stop/Unregister, got %v", candidates)
	}
}
