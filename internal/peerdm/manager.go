package peerdm

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/graphrt/runtime/internal/relay"
)

// Manager owns the process-wide relay client's peerdm dispatch and routes
// inbound envelopes to the right node Controller, per the documented
// routing-to-nodes priority: componentId match, then registered address
// match, then graph-scoped fallback to an unassigned/whitelisted/
// autoAccept node.
//
// One Manager per process, mirroring the "relay client: one per process"
// resource policy — all PeerDM nodes in a graph share it rather than each
// dialing their own session.
type Manager struct {
	mu          sync.RWMutex
	relayClient *relay.Client
	graphID     string
	controllers map[string]*Controller // by nodeID
}

// NewManager creates a Manager and installs its dispatch as the relay
// client's peer handler.
func NewManager(relayClient *relay.Client, graphID string) *Manager {
	m := &Manager{relayClient: relayClient, graphID: graphID, controllers: make(map[string]*Controller)}
	relayClient.SetPeerHandler(m.onFrame)
	return m
}

// Register adds a Controller to the routing table. Unregister removes it.
func (m *Manager) Register(c *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controllers[c.nodeID] = c
}

func (m *Manager) Unregister(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.controllers, nodeID)
}

func (m *Manager) send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return m.relayClient.SendPeer(json.RawMessage(data))
}

func (m *Manager) onFrame(frame relay.Frame) {
	var env Envelope
	if err := json.Unmarshal(frame.Peer, &env); err != nil {
		slog.Warn("peerdm: dropping malformed envelope", "error", err)
		return
	}

	candidates := m.route(env)
	if len(candidates) == 0 {
		slog.Warn("peerdm: no-candidate for inbound envelope", "from", env.From, "kind", env.Kind, "targetId", env.TargetID)
		return
	}
	for _, c := range candidates {
		c.handleEnvelope(env)
	}
}

// route implements the documented priority order. Priority 1 and 2 each
// return at most a single match; priority 3 may return several
// best-guess candidates (the node is unassigned, whitelisted for the
// sender, or running autoAccept).
func (m *Manager) route(env Envelope) []*Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if env.TargetID != "" {
		for _, c := range m.controllers {
			if c.componentID() == env.TargetID {
				return []*Controller{c}
			}
		}
	}

	for _, c := range m.controllers {
		if c.peerAddress() == env.From && env.From != "" {
			return []*Controller{c}
		}
	}

	if env.GraphID != "" && env.GraphID != m.graphID {
		return nil
	}

	var fallback []*Controller
	for _, c := range m.controllers {
		if c.unassigned() || c.isAllowed(env.From) {
			fallback = append(fallback, c)
		}
	}
	return fallback
}
