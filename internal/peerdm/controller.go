package peerdm

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/graphrt/runtime/internal/graph"
	"github.com/graphrt/runtime/internal/metrics"
)

// Controller drives a single PeerDM node: handshake/heartbeat state
// machine, chunked text send/receive, and the incoming/status/raw output
// ports. Outbound sends and inbound routing go through a shared Manager,
// since the underlying relay connection is one per process.
//
// Grounded on rustyguts-bken's client/transport.go readControl dispatch
// loop (switch on a discriminated message Type, updating per-sender maps
// and firing callbacks) and StartReceiving's periodic stale-entry pruning,
// adapted here into the handshake/heartbeat/chunk state machine this
// protocol requires instead of that repo's voice-channel membership model.
type Controller struct {
	nodeID      string
	componentid string
	graphID     string

	router  *graph.Router
	manager *Manager

	mu    sync.Mutex
	cfg   Config
	state *peerState

	heartbeatCancel chan struct{}
}

// New creates a Controller for nodeID, registers it with manager, and
// starts its heartbeat loop. componentID is this node's own identity as
// advertised in outbound envelopes' ComponentID field (peers address us
// via it in their envelopes' TargetID).
func New(nodeID, componentID, graphID string, cfg Config, router *graph.Router, manager *Manager) *Controller {
	c := &Controller{
		nodeID:      nodeID,
		componentid: componentID,
		graphID:     graphID,
		router:      router,
		manager:     manager,
		cfg:         cfg,
		state:       newPeerState(cfg.AllowedPeers, cfg.AutoAccept),
	}
	manager.Register(c)
	c.startHeartbeat()
	if cfg.PeerAddress != "" {
		c.Connect(cfg.PeerAddress)
	}
	return c
}

// Stop halts the heartbeat loop and unregisters the node, treating node
// teardown as an explicit revoke of any accepted session.
func (c *Controller) Stop() {
	close(c.heartbeatCancel)
	c.mu.Lock()
	if c.state.handshake == HandshakeAccepted {
		metrics.PeerDMSessionsActive.Dec()
	}
	c.mu.Unlock()
	c.manager.Unregister(c.nodeID)
}

func (c *Controller) componentID() string { return c.componentid }

// acceptLocked transitions state into Accepted and adjusts
// metrics.PeerDMSessionsActive, counted only on the actual idle/pending ->
// accepted edge so a re-asserting request or sync while already accepted
// does not double-increment the gauge. Caller must hold c.mu.
func (c *Controller) acceptLocked(now time.Time) {
	wasAccepted := c.state.handshake == HandshakeAccepted
	c.state.accept(now)
	if !wasAccepted {
		metrics.PeerDMSessionsActive.Inc()
	}
}

// declineLocked transitions state away from Accepted (or out of a pending
// invite) and decrements the gauge only if the prior state was Accepted.
// Caller must hold c.mu.
func (c *Controller) declineLocked() {
	wasAccepted := c.state.handshake == HandshakeAccepted
	c.state.decline()
	if wasAccepted {
		metrics.PeerDMSessionsActive.Dec()
	}
}

func (c *Controller) peerAddress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.peerAddress
}

func (c *Controller) unassigned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.handshake == HandshakeIdle
}

func (c *Controller) isAllowed(addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.isAllowed(addr)
}

// Connect initiates an outgoing handshake to addr. Idle -> pending/outgoing.
func (c *Controller) Connect(addr string) {
	c.mu.Lock()
	c.state.beginOutgoing(addr)
	c.mu.Unlock()
	c.sendHandshake(addr, ActionRequest)
	c.emitStatus("info", "handshake-request", addr)
}

// Accept approves a pending incoming invite. No-op unless the node is
// currently pending/incoming.
func (c *Controller) Accept() {
	c.mu.Lock()
	if c.state.handshake != HandshakePending || c.state.direction != DirectionIncoming {
		c.mu.Unlock()
		return
	}
	addr := c.state.peerAddress
	c.acceptLocked(time.Now())
	c.mu.Unlock()
	c.sendHandshake(addr, ActionAccept)
	c.emitStatus("info", "accepted", addr)
}

// Decline rejects a pending incoming invite.
func (c *Controller) Decline() {
	c.mu.Lock()
	if c.state.handshake != HandshakePending || c.state.direction != DirectionIncoming {
		c.mu.Unlock()
		return
	}
	addr := c.state.peerAddress
	c.declineLocked()
	c.mu.Unlock()
	c.sendHandshake(addr, ActionDecline)
	c.emitStatus("info", "declined", addr)
}

// OnText is the input handler for the node's consumed "text" port: it
// chunks payload's text and sends it as a data batch to the accepted
// peer. Dropped with a status message if no peer is currently accepted.
func (c *Controller) OnText(payload any) {
	text := graph.Text(payload)
	if text == "" {
		return
	}

	c.mu.Lock()
	if c.state.handshake != HandshakeAccepted {
		c.mu.Unlock()
		c.emitStatus("warn", "handshake-not-accepted", "")
		return
	}
	addr := c.state.peerAddress
	cfg := c.cfg
	c.mu.Unlock()

	batchID := fmt.Sprintf("%s-%d", c.nodeID, time.Now().UnixNano())
	base := c.baseEnvelope(addr)
	chunks := splitChunks(text, cfg.ChunkBytes, batchID, base)
	for _, env := range chunks {
		if err := c.manager.send(env); err != nil {
			slog.Warn("peerdm: send data chunk failed", "node", c.nodeID, "error", err)
			c.emitStatus("error", "transport-error", addr)
			return
		}
	}
}

// handleEnvelope processes one inbound envelope routed to this node by
// the Manager.
func (c *Controller) handleEnvelope(env Envelope) {
	switch env.Kind {
	case KindHandshake:
		c.handleHandshake(env)
	case KindHeartbeat:
		c.handleHeartbeat(env)
	case KindData:
		c.handleData(env)
	case KindDebug:
		c.handleDebug(env)
	default:
		c.emitRaw(env)
	}
}

func (c *Controller) handleHandshake(env Envelope) {
	now := time.Now()
	c.mu.Lock()
	switch env.Action {
	case ActionRequest:
		switch c.state.handshake {
		case HandshakeIdle:
			if c.state.isAllowed(env.From) {
				c.state.peerAddress = env.From
				c.state.remoteComponentID = env.ComponentID
				c.acceptLocked(now)
				c.mu.Unlock()
				c.sendHandshake(env.From, ActionAccept)
				c.emitStatus("info", "accepted", env.From)
				return
			}
			c.state.beginIncoming(env.From, env.ComponentID)
			c.mu.Unlock()
			c.emitStatus("info", "invite", env.From)
			return
		case HandshakeAccepted:
			// A fresh request from an already-accepted peer re-asserts.
			if c.state.peerAddress == env.From {
				c.acceptLocked(now)
				c.mu.Unlock()
				c.sendHandshake(env.From, ActionAccept)
				return
			}
		}
		c.mu.Unlock()
	case ActionAccept:
		if c.state.handshake == HandshakePending && c.state.direction == DirectionOutgoing && c.state.peerAddress == env.From {
			c.state.remoteComponentID = env.ComponentID
			c.acceptLocked(now)
			c.mu.Unlock()
			c.emitStatus("info", "accepted", env.From)
			return
		}
		c.mu.Unlock()
	case ActionDecline:
		if c.state.peerAddress == env.From {
			c.declineLocked()
			c.mu.Unlock()
			c.emitStatus("warn", "declined", env.From)
			return
		}
		c.mu.Unlock()
	case ActionSync:
		if c.state.handshake == HandshakeAccepted && c.state.peerAddress == env.From {
			c.acceptLocked(now)
			c.mu.Unlock()
			c.sendHandshake(env.From, ActionAccept)
			return
		}
		c.mu.Unlock()
	default:
		c.mu.Unlock()
	}
}

func (c *Controller) handleHeartbeat(env Envelope) {
	switch env.Action {
	case ActionPing:
		c.mu.Lock()
		if c.state.peerAddress == env.From {
			c.state.touch(time.Now())
		}
		c.mu.Unlock()
		c.sendHeartbeat(env.From, ActionPong)
	case ActionPong:
		c.mu.Lock()
		if c.state.peerAddress == env.From {
			c.state.touch(time.Now())
		}
		c.mu.Unlock()
	}
}

func (c *Controller) handleData(env Envelope) {
	text, ok := env.dataText()
	if !ok {
		return
	}
	c.mu.Lock()
	assembled, complete := c.state.inbox.add(env.ID, env.Seq, env.Total, text)
	c.mu.Unlock()
	if !complete {
		return
	}
	c.router.SendFrom(c.nodeID, "incoming", map[string]any{
		"text": assembled,
		"from": env.From,
		"id":   env.ID,
	})
}

func (c *Controller) handleDebug(env Envelope) {
	c.emitStatus("debug", env.Action, env.From)
	if env.Note != "" {
		slog.Debug("peerdm: debug envelope", "node", c.nodeID, "from", env.From, "note", env.Note)
	}
}

func (c *Controller) emitRaw(env Envelope) {
	c.router.SendFrom(c.nodeID, "raw", map[string]any{
		"kind": env.Kind,
		"from": env.From,
	})
}

func (c *Controller) emitStatus(level, code, peer string) {
	c.router.SendFrom(c.nodeID, "status", map[string]any{
		"level": level,
		"code":  code,
		"peer":  peer,
	})
}

func (c *Controller) baseEnvelope(targetID string) Envelope {
	return Envelope{
		From:        c.nodeID,
		ComponentID: c.componentid,
		TargetID:    targetID,
		GraphID:     c.graphID,
		Ts:          time.Now().UnixMilli(),
	}
}

func (c *Controller) sendHandshake(addr, action string) {
	env := c.baseEnvelope(addr)
	env.Kind = KindHandshake
	env.Action = action
	if err := c.manager.send(env); err != nil {
		slog.Warn("peerdm: send handshake failed", "node", c.nodeID, "action", action, "error", err)
	}
}

func (c *Controller) sendHeartbeat(addr, action string) {
	env := c.baseEnvelope(addr)
	env.Kind = KindHeartbeat
	env.Action = action
	if err := c.manager.send(env); err != nil {
		slog.Debug("peerdm: send heartbeat failed", "node", c.nodeID, "error", err)
	}
}

// startHeartbeat runs the periodic ping + stale-request-resend + timeout
// check loop, at the configured interval (floor 5s).
func (c *Controller) startHeartbeat() {
	c.heartbeatCancel = make(chan struct{})
	interval := time.Duration(c.cfg.HeartbeatIntervalSec) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.heartbeatCancel:
				return
			case <-ticker.C:
				c.onHeartbeatTick(interval)
			}
		}
	}()
}

func (c *Controller) onHeartbeatTick(interval time.Duration) {
	c.mu.Lock()
	state := c.state.handshake
	direction := c.state.direction
	addr := c.state.peerAddress
	now := time.Now()

	if state == HandshakeAccepted && !c.state.timedOut(now, interval) {
		c.state.missedBeats++
	}
	timedOut := state == HandshakeAccepted && c.state.timedOut(now, interval)
	missed := c.state.missedBeats
	c.mu.Unlock()

	switch {
	case state == HandshakePending && direction == DirectionOutgoing:
		// Resend the request until accepted/declined.
		c.sendHandshake(addr, ActionRequest)
	case state == HandshakeAccepted && timedOut:
		c.emitStatus("error", "timeout", addr)
	case state == HandshakeAccepted:
		c.sendHeartbeat(addr, ActionPing)
		if indicator := heartbeatIndicator(missed); indicator != IndicatorOnline {
			c.emitStatus("warn", string(indicator), addr)
		}
	}
}
