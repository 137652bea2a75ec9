package relay

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"

	"github.com/graphrt/runtime/internal/store"
)

// dialTimeout bounds the WebTransport handshake, mirroring the bounded
// dial used for the original peer-audio transport this is grounded on.
const dialTimeout = 10 * time.Second

// SeedStore persists and retrieves the relay client's stable identity
// across restarts, via the graph-wide NodeStore KV abstraction.
type SeedStore interface {
	LoadSeed(ctx context.Context) (string, bool, error)
	SaveSeed(ctx context.Context, seed string) error
	DeleteSeed(ctx context.Context) error
}

// nodeStoreSeeds adapts *store.NodeStore to SeedStore, keeping the seed in
// the "seed" config field of the reserved "__relay_seed__" node record
// (KV key "graph.node.__relay_seed__").
type nodeStoreSeeds struct {
	ns *store.NodeStore
}

const seedNodeID = "__relay_seed__"

func NewNodeStoreSeeds(ns *store.NodeStore) SeedStore {
	return &nodeStoreSeeds{ns: ns}
}

func (s *nodeStoreSeeds) LoadSeed(ctx context.Context) (string, bool, error) {
	rec, err := s.ns.Load(ctx, seedNodeID)
	if err == store.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	seed, _ := rec.Config["seed"].(string)
	if seed == "" {
		return "", false, nil
	}
	return seed, true, nil
}

func (s *nodeStoreSeeds) SaveSeed(ctx context.Context, seed string) error {
	if _, err := s.ns.Ensure(ctx, seedNodeID, store.NodeType("relayseed")); err != nil {
		return err
	}
	_, err := s.ns.Update(ctx, seedNodeID, map[string]any{"seed": seed})
	return err
}

func (s *nodeStoreSeeds) DeleteSeed(ctx context.Context) error {
	return s.ns.Erase(ctx, seedNodeID)
}

// Handlers are callbacks the dispatcher invokes for each relay.response
// frame kind, keyed off the frame's correlation ID by the caller.
type Handlers struct {
	OnResponse func(id string, frame Frame)
	OnBegin    func(id string, meta BeginMeta)
	OnChunk    func(id string, seq int, bytes []byte)
	OnLines    func(id string, lines []LineChunk)
	OnEnd      func(id string, meta EndMeta)
}

// Client is the datagram relay transport: a WebTransport session carrying
// JSON-framed request/response envelopes as unreliable datagrams, with a
// persisted seed so the node's relay address survives restarts.
//
// Grounded on the original peer transport's WebTransport dial + datagram
// send/receive loop, generalized from a fixed binary voice header to the
// JSON envelope this system's relay protocol uses.
type Client struct {
	mu      sync.Mutex
	session *webtransport.Session
	cancel  context.CancelFunc
	seed    string
	addr    string

	seeds SeedStore

	seqCounter atomic.Uint32
	handlers   Handlers

	// peerHandler receives every "peerdm.envelope" frame. Kept separate from
	// Handlers/SetHandlers since TransportMux owns that struct wholesale for
	// the http.request/response path; peerdm shares this one process-wide
	// relay client without contending over the same callback slots.
	peerHandler func(Frame)
}

// NewClient creates an unconnected relay client. Call EnsureRelay to dial.
func NewClient(seeds SeedStore) *Client {
	return &Client{seeds: seeds}
}

// SetHandlers installs the dispatch callbacks used by the receive loop.
func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

// SetPeerHandler installs the callback invoked for every inbound
// "peerdm.envelope" frame. Only one handler is supported; the peerdm
// manager that owns the client's lifetime is expected to call this once.
func (c *Client) SetPeerHandler(fn func(Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerHandler = fn
}

// SendPeer writes a peerdm envelope as a single unreliable datagram.
func (c *Client) SendPeer(peer json.RawMessage) error {
	return c.Send(Frame{Event: EventPeerDM, ID: c.NextID(), Peer: peer})
}

// EnsureRelay idempotently brings up the relay client: if already
// connected, it is a no-op. Otherwise it attempts to reuse a persisted
// seed; on dial failure with a persisted seed present, the seed is
// deleted and the dial is retried fresh exactly once.
func (c *Client) EnsureRelay(ctx context.Context, addr string) error {
	c.mu.Lock()
	connected := c.session != nil
	c.mu.Unlock()
	if connected {
		return nil
	}

	seed, hadSeed, err := c.seeds.LoadSeed(ctx)
	if err != nil {
		return fmt.Errorf("relay: load seed: %w", err)
	}

	if err := c.dial(ctx, addr, seed); err != nil {
		if !hadSeed {
			return fmt.Errorf("relay: dial: %w", err)
		}
		slog.Warn("relay dial failed with persisted seed, retrying fresh", "error", err)
		if delErr := c.seeds.DeleteSeed(ctx); delErr != nil {
			slog.Error("relay: delete stale seed", "error", delErr)
		}
		if err := c.dial(ctx, addr, ""); err != nil {
			return fmt.Errorf("relay: dial fresh: %w", err)
		}
	}

	newSeed := c.Seed()
	if newSeed != "" {
		if err := c.seeds.SaveSeed(ctx, newSeed); err != nil {
			slog.Error("relay: persist seed", "error", err)
		}
	}
	return nil
}

// dial opens the WebTransport session. seed, if non-empty, is presented
// during the handshake so the remote relay can recognize a returning
// client; an empty seed requests a fresh identity from the remote.
func (c *Client) dial(ctx context.Context, addr, seed string) error {
	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	defer cancelDial()

	sessCtx, cancel := context.WithCancel(ctx)

	d := webtransport.Dialer{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec — relay peers use self-signed certs
		QUICConfig: &quic.Config{
			EnableDatagrams: true,
		},
	}

	headers := http.Header{}
	if seed != "" {
		headers.Set("X-Relay-Seed", seed)
	}
	_, sess, err := d.Dial(dialCtx, "https://"+addr, headers)
	if err != nil {
		cancel()
		return err
	}

	if seed == "" {
		seed = uuid.NewString()
	}

	c.mu.Lock()
	c.session = sess
	c.cancel = cancel
	c.seed = seed
	c.addr = addr
	c.mu.Unlock()

	go c.receiveLoop(sessCtx, sess)
	return nil
}

// Seed returns the client's current stable identity, empty if unconnected.
func (c *Client) Seed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seed
}

// Close tears down the session.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.session != nil {
		c.session.CloseWithError(0, "closed")
		c.session = nil
	}
}

// Send writes a frame as a single unreliable datagram. Used for
// "http.request" sends with noReply=true — the response arrives later via
// the receive loop's dispatcher, not as a return value here.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("relay: not connected")
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("relay: encode frame: %w", err)
	}
	return sess.SendDatagram(data)
}

// NextID returns a process-unique correlation token for a new request.
func (c *Client) NextID() string {
	return uuid.NewString()
}

func (c *Client) receiveLoop(ctx context.Context, sess *webtransport.Session) {
	for {
		data, err := sess.ReceiveDatagram(ctx)
		if err != nil {
			slog.Debug("relay receive loop exiting", "error", err)
			return
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("relay: dropping malformed datagram", "error", err)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame Frame) {
	c.mu.Lock()
	h := c.handlers
	peerHandler := c.peerHandler
	c.mu.Unlock()

	switch frame.Event {
	case EventPeerDM:
		if peerHandler != nil {
			peerHandler(frame)
		}
	case EventResponse:
		if h.OnResponse != nil {
			h.OnResponse(frame.ID, frame)
		}
	case EventResponseBegin:
		if h.OnBegin != nil {
			var meta BeginMeta
			_ = json.Unmarshal(frame.Meta, &meta)
			h.OnBegin(frame.ID, meta)
		}
	case EventResponseChunk:
		if h.OnChunk != nil {
			h.OnChunk(frame.ID, frame.Seq, frame.Bytes)
		}
	case EventResponseLines:
		if h.OnLines != nil {
			h.OnLines(frame.ID, frame.Lines)
		}
	case EventResponseEnd:
		if h.OnEnd != nil {
			var meta EndMeta
			_ = json.Unmarshal(frame.Meta, &meta)
			h.OnEnd(frame.ID, meta)
		}
	default:
		slog.Debug("relay: unhandled frame event", "event", frame.Event)
	}
}
