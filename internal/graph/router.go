package graph

import (
	"log/slog"
	"sync"

	"github.com/graphrt/runtime/internal/metrics"
)

// Handler receives messages delivered to a single input port.
type Handler func(payload any)

// WireEvent describes a wire-table mutation, delivered to optional
// observers registered via OnWireChange (used by cmd/graphd to keep a
// durable copy of the wire set).
type WireEvent struct {
	Kind string // "added" or "removed"
	Wire Wire
}

// DeliverEvent describes one successful SendFrom delivery, given to
// optional observers registered via OnDeliver (used by graphd's
// WebSocket surface to mirror live graph activity to connected clients
// without those clients wiring a node of their own).
type DeliverEvent struct {
	From    PortAddress
	To      PortAddress
	Payload any
}

// Router delivers messages from output ports to input ports per the wire
// table, with fan-out on outputs and exclusivity on inputs.
type Router struct {
	mu       sync.RWMutex
	handlers map[PortAddress]Handler
	wires    []Wire // insertion order matters for delivery order
	byInput  map[PortAddress]int // index into wires, for O(1) exclusivity checks

	listeners        []func(WireEvent)
	deliverListeners []func(DeliverEvent)
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		handlers: make(map[PortAddress]Handler),
		byInput:  make(map[PortAddress]int),
	}
}

// Register installs a handler for an input port address. Registering over
// an existing handler for the same address replaces it.
func (r *Router) Register(addr PortAddress, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[addr] = h
}

// Unregister removes the handler for an input port address. Wires into
// that address are left in place — delivery to them becomes a silent
// no-op per spec (nodes may be concurrently torn down).
func (r *Router) Unregister(addr PortAddress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, addr)
}

// OnWireChange registers an observer notified whenever a wire is added,
// replaced, or removed. cmd/graphd uses it to persist the wire set through
// NodeStore.
func (r *Router) OnWireChange(fn func(WireEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// OnDeliver registers an observer notified after every successful
// SendFrom delivery. Observers run synchronously on the delivering
// goroutine, same caveat as handlers: keep them fast and non-blocking.
func (r *Router) OnDeliver(fn func(DeliverEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliverListeners = append(r.deliverListeners, fn)
}

// AddWire adds a wire to the table. Idempotent: adding an identical wire
// twice is a no-op. Adding a second wire into an already-connected input
// replaces the prior wire (inputs are exclusive) and notifies listeners
// of the removal of the replaced edge.
func (r *Router) AddWire(w Wire) error {
	if err := w.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byInput[w.To]; ok {
		existing := r.wires[idx]
		if existing == w {
			return nil
		}
		r.removeAtLocked(idx)
		r.notifyLocked(WireEvent{Kind: "removed", Wire: existing})
	}

	r.wires = append(r.wires, w)
	r.byInput[w.To] = len(r.wires) - 1
	metrics.RouterWiresActive.Set(float64(len(r.wires)))
	r.notifyLocked(WireEvent{Kind: "added", Wire: w})
	return nil
}

// RemoveWire removes a wire matching from->to exactly, if present.
func (r *Router) RemoveWire(w Wire) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.wires {
		if existing == w {
			r.removeAtLocked(i)
			metrics.RouterWiresActive.Set(float64(len(r.wires)))
			r.notifyLocked(WireEvent{Kind: "removed", Wire: existing})
			return
		}
	}
}

// removeAtLocked removes wires[idx] and rebuilds the byInput index, since
// indices shift. Wire tables are small (per-graph, human-wired), so O(n)
// rebuild on mutation is the right tradeoff over a doubly-linked structure.
func (r *Router) removeAtLocked(idx int) {
	r.wires = append(r.wires[:idx], r.wires[idx+1:]...)
	r.byInput = make(map[PortAddress]int, len(r.wires))
	for i, w := range r.wires {
		r.byInput[w.To] = i
	}
}

func (r *Router) notifyLocked(ev WireEvent) {
	for _, fn := range r.listeners {
		fn(ev)
	}
}

// ListWires returns a snapshot copy of the current wire set.
func (r *Router) ListWires() []Wire {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Wire, len(r.wires))
	copy(out, r.wires)
	return out
}

// SendFrom delivers payload to every input handler wired from
// nodeID:out:portName, in wire-insertion order, against a snapshot of the
// wire table taken at entry — later mutation of the wire set does not
// affect this delivery. Handler panics/errors are caught and logged; they
// never abort delivery to the remaining subscribers.
func (r *Router) SendFrom(nodeID, portName string, payload any) {
	from := PortAddress{NodeID: nodeID, Direction: Out, Port: portName}

	r.mu.RLock()
	targets := make([]PortAddress, 0, 4)
	for _, w := range r.wires {
		if w.From == from {
			targets = append(targets, w.To)
		}
	}
	r.mu.RUnlock()

	for _, to := range targets {
		if r.deliverOne(to, payload) {
			r.notifyDeliver(DeliverEvent{From: from, To: to, Payload: payload})
		}
	}
}

func (r *Router) deliverOne(to PortAddress, payload any) bool {
	r.mu.RLock()
	h, ok := r.handlers[to]
	r.mu.RUnlock()
	if !ok {
		return false // target node torn down concurrently: silent no-op
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("router handler panicked", "input", to.String(), "panic", rec)
		}
	}()
	h(payload)
	return true
}

func (r *Router) notifyDeliver(ev DeliverEvent) {
	r.mu.RLock()
	listeners := r.deliverListeners
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}
