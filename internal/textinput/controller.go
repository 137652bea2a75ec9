// Package textinput implements the TextInput node: a pure producer with
// no input ports that turns an external caller's text (an HTTP POST, a
// CLI flag, a websocket frame — graphd decides) into a `text` output
// message on the Router.
package textinput

import "github.com/graphrt/runtime/internal/graph"

// Controller is a TextInput node. It holds no state beyond its identity;
// Emit is safe to call concurrently since Router.SendFrom owns its own
// locking.
type Controller struct {
	nodeID string
	router *graph.Router
}

// New creates a Controller for nodeID, wired to router for delivery.
func New(nodeID string, router *graph.Router) *Controller {
	return &Controller{nodeID: nodeID, router: router}
}

// Emit publishes text on the node's `text` output port.
func (c *Controller) Emit(text string) {
	c.router.SendFrom(c.nodeID, "text", map[string]any{
		"nodeId": c.nodeID,
		"type":   "text",
		"text":   text,
	})
}
