// Package template implements the Template node: a string with
// `{{var}}` placeholders, one dynamically created input port per
// placeholder plus a fixed `trigger` input, emitting the substituted
// text on `text` when triggered.
//
// No teacher analog exists for this node (the teacher has no
// user-composable templating surface); grounded directly on the
// PortAddress data model's "dynamically created port per template
// variable" requirement, using the standard library's regexp for
// placeholder extraction since no templating/string-interpolation
// library appears anywhere in the retrieved pack.
package template

import (
	"sync"

	"github.com/graphrt/runtime/internal/graph"
)

// Controller is a Template node. It registers one input port per
// `{{var}}` reference in its template string, plus `trigger`, and emits
// on `text`.
type Controller struct {
	nodeID string
	router *graph.Router

	tmpl  string
	names []string

	mu   sync.Mutex
	vars map[string]string
}

// New creates a Controller for nodeID and registers its input ports with
// router: `trigger` plus one port per `{{var}}` found in cfg.Template.
func New(nodeID string, cfg Config, router *graph.Router) *Controller {
	c := &Controller{
		nodeID: nodeID,
		router: router,
		tmpl:   cfg.Template,
		names:  variableNames(cfg.Template),
		vars:   make(map[string]string),
	}
	router.Register(graph.InPort(nodeID, "trigger"), c.OnTrigger)
	for _, name := range c.names {
		router.Register(graph.InPort(nodeID, name), c.varHandler(name))
	}
	return c
}

// VarPorts returns the port names this node's template requires,
// discovered at construction time. Used by graphd to report the node's
// live port set (the data model's "dynamically created port" list).
func (c *Controller) VarPorts() []string {
	return c.names
}

func (c *Controller) varHandler(name string) graph.Handler {
	return func(payload any) {
		text := graph.Text(payload)
		c.mu.Lock()
		c.vars[name] = text
		c.mu.Unlock()
	}
}

// SetVar updates a variable's value directly, for callers (e.g. an HTTP
// endpoint) acting as an unwired producer rather than delivering through
// the router's wire table.
func (c *Controller) SetVar(name string, payload any) {
	c.varHandler(name)(payload)
}

// OnTrigger renders the template against the most recently received
// variable values (empty string for any never set) and emits the result
// on `text`.
func (c *Controller) OnTrigger(payload any) {
	c.mu.Lock()
	rendered := render(c.tmpl, c.names, c.vars)
	c.mu.Unlock()

	c.router.SendFrom(c.nodeID, "text", map[string]any{
		"nodeId": c.nodeID,
		"type":   "text",
		"text":   rendered,
	})
}

func render(tmpl string, names []string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholder.FindStringSubmatch(match)
		if len(sub) < 2 {
			return ""
		}
		return vars[sub[1]]
	})
}
