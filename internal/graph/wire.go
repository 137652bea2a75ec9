package graph

import "fmt"

// Wire is a directed edge from an output port to an input port.
type Wire struct {
	From PortAddress
	To   PortAddress
}

// Validate checks the invariants in the data model: no self-loops, and
// From/To must actually be output/input ports respectively.
func (w Wire) Validate() error {
	if w.From.Direction != Out {
		return fmt.Errorf("wire source %s is not an output port", w.From)
	}
	if w.To.Direction != In {
		return fmt.Errorf("wire target %s is not an input port", w.To)
	}
	if w.From.NodeID == w.To.NodeID {
		return fmt.Errorf("wire %s -> %s is a self-loop", w.From, w.To)
	}
	return nil
}
