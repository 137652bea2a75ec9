// Package graph implements the typed port/wire router (C3): publish/
// subscribe of messages keyed by port addresses, with fan-out,
// input exclusivity, and snapshot delivery.
package graph

import "fmt"

// Direction is either an input or an output port.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// PortAddress identifies a single port on a single node.
type PortAddress struct {
	NodeID    string
	Direction Direction
	Port      string
}

// String renders the address as "<nodeId>:(in|out):<portName>".
func (a PortAddress) String() string {
	return fmt.Sprintf("%s:%s:%s", a.NodeID, a.Direction, a.Port)
}

// OutPort returns a PortAddress for an output port on nodeID.
func OutPort(nodeID, port string) PortAddress { return PortAddress{NodeID: nodeID, Direction: Out, Port: port} }

// InPort returns a PortAddress for an input port on nodeID.
func InPort(nodeID, port string) PortAddress { return PortAddress{NodeID: nodeID, Direction: In, Port: port} }

// Message is any structured payload carried by a Wire. Messages are
// immutable in transit — handlers must not mutate a received Message.
type Message = map[string]any

// Text extracts the normalized text representation of a payload per the
// sink rule in the data model: prefer "text", then "value", "content",
// "data", else the payload stringified.
func Text(payload any) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return fmt.Sprintf("%v", payload)
	}
	for _, key := range []string{"text", "value", "content", "data"} {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprintf("%v", v)
		}
	}
	return fmt.Sprintf("%v", payload)
}
