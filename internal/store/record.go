package store

// NodeType identifies which controller a NodeRecord configures.
type NodeType string

const (
	NodeASR       NodeType = "asr"
	NodeLLM       NodeType = "llm"
	NodeTTS       NodeType = "tts"
	NodeTextInput NodeType = "textinput"
	NodeTemplate  NodeType = "template"
	NodePeerDM    NodeType = "peerdm"
)

// NodeRecord is the persisted configuration of a single graph node.
type NodeRecord struct {
	ID     string         `json:"id"`
	Type   NodeType       `json:"type"`
	Config map[string]any `json:"config"`
}

// Transport selects which path TransportMux prefers for a graph.
type Transport string

const (
	TransportHTTP  Transport = "http"
	TransportRelay Transport = "relay"
)

// GraphConfig is the single graph-wide record: transport preference, the
// durable wire table, and the graph's own stable identifier.
type GraphConfig struct {
	Transport Transport `json:"transport"`
	Wires     []WireDTO `json:"wires"`
	GraphID   string    `json:"graphId"`
}

// WireDTO is the JSON-serializable form of a graph.Wire, decoupling
// internal/store from internal/graph.
type WireDTO struct {
	FromNodeID string `json:"fromNodeId"`
	FromPort   string `json:"fromPort"`
	ToNodeID   string `json:"toNodeId"`
	ToPort     string `json:"toPort"`
}
