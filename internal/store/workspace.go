package store

import (
	"context"
	"encoding/json"
	"fmt"
)

const workspaceKey = "graph.workspace"

// WorkspaceNode is one entry in the editor-owned node list: just enough
// for graphd to know what to Ensure at boot. Per-node tuning lives in
// NodeConfigs, not here.
type WorkspaceNode struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
}

// Workspace is the editor-owned record this package only reads during
// restore: the full node list, the wire table, and each node's config
// overrides. The editor itself (drag/snap/spline drawing, the HTML/DOM
// layer) is out of scope here; graphd only consumes what it last saved.
type Workspace struct {
	Nodes       []WorkspaceNode           `json:"nodes"`
	Links       []WireDTO                 `json:"links"`
	NodeConfigs map[string]map[string]any `json:"nodeConfigs"`
}

// LoadWorkspace loads the persisted workspace, or an empty Workspace if
// the editor has never saved one (a fresh NodeStore has no nodes yet).
func (s *NodeStore) LoadWorkspace(ctx context.Context) (*Workspace, error) {
	data, err := s.kv.Get(ctx, workspaceKey)
	if err != nil {
		if err == ErrNotFound {
			return &Workspace{NodeConfigs: map[string]map[string]any{}}, nil
		}
		return nil, err
	}
	var ws Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("store: decode workspace: %w", err)
	}
	if ws.NodeConfigs == nil {
		ws.NodeConfigs = map[string]map[string]any{}
	}
	return &ws, nil
}

// SaveWorkspace persists the workspace record. Used by graph-seed and
// tests; the live editor UI that normally owns this write is out of scope.
func (s *NodeStore) SaveWorkspace(ctx context.Context, ws *Workspace) error {
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("store: encode workspace: %w", err)
	}
	return s.kv.Set(ctx, workspaceKey, data)
}
