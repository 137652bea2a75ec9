package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NodeStore owns NodeRecords and the single graph-wide config record,
// both persisted through a KVStore under string keys.
type NodeStore struct {
	kv KVStore
}

// New creates a NodeStore backed by kv.
func New(kv KVStore) *NodeStore {
	return &NodeStore{kv: kv}
}

// Ensure loads the record at id, creating it with typed defaults if absent
// or if the stored type doesn't match the requested type (a node being
// re-purposed to a different kind resets its config).
func (s *NodeStore) Ensure(ctx context.Context, id string, t NodeType) (*NodeRecord, error) {
	rec, err := s.Load(ctx, id)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if rec != nil && rec.Type == t {
		return rec, nil
	}

	fresh := &NodeRecord{ID: id, Type: t, Config: defaultConfig(t)}
	if err := s.SaveObj(ctx, id, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Load fetches the record at id, or ErrNotFound if absent.
func (s *NodeStore) Load(ctx context.Context, id string) (*NodeRecord, error) {
	data, err := s.kv.Get(ctx, nodeKey(id))
	if err != nil {
		return nil, err
	}
	var rec NodeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("store: decode node %s: %w", id, err)
	}
	return &rec, nil
}

// SaveObj persists record verbatim under id.
func (s *NodeStore) SaveObj(ctx context.Context, id string, record *NodeRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("store: encode node %s: %w", id, err)
	}
	return s.kv.Set(ctx, nodeKey(id), data)
}

// Update shallow-merges patch into the record's config and persists the
// result. The record must already exist (call Ensure first).
func (s *NodeStore) Update(ctx context.Context, id string, patch map[string]any) (*NodeRecord, error) {
	rec, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Config == nil {
		rec.Config = make(map[string]any)
	}
	for k, v := range patch {
		rec.Config[k] = v
	}
	if err := s.SaveObj(ctx, id, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Erase removes a node's record.
func (s *NodeStore) Erase(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, nodeKey(id))
}

// SetRelay is a convenience Update that records the relay identity (seed
// or peer address) a node last used, under the "relay" config key.
func (s *NodeStore) SetRelay(ctx context.Context, id string, t NodeType, relay any) (*NodeRecord, error) {
	if _, err := s.Ensure(ctx, id, t); err != nil {
		return nil, err
	}
	return s.Update(ctx, id, map[string]any{"relay": relay})
}

// GraphConfig loads the single graph-wide config record, generating and
// persisting a fresh graphId on first use.
func (s *NodeStore) GraphConfig(ctx context.Context) (*GraphConfig, error) {
	data, err := s.kv.Get(ctx, graphConfigKey)
	if err != nil {
		if err != ErrNotFound {
			return nil, err
		}
		cfg := &GraphConfig{Transport: TransportHTTP, Wires: nil, GraphID: uuid.NewString()}
		if err := s.SaveGraphConfig(ctx, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	var cfg GraphConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("store: decode graph config: %w", err)
	}
	if cfg.GraphID == "" {
		cfg.GraphID = uuid.NewString()
		if err := s.SaveGraphConfig(ctx, &cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// SaveGraphConfig persists the graph-wide config record.
func (s *NodeStore) SaveGraphConfig(ctx context.Context, cfg *GraphConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("store: encode graph config: %w", err)
	}
	return s.kv.Set(ctx, graphConfigKey, data)
}
