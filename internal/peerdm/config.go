package peerdm

const (
	minHeartbeatIntervalSec = 5
	defaultHeartbeatSec     = 15
)

// Config is a single PeerDM node's persisted configuration.
type Config struct {
	HeartbeatIntervalSec int
	ChunkBytes           int
	LingerEndMs          int
	PeerAddress          string
	AllowedPeers         []string
	AutoAccept           bool
}

// DefaultConfig returns the documented defaults for a new PeerDM node.
func DefaultConfig() Config {
	return Config{
		HeartbeatIntervalSec: defaultHeartbeatSec,
		ChunkBytes:           defaultChunkBytes,
		LingerEndMs:          150,
	}
}

// FromMap builds a Config from a persisted node record, applying
// DefaultConfig for anything absent or zero and clamping the heartbeat
// interval to its documented floor.
func FromMap(m map[string]any) Config {
	cfg := DefaultConfig()
	if v, ok := intVal(m["heartbeatIntervalSec"]); ok && v > 0 {
		cfg.HeartbeatIntervalSec = v
	}
	if v, ok := intVal(m["chunkBytes"]); ok && v > 0 {
		cfg.ChunkBytes = v
	}
	if v, ok := intVal(m["lingerEndMs"]); ok && v > 0 {
		cfg.LingerEndMs = v
	}
	if v, ok := m["peerAddress"].(string); ok {
		cfg.PeerAddress = v
	}
	if v, ok := m["autoAccept"].(bool); ok {
		cfg.AutoAccept = v
	}
	if v, ok := m["allowedPeers"].([]any); ok {
		peers := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				peers = append(peers, s)
			}
		}
		cfg.AllowedPeers = peers
	}
	if cfg.HeartbeatIntervalSec < minHeartbeatIntervalSec {
		cfg.HeartbeatIntervalSec = minHeartbeatIntervalSec
	}
	if cfg.ChunkBytes < minChunkBytes {
		cfg.ChunkBytes = minChunkBytes
	}
	return cfg
}

func intVal(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
