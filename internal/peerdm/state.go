package peerdm

import "time"

// Handshake is the node's top-level connection state.
type Handshake string

const (
	HandshakeIdle      Handshake = "idle"
	HandshakePending   Handshake = "pending"
	HandshakeAccepted  Handshake = "accepted"
	HandshakeDeclined  Handshake = "declined"
)

// PendingDirection distinguishes who initiated a pending handshake.
type PendingDirection string

const (
	DirectionIdle     PendingDirection = "idle"
	DirectionOutgoing PendingDirection = "outgoing"
	DirectionIncoming PendingDirection = "incoming"
	DirectionAccepted PendingDirection = "accepted"
	DirectionDeclined PendingDirection = "declined"
)

// HeartbeatIndicator classifies connection liveness from missed beats.
type HeartbeatIndicator string

const (
	IndicatorOnline   HeartbeatIndicator = "online"
	IndicatorWarning  HeartbeatIndicator = "warning"
	IndicatorCritical HeartbeatIndicator = "critical"
)

func heartbeatIndicator(missed int) HeartbeatIndicator {
	switch {
	case missed >= 5:
		return IndicatorCritical
	case missed >= 1:
		return IndicatorWarning
	default:
		return IndicatorOnline
	}
}

// peerState is the full per-node PeerDM state, mirroring the documented
// state shape: handshake/direction, peer identity, allow-list, heartbeat
// bookkeeping, and the reassembly inbox.
type peerState struct {
	handshake         Handshake
	direction         PendingDirection
	peerAddress       string
	remoteComponentID string
	allowedPeers      []string
	autoAccept        bool
	lastSeenAt        time.Time
	missedBeats       int
	inbox             *inbox
}

func newPeerState(allowedPeers []string, autoAccept bool) *peerState {
	return &peerState{
		handshake:    HandshakeIdle,
		direction:    DirectionIdle,
		allowedPeers: allowedPeers,
		autoAccept:   autoAccept,
		inbox:        newInbox(),
	}
}

// isAllowed reports whether addr is pre-approved for auto-acceptance.
func (s *peerState) isAllowed(addr string) bool {
	if s.autoAccept {
		return true
	}
	for _, a := range s.allowedPeers {
		if a == addr {
			return true
		}
	}
	return false
}

// beginOutgoing transitions idle -> pending/outgoing when the user
// supplies a peer address.
func (s *peerState) beginOutgoing(addr string) {
	s.peerAddress = addr
	s.handshake = HandshakePending
	s.direction = DirectionOutgoing
}

// beginIncoming transitions idle -> pending/incoming on an unsolicited
// handshake request, or is skipped entirely by the caller when
// isAllowed(addr) holds (auto-acceptance bypasses the invite).
func (s *peerState) beginIncoming(addr, componentID string) {
	s.peerAddress = addr
	s.remoteComponentID = componentID
	s.handshake = HandshakePending
	s.direction = DirectionIncoming
}

// accept transitions pending -> accepted and (re)starts heartbeat
// tracking. Also used to re-assert an already-accepted session on a
// fresh request or sync from the known peer.
func (s *peerState) accept(now time.Time) {
	s.handshake = HandshakeAccepted
	s.direction = DirectionAccepted
	s.lastSeenAt = now
	s.missedBeats = 0
}

// decline transitions pending/incoming -> declined.
func (s *peerState) decline() {
	s.handshake = HandshakeDeclined
	s.direction = DirectionDeclined
}

// touch records a heartbeat pong/ping arrival from the peer, resetting
// the missed-beat counter.
func (s *peerState) touch(now time.Time) {
	s.lastSeenAt = now
	s.missedBeats = 0
}

// timedOut reports whether the peer has been silent for more than
// 5 heartbeat intervals.
func (s *peerState) timedOut(now time.Time, interval time.Duration) bool {
	if s.lastSeenAt.IsZero() {
		return false
	}
	return now.Sub(s.lastSeenAt) > 5*interval
}
