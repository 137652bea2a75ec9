package peerdm

import (
	"testing"
	"time"
)

func TestHeartbeatIndicatorThresholds(t *testing.T) {
	cases := []struct {
		missed int
		want   HeartbeatIndicator
	}{
		{0, IndicatorOnline},
		{1, IndicatorWarning},
		{4, IndicatorWarning},
		{5, IndicatorCritical},
		{10, IndicatorCritical},
	}
	for _, c := range cases {
		if got := heartbeatIndicator(c.missed); got != c.want {
			t.Errorf("heartbeatIndicator(%d) = %q, want %q", c.missed, got, c.want)
		}
	}
}

func TestPeerStateBeginOutgoingTransitions(t *testing.T) {
	s := newPeerState(nil, false)
	s.beginOutgoing("peer-1")
	if s.handshake != HandshakePending || s.direction != DirectionOutgoing {
		t.Fatalf("state = %+v", s)
	}
	if s.peerAddress != "peer-1" {
		t.Fatalf("peerAddress = %q", s.peerAddress)
	}
}

func TestPeerStateAcceptStartsHeartbeatTracking(t *testing.T) {
	s := newPeerState(nil, false)
	s.beginOutgoing("peer-1")
	s.missedBeats = 3
	now := time.Now()
	s.accept(now)
	if s.handshake != HandshakeAccepted || s.direction != DirectionAccepted {
		t.Fatalf("state = %+v", s)
	}
	if s.missedBeats != 0 {
		t.Fatalf("missedBeats = %d, want 0 after accept", s.missedBeats)
	}
	if !s.lastSeenAt.Equal(now) {
		t.Fatalf("lastSeenAt not set to accept time")
	}
}

func TestPeerStateDeclineTransitions(t *testing.T) {
	s := newPeerState(nil, false)
	s.beginIncoming("peer-1", "comp-1")
	s.decline()
	if s.handshake != HandshakeDeclined || s.direction != DirectionDeclined {
		t.Fatalf("state = %+v", s)
	}
}

func TestPeerStateIsAllowedViaAllowList(t *testing.T) {
	s := newPeerState([]string{"peer-a", "peer-b"}, false)
	if !s.isAllowed("peer-a") {
		t.Fatal("peer-a should be allowed")
	}
	if s.isAllowed("peer-c") {
		t.Fatal("peer-c should not be allowed")
	}
}

func TestPeerStateIsAllowedViaAutoAccept(t *testing.T) {
	s := newPeerState(nil, true)
	if !s.isAllowed("anyone") {
		t.Fatal("autoAccept should allow any address")
	}
}

func TestPeerStateTimedOut(t *testing.T) {
	s := newPeerState(nil, false)
	interval := 5 * time.Second
	s.lastSeenAt = time.Now().Add(-26 * time.Second) // > 5*interval
	if !s.timedOut(time.Now(), interval) {
		t.Fatal("expected timed out after > 5x interval of silence")
	}
	s.lastSeenAt = time.Now()
	if s.timedOut(time.Now(), interval) {
		t.Fatal("expected not timed out right after touch")
	}
}

func TestPeerStateTimedOutZeroLastSeenIsFalse(t *testing.T) {
	s := newPeerState(nil, false)
	if s.timedOut(time.Now(), 5*time.Second) {
		t.Fatal("zero lastSeenAt (never connected) should never report timed out")
	}
}
