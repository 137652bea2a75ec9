// Package peerdm implements the PeerDM Controller (C9): a lightweight
// application-level DM protocol layered on the shared datagram relay
// client, used to ship text between two graph instances.
//
// Grounded on internal/relay's WebTransport datagram client for the
// send/receive plumbing (in the style of rustyguts-bken's transport.go
// readControl/StartReceiving loops — a background receive goroutine
// dispatching by a discriminated message Type), generalized from that
// repo's flat ControlMsg shape into the envelope/handshake/heartbeat/
// chunked-data model this protocol requires.
package peerdm

import (
	"encoding/base64"
	"encoding/json"
)

// Envelope is the wire shape of every PeerDM datagram. Every envelope
// carries From/ComponentID/GraphID/Ts; TargetID is set when the sender
// knows which remote node it is addressing.
type Envelope struct {
	Kind        string `json:"kind"` // "handshake", "heartbeat", "data", "debug"
	From        string `json:"from"`
	ComponentID string `json:"componentId"`
	TargetID    string `json:"targetId,omitempty"`
	GraphID     string `json:"graphId"`
	Ts          int64  `json:"ts"`

	// handshake
	Action    string `json:"action,omitempty"` // request|accept|decline|sync (handshake), ping|pong (heartbeat), debug action
	Heartbeat int    `json:"heartbeat,omitempty"`

	// data
	ID    string `json:"id,omitempty"`
	Seq   int    `json:"seq,omitempty"`
	Total int    `json:"total,omitempty"`
	Text  string `json:"text,omitempty"`

	// alternate data encodings accepted on inbound envelopes; producers of
	// this implementation always emit Text, never these.
	B64        string `json:"b64,omitempty"`
	PayloadB64 string `json:"payload_b64,omitempty"`
	BodyB64    string `json:"body_b64,omitempty"`

	// debug
	Note string `json:"note,omitempty"`
}

const (
	KindHandshake = "handshake"
	KindHeartbeat = "heartbeat"
	KindData      = "data"
	KindDebug     = "debug"

	ActionRequest = "request"
	ActionAccept  = "accept"
	ActionDecline = "decline"
	ActionSync    = "sync"

	ActionPing = "ping"
	ActionPong = "pong"
)

// dataText returns the chunk's decoded text, accepting any of the
// alternate base64 encodings a peer might send alongside the plain Text
// field, preferring Text itself.
func (e Envelope) dataText() (string, bool) {
	if e.Text != "" {
		return e.Text, true
	}
	for _, b64 := range []string{e.B64, e.PayloadB64, e.BodyB64} {
		if b64 == "" {
			continue
		}
		if raw, err := base64.StdEncoding.DecodeString(b64); err == nil {
			return string(raw), true
		}
	}
	return "", false
}

// preferredTextKeys is the key-preference order used to pick the best
// textual representation out of a best-effort-parsed inbound payload.
var preferredTextKeys = []string{
	"text", "message", "content", "value", "body", "payload",
	"data", "note", "detail", "result", "entry", "summary", "description",
}

// normalizePayload best-effort hydrates an inbound datagram that may
// arrive as a string, a byte slice, or an already-parsed object, and
// picks the best textual representation per preferredTextKeys. A string
// value is tried as JSON first, then as base64-encoded JSON, before
// falling back to treating it as the literal text itself.
func normalizePayload(raw json.RawMessage) (text string, obj map[string]any, ok bool) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if m, hydrated := hydrateString(asString); hydrated {
			if t, found := pickText(m); found {
				return t, m, true
			}
			return "", m, true
		}
		return asString, nil, true
	}

	var asObj map[string]any
	if err := json.Unmarshal(raw, &asObj); err == nil {
		if t, found := pickText(asObj); found {
			return t, asObj, true
		}
		return "", asObj, true
	}

	return "", nil, false
}

// hydrateString attempts to parse s as JSON directly, then as
// base64-decoded JSON, repeating the hydration once more in case the
// decoded payload is itself a JSON-encoded string.
func hydrateString(s string) (map[string]any, bool) {
	if m, ok := tryParseObject(s); ok {
		return m, true
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		if m, ok := tryParseObject(string(raw)); ok {
			return m, true
		}
		var nested string
		if err := json.Unmarshal(raw, &nested); err == nil {
			if m, ok := tryParseObject(nested); ok {
				return m, true
			}
		}
	}
	return nil, false
}

func tryParseObject(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}

// pickText returns the first preferredTextKeys entry present in m whose
// value is a string.
func pickText(m map[string]any) (string, bool) {
	for _, key := range preferredTextKeys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
