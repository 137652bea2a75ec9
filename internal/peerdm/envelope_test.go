package peerdm

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestNormalizePayloadPlainString(t *testing.T) {
	raw, _ := json.Marshal("hello there")
	text, obj, ok := normalizePayload(raw)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if text != "hello there" || obj != nil {
		t.Fatalf("text=%q obj=%v", text, obj)
	}
}

func TestNormalizePayloadJSONObjectPrefersTextKey(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{"content": "from content", "value": "from value"})
	text, _, ok := normalizePayload(raw)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if text != "from content" {
		t.Fatalf("text = %q, want %q (content must win over value)", text, "from content")
	}
}

func TestNormalizePayloadStringifiedJSON(t *testing.T) {
	inner := `{"message":"nested message"}`
	raw, _ := json.Marshal(inner)
	text, _, ok := normalizePayload(raw)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if text != "nested message" {
		t.Fatalf("text = %q, want %q", text, "nested message")
	}
}

func TestNormalizePayloadBase64EncodedJSON(t *testing.T) {
	inner := `{"text":"decoded text"}`
	encoded := base64.StdEncoding.EncodeToString([]byte(inner))
	raw, _ := json.Marshal(encoded)
	text, _, ok := normalizePayload(raw)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if text != "decoded text" {
		t.Fatalf("text = %q, want %q", text, "decoded text")
	}
}

func TestEnvelopeDataTextPrefersPlainText(t *testing.T) {
	e := Envelope{Text: "plain", B64: base64.StdEncoding.EncodeToString([]byte("ignored"))}
	text, ok := e.dataText()
	if !ok || text != "plain" {
		t.Fatalf("dataText() = %q, %v, want plain/true", text, ok)
	}
}

func TestEnvelopeDataTextFallsBackToB64(t *testing.T) {
	e := Envelope{B64: base64.StdEncoding.EncodeToString([]byte("decoded"))}
	text, ok := e.dataText()
	if !ok || text != "decoded" {
		t.Fatalf("dataText() = %q, %v, want decoded/true", text, ok)
	}
}

func TestEnvelopeDataTextNoneSetReturnsFalse(t *testing.T) {
	e := Envelope{}
	if _, ok := e.dataText(); ok {
		t.Fatal("expected ok=false with no text/b64 fields set")
	}
}
