package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthHeadersBearerVsAPIKey(t *testing.T) {
	h := authHeaders(nil, Auth{APIKey: "Bearer abc123"})
	if h["Authorization"] != "Bearer abc123" {
		t.Fatalf("Authorization = %q", h["Authorization"])
	}
	if _, ok := h["X-API-Key"]; ok {
		t.Fatal("X-API-Key should not be set for Bearer keys")
	}

	h2 := authHeaders(nil, Auth{APIKey: "plain-key"})
	if h2["X-API-Key"] != "plain-key" {
		t.Fatalf("X-API-Key = %q", h2["X-API-Key"])
	}
	if h2["Content-Type"] != "application/json" {
		t.Fatalf("Content-Type default missing: %v", h2)
	}
}

func TestAuthHeadersPreservesExistingContentType(t *testing.T) {
	h := authHeaders(map[string]string{"Content-Type": "text/plain"}, Auth{})
	if h["Content-Type"] != "text/plain" {
		t.Fatalf("Content-Type should not be overwritten, got %q", h["Content-Type"])
	}
}

func TestGetHeadersStripsContentType(t *testing.T) {
	h := getHeaders(nil, Auth{APIKey: "k"})
	if _, ok := h["Content-Type"]; ok {
		t.Fatal("GET headers must not carry Content-Type")
	}
	if h["Accept"] != "application/json" {
		t.Fatalf("Accept = %q", h["Accept"])
	}
}

func TestGetJSONDirectPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing Accept header")
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	m := New(nil, "")
	out, err := m.GetJSON(context.Background(), srv.URL, "/path", Auth{}, false)
	if err != nil {
		t.Fatal(err)
	}
	obj, ok := out.(map[string]any)
	if !ok || obj["ok"] != true {
		t.Fatalf("got %#v", out)
	}
}

func TestPostJSONNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := New(nil, "")
	_, err := m.PostJSON(context.Background(), srv.URL, "/p", map[string]string{"a": "b"}, Auth{}, false, 0)
	if err == nil {
		t.Fatal("expected error on non-2xx")
	}
}

func TestEnsureRelayWithoutClientErrors(t *testing.T) {
	m := New(nil, "")
	if err := m.EnsureRelay(context.Background()); err == nil {
		t.Fatal("expected error with no relay client configured")
	}
}
