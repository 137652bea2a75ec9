// Package transport implements TransportMux (C5): a single request/response
// and streaming facade over two interchangeable paths — direct pooled HTTP,
// and a JSON-over-datagram relay — so controllers never need to know which
// transport a graph is configured to use.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/graphrt/runtime/internal/metrics"
	"github.com/graphrt/runtime/internal/relay"
)

const defaultPostTimeout = 45 * time.Second
const defaultStreamTimeout = 300 * time.Second
const poolSize = 32

// NewPooledHTTPClient builds an http.Client tuned for many concurrent
// short-lived calls to remote ASR/LLM/TTS backends.
func NewPooledHTTPClient(size int, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          size,
			MaxIdleConnsPerHost:   size,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// Auth describes how to authenticate a request.
type Auth struct {
	APIKey string
}

// authHeaders clones headers, adds Content-Type if absent, and sets the
// authorization header from apiKey: Authorization if it already carries a
// "Bearer " prefix, X-API-Key otherwise.
func authHeaders(headers map[string]string, auth Auth) map[string]string {
	out := make(map[string]string, len(headers)+2)
	for k, v := range headers {
		out[k] = v
	}
	if _, ok := out["Content-Type"]; !ok {
		out["Content-Type"] = "application/json"
	}
	if auth.APIKey != "" {
		if strings.HasPrefix(auth.APIKey, "Bearer ") {
			out["Authorization"] = auth.APIKey
		} else {
			out["X-API-Key"] = auth.APIKey
		}
	}
	return out
}

// getHeaders strips Content-Type (no body on a GET) and requests JSON back.
func getHeaders(headers map[string]string, auth Auth) map[string]string {
	out := authHeaders(headers, auth)
	delete(out, "Content-Type")
	out["Accept"] = "application/json"
	return out
}

// Blob is a fetched binary payload with its declared content type.
type Blob struct {
	ContentType string
	Bytes       []byte
}

// StreamHandlers receives the phases of a relay streaming response.
type StreamHandlers struct {
	OnBegin func(meta relay.BeginMeta)
	OnChunk func(seq int, data []byte)
	OnLines func(lines []relay.LineChunk)
	OnEnd   func(meta relay.EndMeta)
}

type pendingRequest struct {
	done chan relay.Frame
}

type pendingStream struct {
	handlers StreamHandlers
	done     chan struct{}
	timer    *time.Timer
}

// Mux is the TransportMux: one direct HTTP client, one relay client, and
// the correlation-id bookkeeping that turns async relay datagrams back
// into synchronous-looking calls for callers.
type Mux struct {
	http  *http.Client
	relay *relay.Client

	relayAddr string

	mu      sync.Mutex
	pending map[string]*pendingRequest
	streams map[string]*pendingStream
}

// New creates a Mux. relayClient may be nil if the graph never uses relay
// transport; EnsureRelay then becomes a no-op error path.
func New(relayClient *relay.Client, relayAddr string) *Mux {
	m := &Mux{
		http:      NewPooledHTTPClient(poolSize, defaultPostTimeout),
		relay:     relayClient,
		relayAddr: relayAddr,
		pending:   make(map[string]*pendingRequest),
		streams:   make(map[string]*pendingStream),
	}
	if relayClient != nil {
		relayClient.SetHandlers(relay.Handlers{
			OnResponse: m.onResponse,
			OnBegin:    m.onBegin,
			OnChunk:    m.onChunk,
			OnLines:    m.onLines,
			OnEnd:      m.onEnd,
		})
	}
	return m
}

// EnsureRelay idempotently brings up the relay client.
func (m *Mux) EnsureRelay(ctx context.Context) error {
	if m.relay == nil {
		return fmt.Errorf("transport: no relay client configured")
	}
	return m.relay.EnsureRelay(ctx, m.relayAddr)
}

// GetJSON performs a GET, decoded as JSON.
func (m *Mux) GetJSON(ctx context.Context, base, path string, auth Auth, useRelay bool) (any, error) {
	url := base + path
	if useRelay {
		frame, err := m.sendRequestRelay(ctx, relay.Request{
			URL: url, Method: http.MethodGet, Headers: getHeaders(nil, auth),
		}, defaultPostTimeout)
		if err != nil {
			return nil, err
		}
		return decodeRelayJSON(frame)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	applyHeaders(req, getHeaders(nil, auth))
	return m.doJSON(req)
}

// PostJSON performs a POST with a JSON body, decoded as JSON.
func (m *Mux) PostJSON(ctx context.Context, base, path string, body any, auth Auth, useRelay bool, timeout time.Duration) (any, error) {
	if timeout == 0 {
		timeout = defaultPostTimeout
	}
	url := base + path
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("transport: encode body: %w", err)
	}

	if useRelay {
		frame, err := m.sendRequestRelay(ctx, relay.Request{
			URL: url, Method: http.MethodPost, Headers: authHeaders(nil, auth),
			JSON: payload, TimeoutMs: int(timeout.Milliseconds()),
		}, timeout)
		if err != nil {
			return nil, err
		}
		return decodeRelayJSON(frame)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	applyHeaders(req, authHeaders(nil, auth))
	return m.doJSON(req)
}

// FetchBlob fetches a binary resource, direct or via relay.
func (m *Mux) FetchBlob(ctx context.Context, fullURL string, useRelay bool, auth Auth) (Blob, error) {
	if useRelay {
		frame, err := m.sendRequestRelay(ctx, relay.Request{
			URL: fullURL, Method: http.MethodGet, Headers: getHeaders(nil, auth),
		}, defaultPostTimeout)
		if err != nil {
			return Blob{}, err
		}
		var meta relay.BeginMeta
		_ = json.Unmarshal(frame.Meta, &meta)
		return Blob{ContentType: meta.Headers["Content-Type"], Bytes: frame.Bytes}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Blob{}, err
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return Blob{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Blob{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Blob{}, fmt.Errorf("%d %s", resp.StatusCode, resp.Status)
	}
	return Blob{ContentType: resp.Header.Get("Content-Type"), Bytes: data}, nil
}

// OpenDirectStream opens a streaming GET against the direct HTTP path,
// returning the live response body for a caller-driven SSE/NDJSON reader.
// It has no relay equivalent here — relay streaming goes through
// SendStream, which delivers chunks via the datagram dispatcher instead of
// a readable body.
func (m *Mux) OpenDirectStream(ctx context.Context, url string, auth Auth) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	applyHeaders(req, getHeaders(nil, auth))
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%d %s", resp.StatusCode, resp.Status)
	}
	return resp.Body, nil
}

// OpenDirectPostStream opens a streaming POST against the direct HTTP
// path, returning the live response body for a caller-driven NDJSON
// reader. Same rationale as OpenDirectStream: the relay path streams
// through SendStream's chunk callbacks instead of a readable body.
func (m *Mux) OpenDirectPostStream(ctx context.Context, url string, body any, auth Auth) (io.ReadCloser, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("transport: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	applyHeaders(req, authHeaders(nil, auth))
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%d %s", resp.StatusCode, resp.Status)
	}
	return resp.Body, nil
}

// SendRequest issues a relay request expecting a single relay.response.
func (m *Mux) SendRequest(ctx context.Context, req relay.Request, timeout time.Duration) (relay.Frame, error) {
	return m.sendRequestRelay(ctx, req, timeout)
}

// SendStream issues a relay request expecting a begin/chunk*/lines*/end
// sequence, dispatching each phase to handlers until end (plus linger) or
// timeout.
func (m *Mux) SendStream(ctx context.Context, req relay.Request, handlers StreamHandlers, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultStreamTimeout
	}
	if m.relay == nil {
		return fmt.Errorf("transport: no relay client configured")
	}

	req.Stream = "chunks"
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers["X-Relay-Stream"] = "chunks"

	id := m.relay.NextID()
	done := make(chan struct{})
	ps := &pendingStream{handlers: handlers, done: done}

	m.mu.Lock()
	m.streams[id] = ps
	m.setActiveGaugeLocked()
	m.mu.Unlock()

	if err := m.relay.Send(relay.Frame{Event: relay.EventHTTPRequest, ID: id, Req: &req}); err != nil {
		m.mu.Lock()
		delete(m.streams, id)
		m.setActiveGaugeLocked()
		m.mu.Unlock()
		return err
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		m.mu.Lock()
		delete(m.streams, id)
		m.setActiveGaugeLocked()
		m.mu.Unlock()
		return fmt.Errorf("transport: stream %s timed out after %s", id, timeout)
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.streams, id)
		m.setActiveGaugeLocked()
		m.mu.Unlock()
		return ctx.Err()
	}
}

// setActiveGaugeLocked refreshes the relay_streams_active gauge. Must be
// called with m.mu held.
func (m *Mux) setActiveGaugeLocked() {
	metrics.RelayStreamsActive.Set(float64(len(m.pending) + len(m.streams)))
}

func (m *Mux) sendRequestRelay(ctx context.Context, req relay.Request, timeout time.Duration) (relay.Frame, error) {
	if m.relay == nil {
		return relay.Frame{}, fmt.Errorf("transport: no relay client configured")
	}
	if timeout == 0 {
		timeout = defaultPostTimeout
	}

	id := m.relay.NextID()
	done := make(chan relay.Frame, 1)

	m.mu.Lock()
	m.pending[id] = &pendingRequest{done: done}
	m.setActiveGaugeLocked()
	m.mu.Unlock()

	if err := m.relay.Send(relay.Frame{Event: relay.EventHTTPRequest, ID: id, Req: &req}); err != nil {
		m.mu.Lock()
		delete(m.pending, id)
		m.setActiveGaugeLocked()
		m.mu.Unlock()
		return relay.Frame{}, err
	}

	select {
	case frame := <-done:
		return frame, nil
	case <-time.After(timeout):
		m.mu.Lock()
		delete(m.pending, id)
		m.setActiveGaugeLocked()
		m.mu.Unlock()
		return relay.Frame{}, fmt.Errorf("transport: request %s timed out after %s", id, timeout)
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.pending, id)
		m.setActiveGaugeLocked()
		m.mu.Unlock()
		return relay.Frame{}, ctx.Err()
	}
}

func (m *Mux) onResponse(id string, frame relay.Frame) {
	m.mu.Lock()
	p, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
		m.setActiveGaugeLocked()
	}
	m.mu.Unlock()
	if ok {
		p.done <- frame
	}
}

func (m *Mux) onBegin(id string, meta relay.BeginMeta) {
	m.mu.Lock()
	ps, ok := m.streams[id]
	m.mu.Unlock()
	if ok && ps.handlers.OnBegin != nil {
		ps.handlers.OnBegin(meta)
	}
}

func (m *Mux) onChunk(id string, seq int, data []byte) {
	m.mu.Lock()
	ps, ok := m.streams[id]
	m.mu.Unlock()
	if ok && ps.handlers.OnChunk != nil {
		ps.handlers.OnChunk(seq, data)
	}
}

func (m *Mux) onLines(id string, lines []relay.LineChunk) {
	m.mu.Lock()
	ps, ok := m.streams[id]
	m.mu.Unlock()
	if ok && ps.handlers.OnLines != nil {
		ps.handlers.OnLines(lines)
	}
}

func (m *Mux) onEnd(id string, meta relay.EndMeta) {
	m.mu.Lock()
	ps, ok := m.streams[id]
	m.mu.Unlock()
	if !ok {
		return
	}

	finish := func() {
		if ps.handlers.OnEnd != nil {
			ps.handlers.OnEnd(meta)
		}
		m.mu.Lock()
		delete(m.streams, id)
		m.setActiveGaugeLocked()
		m.mu.Unlock()
		close(ps.done)
	}

	if relay.DefaultLingerMs <= 0 {
		finish()
		return
	}
	ps.timer = time.AfterFunc(time.Duration(relay.DefaultLingerMs)*time.Millisecond, finish)
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func (m *Mux) doJSON(req *http.Request) (any, error) {
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%d %s", resp.StatusCode, resp.Status)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Warn("transport: response was not JSON", "error", err)
		return string(data), nil
	}
	return out, nil
}

func decodeRelayJSON(frame relay.Frame) (any, error) {
	if len(frame.Bytes) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(frame.Bytes, &out); err != nil {
		return string(frame.Bytes), nil
	}
	return out, nil
}
