package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/graphrt/runtime/internal/graph"
)

// eventHub fans out live graph.DeliverEvents to every connected browser,
// the WebSocket half of graphd's control surface (the HTTP half being
// /api/wires, /api/services and friends in routes.go).
type eventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func newEventHub(router *graph.Router) *eventHub {
	h := &eventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
	router.OnDeliver(h.broadcast)
	return h
}

type wireActivity struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *eventHub) broadcast(ev graph.DeliverEvent) {
	data, err := json.Marshal(wireActivity{From: ev.From.String(), To: ev.To.String()})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- data:
		default:
			slog.Warn("ws client too slow, dropping event", "remote", conn.RemoteAddr())
		}
	}
}

// handleEvents upgrades the request to a WebSocket and streams wire
// activity to it until the client disconnects. Write-only from the
// server's perspective; any inbound message is read and discarded purely
// to detect client-initiated close.
func (h *eventHub) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case data := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
