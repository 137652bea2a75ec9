package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires graphd's HTTP control surface: health/metrics,
// text-input ingestion, template triggers, wire and service introspection,
// and the live wire-activity WebSocket —
// mirroring the teacher's registerRoutes style (one handler per concern,
// a shared deps-like receiver here named runtime).
func registerRoutes(mux *http.ServeMux, rt *runtime) {
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/wires", rt.handleListWires)
	mux.HandleFunc("GET /api/services", rt.handleServices)

	mux.HandleFunc("POST /api/textinput/{id}", rt.handleTextInput)
	mux.HandleFunc("POST /api/template/{id}/trigger", rt.handleTemplateTrigger)
	mux.HandleFunc("POST /api/template/{id}/var/{name}", rt.handleTemplateVar)

	mux.HandleFunc("GET /ws/events", rt.events.handleEvents)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (rt *runtime) handleListWires(w http.ResponseWriter, r *http.Request) {
	wires := rt.router.ListWires()
	out := make([]map[string]string, 0, len(wires))
	for _, wr := range wires {
		out = append(out, map[string]string{
			"from": wr.From.String(),
			"to":   wr.To.String(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (rt *runtime) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := rt.svcMgr.StatusAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(services)
}

func (rt *runtime) handleTextInput(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, ok := rt.textNodes[id]
	if !ok {
		http.Error(w, "no such textinput node", http.StatusNotFound)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	c.Emit(req.Text)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (rt *runtime) handleTemplateTrigger(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, ok := rt.tmplNodes[id]
	if !ok {
		http.Error(w, "no such template node", http.StatusNotFound)
		return
	}
	c.OnTrigger(nil)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (rt *runtime) handleTemplateVar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	name := r.PathValue("name")
	c, ok := rt.tmplNodes[id]
	if !ok {
		http.Error(w, "no such template node", http.StatusNotFound)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	c.SetVar(name, map[string]any{"text": req.Text})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
