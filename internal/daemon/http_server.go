package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
	"git.home.luguber.info/inful/slidebuilder/internal/metrics"
	"git.home.luguber.info/inful/slidebuilder/internal/publish"
	"git.home.luguber.info/inful/slidebuilder/internal/version"
)

// HealthResponse is served on /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
	Owner   string `json:"owner"`
	Last    Status `json:"last"`
}

// Handler returns the daemon's HTTP routes.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", d.handleHealth)
	mux.Handle("GET /metrics", metrics.HTTPHandler(d.gatherer))
	mux.HandleFunc("GET /"+publish.VirtualID, d.handleModule)
	mux.HandleFunc("POST /runs", d.handleTrigger)
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := d.Status()
	resp := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Owner:   d.Config().Owner,
		Last:    st,
	}
	if !d.startedAt.IsZero() {
		resp.Uptime = time.Since(d.startedAt).Round(time.Second).String()
	}
	if st.LastError != "" {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Daemon) handleModule(w http.ResponseWriter, _ *http.Request) {
	data, _, err := d.module.Load(publish.ResolvedVirtualID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (d *Daemon) handleTrigger(w http.ResponseWriter, _ *http.Request) {
	queued := d.Trigger("http")
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", logfields.Error(err))
	}
}
