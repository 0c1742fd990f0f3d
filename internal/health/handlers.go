package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the readiness gate. Shutdown turns it off so load balancers
// drain the instance before the listener closes.
func SetReady(v bool) {
	ready.Store(v)
}

// Handler exposes HTTP handlers for health endpoints. The service holds no
// durable state, so readiness reduces to which payment providers carry
// credentials.
type Handler struct {
	// Providers maps provider name to whether its credentials are configured.
	Providers map[string]bool
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness. The instance is ready when it is not draining and
// at least one payment provider is configured.
func (h Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "draining"})
		return
	}

	status := make(map[string]string, len(h.Providers))
	anyConfigured := false
	for name, configured := range h.Providers {
		if configured {
			status[name] = "ok"
			anyConfigured = true
		} else {
			status[name] = "not configured"
		}
	}

	if !anyConfigured {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}
