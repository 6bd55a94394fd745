package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/toko-buku/internal/common"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the process-wide readiness flag. Shutdown sets it to false so
// load balancers drain the instance before the listener closes.
func SetReady(v bool) {
	ready.Store(v)
}

// Probe checks one named dependency.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error

	// Advisory probes are reported but never fail readiness.
	Advisory bool
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes []Probe
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	status := make(map[string]string, len(h.Probes)+1)
	healthy := true
	degraded := false
	for _, p := range h.Probes {
		if err := runProbe(r.Context(), p); err != nil {
			status[p.Name] = err.Error()
			if p.Advisory {
				degraded = true
			} else {
				healthy = false
			}
			continue
		}
		status[p.Name] = "ok"
	}
	code := http.StatusOK
	status["status"] = "ok"
	switch {
	case !healthy:
		code = http.StatusServiceUnavailable
		status["status"] = "unavailable"
	case degraded:
		status["status"] = "degraded"
	}
	common.JSON(w, code, status)
}

func runProbe(ctx context.Context, p Probe) error {
	if p.Check == nil {
		return nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}
