// Package health provides the process liveness and readiness probes.
//
//   - /healthz — liveness; returns 200 whenever the process serves HTTP.
//   - /readyz  — readiness; returns 200 only while every registered check
//     passes, 503 otherwise.
//
// Responses are JSON objects with a top-level "status" field ("ok" or
// "fail"), the build version, and a "checks" map naming each probe result.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Check probes one dependency. It returns nil when the dependency is
// healthy and must respect context cancellation.
type Check func(ctx context.Context) error

// Handler serves the /healthz and /readyz routes. Checks may be added
// while the handler is serving; readiness evaluates all of them
// concurrently on each request.
type Handler struct {
	version string

	mu     sync.RWMutex
	names  []string
	checks map[string]Check
}

// New creates a Handler reporting the given build version.
func New(version string) *Handler {
	return &Handler{
		version: version,
		checks:  make(map[string]Check),
	}
}

// AddCheck registers a named readiness check. Re-registering a name
// replaces the previous check.
func (h *Handler) AddCheck(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

// report is the JSON response body for both probes.
type report struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Healthz is the liveness probe. A process that can serve HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok", Version: h.version})
}

// Readyz runs every registered check concurrently, each under its own
// [checkTimeout], and reports 503 when any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	names := make([]string, len(h.names))
	copy(names, h.names)
	checks := make([]Check, len(names))
	for i, name := range names {
		checks[i] = h.checks[name]
	}
	h.mu.RUnlock()

	results := make([]string, len(names))
	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			if err := checks[i](ctx); err != nil {
				results[i] = "fail: " + err.Error()
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	ready := g.Wait() == nil

	res := report{Status: "ok", Version: h.version, Checks: make(map[string]string, len(names))}
	for i, name := range names {
		res.Checks[name] = results[i]
	}
	code := http.StatusOK
	if !ready {
		res.Status = "fail"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
