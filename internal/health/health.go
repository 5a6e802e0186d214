// Package health serves the liveness and readiness endpoints.
//
// /healthz answers 200 to any request: a process that can serve HTTP counts
// as alive. /readyz walks the registered checks and answers 200 only when
// every dependency passes; the JSON body names each check with "ok" or the
// failure text, so an operator can see which dependency holds readiness back.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Each readiness check gets this much time before its context is cancelled.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil while the dependency is
// usable; Name keys the outcome in the /readyz body.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is satisfied by anything with a Ping probe, such as a database pool
// or the transcript store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping adapts a [Pinger] into a named readiness check.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// Handler answers /healthz and /readyz. The check list is fixed at
// construction, so it is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New builds a Handler over the given checks. /readyz evaluates them in
// order on every request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Mount attaches both probe routes to r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
}

// Healthz reports liveness. It never fails.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz reports readiness: 200 with every check "ok", 503 as soon as any
// dependency fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.evaluate(r.Context())

	rep := report{Status: "ok", Checks: checks}
	code := http.StatusOK
	if !ready {
		rep.Status = "fail"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

// evaluate runs every check under its own timeout and collects the outcomes.
func (h *Handler) evaluate(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string, len(h.checkers))
	ready := true
	for _, c := range h.checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
			continue
		}
		checks[c.Name] = "ok"
	}
	return checks, ready
}

// report is the wire shape of both endpoints.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
