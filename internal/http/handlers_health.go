package httpx

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthCheck probes one dependency; a nil error means it is reachable.
type HealthCheck func(ctx context.Context) error

const readinessTimeout = 2 * time.Second

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler answers liveness probes without touching any dependency.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, r, http.StatusOK, healthBody{Status: "ok"})
}

// readinessHandler runs every check and reports 503 when any of them fails.
func readinessHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		body := healthBody{Status: "ok", Checks: make(map[string]string, len(names))}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				body.Checks[name] = err.Error()
				body.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			body.Checks[name] = "ok"
		}
		writeHealth(w, r, status, body)
	}
}

func writeHealth(w http.ResponseWriter, r *http.Request, status int, body healthBody) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return
	}
	WriteJSON(w, status, body)
}
