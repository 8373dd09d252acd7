package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dmitrymomot/todokit/pkg/logger"
)

// Check is a named readiness dependency.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthCheckHandler serves liveness and readiness probes.
//
// With no checks it answers 200 {"status":"alive"}. Otherwise the checks run
// concurrently with the request context; all passing gives 200 "ready", any
// failure gives 503 "not_ready" and is logged.
func HealthCheckHandler(log *slog.Logger, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			writeHealth(w, http.StatusOK, HealthStatus{Status: "alive"})
			return
		}

		results := make([]error, len(checks))
		var wg sync.WaitGroup
		for i, c := range checks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = c.Fn(r.Context())
			}()
		}
		wg.Wait()

		status := HealthStatus{Status: "ready", Checks: make(map[string]string, len(checks))}
		code := http.StatusOK
		for i, c := range checks {
			if err := results[i]; err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", slog.String("check", c.Name), logger.Error(err))
				status.Checks[c.Name] = "down"
				status.Status = "not_ready"
				code = http.StatusServiceUnavailable
				continue
			}
			status.Checks[c.Name] = "ok"
		}
		writeHealth(w, code, status)
	}
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
