package handlers

import (
	"net/http"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/performance"
)

// HandlePing handles /ping endpoint
func HandlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong\n"))
}

// HealthHandler answers /health with "ok" and the time of the last finished cycle, if any.
func HealthHandler(tracker *performance.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		body := "ok\n"
		if last := tracker.LastCycle(); !last.IsZero() {
			body = "ok last_cycle=" + last.UTC().Format(time.RFC3339) + "\n"
		}
		_, _ = w.Write([]byte(body))
	}
}
