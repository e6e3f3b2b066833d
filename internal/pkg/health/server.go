package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/health/handlers"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/performance"
)

const defaultReadHeaderTimeout = 5 * time.Second

// Deps are the collaborators the HTTP surface reads from.
type Deps struct {
	Store   handlers.GameReader
	Tracker *performance.Tracker
	MaxGap  time.Duration
}

// NewMux maps the health, metrics and game inspection routes.
func NewMux(d Deps) *http.ServeMux {
	tracker := d.Tracker
	if tracker == nil {
		tracker = performance.GetTracker()
	}
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/ping", handlers.HandlePing)
	mux.HandleFunc("/health", handlers.HealthHandler(tracker))

	mux.HandleFunc("/metrics", handlers.MetricsHandler(tracker))

	if d.Store != nil {
		mux.HandleFunc("/games", handlers.GamesHandler(d.Store))
		mux.HandleFunc("/games/gaps", handlers.GapsHandler(d.Store, d.MaxGap))
		mux.HandleFunc("/games/alerts", handlers.AlertsHandler(d.Store))
	}
	return mux
}

// Run serves the mux on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, service string, d Deps) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(d),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		slog.Info("Health server listening", "service", service, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health server error", "service", service, "error", err)
		}
	}()
}
