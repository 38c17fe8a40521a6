// Package health exposes the liveness/readiness HTTP surface cmd/agentcored
// mounts alongside the rest of the API. Grounded on the teacher's
// internal/server (go-chi/chi/v5 router, go-chi/cors middleware, the
// same setupMiddleware stack of RequestID/Logger/Recoverer/RealIP/CORS),
// scoped down to the two checks an orchestrator needs: is the process up,
// and can it reach its dependencies.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentrt/core/internal/eventbus"
	"github.com/agentrt/core/internal/storage"
)

// Pinger is the narrow collaborator health needs from the durable store —
// just enough to prove the connection is alive, not the full storage API.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker reports this instance's own liveness/readiness in its own words;
// cmd/agentcored wires *engine.Engine/*actor.Actor pools through whatever
// small adapter satisfies this, rather than health depending on them
// directly.
type Checker interface {
	Ready(ctx context.Context) error
}

var _ Pinger = (*storage.Storage)(nil)

// Config configures the health router's checks and CORS policy.
type Config struct {
	// Store backs the readiness check's database ping. Required.
	Store Pinger
	// Bus backs the readiness check's event-bus liveness check. Optional.
	Bus *eventbus.Bus
	// Extra runs after Store/Bus, for a caller's own readiness signals
	// (e.g. "at least one provider configured").
	Extra []Checker
	// EnableCORS mirrors the teacher's server.Config.EnableCORS.
	EnableCORS bool
	// Timeout bounds how long Readyz waits on Store.Ping and Extra checks.
	Timeout time.Duration
}

// DefaultConfig mirrors the teacher's server.DefaultConfig defaults that
// still apply to this narrower surface.
func DefaultConfig() Config {
	return Config{EnableCORS: true, Timeout: 5 * time.Second}
}

// NewRouter builds the /healthz (liveness) and /readyz (readiness) routes.
// Liveness never touches a dependency — a process that can answer HTTP at
// all is live by definition. Readiness additionally pings Store, and any
// configured Bus/Extra checks, failing with 503 if any of them error.
func NewRouter(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET"},
			AllowedHeaders:   []string{"Accept", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), timeout)
		defer cancel()

		if cfg.Store != nil {
			if err := cfg.Store.Ping(ctx); err != nil {
				http.Error(w, "storage unavailable: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		if cfg.Bus != nil && cfg.Bus.Closed() {
			http.Error(w, "event bus closed", http.StatusServiceUnavailable)
			return
		}
		for _, c := range cfg.Extra {
			if err := c.Ready(ctx); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
