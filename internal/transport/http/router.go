// Package httptransport wires the vault's HTTP surface: credential
// issuance and retrieval, the queryable access log, and the chained log.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	credentialhandler "tracevault/internal/credential/handler"
	"tracevault/internal/platform/database"
	"tracevault/internal/platform/middleware"
	"tracevault/internal/trace"
	"tracevault/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	Credentials *credentialhandler.Handler
	Trace       *trace.Handler
	Pool        *database.Pool
	Logger      *slog.Logger
}

// NewRouter wires all public endpoints with the standard middleware stack.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	deps.Credentials.Register(r)
	deps.Trace.Register(r)

	r.Get("/healthz", handleHealth(deps.Pool))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func handleHealth(pool *database.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Health(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
