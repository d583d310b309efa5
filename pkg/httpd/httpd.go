// Package httpd mounts the operator-facing endpoints the serve command
// listens on: a liveness probe and the Prometheus scrape endpoint. The
// business HTTP API in front of pkg/access — request routing, multipart
// upload parsing, the web UI — is an external collaborator; this package
// only carries the ambient ops surface a deployable daemon needs
// regardless, grounded on the cs3org-reva services' router-per-concern
// shape (ocgraph.go's chi.NewRouter usage).
package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ddrive-io/ddrive/pkg/appctx"
)

// Health reports whether the daemon considers itself ready to serve.
type Health func() error

// New builds the ops router: /healthz and /metrics only. baseLogger seeds
// appctx.Middleware so a failing health check logs with the same
// request-id-tagged fields as the rest of the daemon.
func New(health Health, baseLogger zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(appctx.Middleware(baseLogger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				appctx.GetLogger(r.Context()).Error().Str("trace", appctx.GetTrace(r.Context())).Msg(err.Error())
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
