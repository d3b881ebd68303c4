package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authapi "passage/cmd/internal/auth/api"
	"passage/cmd/internal/auth/credential"
)

func newRouter(
	log Logger,
	st credential.Store,
	auth *authapi.Handler,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID)
	r.Use(func(next http.Handler) http.Handler { return WithRequestLogging(next, log) })
	r.Use(middleware.Recoverer)
	r.Use(WithSecurityHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := PingStore(r.Context(), st, 2*time.Second); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			log.Info("readyz.store.not_ready", "err", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	if auth != nil {
		auth.Register(r)
	}
	return r
}
