// Package app wires the passage runtime: config, logging, the credential
// store, HTTP routes and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	authapi "passage/cmd/internal/auth/api"
	"passage/cmd/internal/auth/apikey"
	"passage/cmd/internal/auth/credential"
	"passage/cmd/internal/auth/session"
)

// App is the passage server runtime: it owns the credential store and HTTP wiring.
type App struct {
	cfg Config
	log Logger

	store    credential.Store
	sessions *session.Manager
	binder   *apikey.Binder
	auth     *authapi.Handler
	registry *prometheus.Registry

	handler http.Handler
}

// New loads the session and auth configs from the environment, opens the
// credential store selected by cfg and wires the runtime.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	authCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("auth config: %w", err)
	}
	if err := ValidateSecurityConfig(cfg, authCfg, sessCfg); err != nil {
		return nil, err
	}

	st, err := credential.Open(ctx, cfg.CredentialConfig(), log)
	if err != nil {
		return nil, err
	}

	a, err := NewWithStore(cfg, log, st, sessCfg, authCfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

// NewWithStore wires the runtime around an already opened store. The App
// takes ownership of st.
func NewWithStore(cfg Config, log Logger, st credential.Store, sessCfg session.Config, authCfg authapi.Config) (*App, error) {
	if st == nil {
		return nil, credential.ErrNilStore
	}

	var (
		registry    *prometheus.Registry
		sessMetrics *session.Metrics
		keyMetrics  *apikey.Metrics
	)
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sessMetrics = session.NewMetrics(registry)
		keyMetrics = apikey.NewMetrics(registry)
	}

	sessions, err := session.NewManager(sessCfg, st,
		session.WithLogger(log),
		session.WithMetrics(sessMetrics),
	)
	if err != nil {
		return nil, err
	}
	binder, err := apikey.NewBinder(sessions, log, keyMetrics)
	if err != nil {
		return nil, err
	}
	auth, err := authapi.NewHandler(log, authCfg, sessions, binder)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		store:    st,
		sessions: sessions,
		binder:   binder,
		auth:     auth,
		registry: registry,
		handler:  newRouter(log, st, auth, registry),
	}, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager { return a.sessions }

// Close releases the credential store.
func (a *App) Close() error { return a.store.Close() }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "postgres", a.cfg.DatabaseURL != "")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
