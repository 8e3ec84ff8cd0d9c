// Package app wires the securebank server runtime: config, logging, storage,
// the session lifecycle, HTTP routes and the session event stream.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"securebank/cmd/identity"
	authapi "securebank/cmd/internal/auth/api"
	"securebank/cmd/internal/auth/session"
	"securebank/cmd/internal/realtime"
	"securebank/cmd/security/digest"
	"securebank/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// stores groups the persistence backends selected at startup.
type stores struct {
	closer    Store
	accounts  identity.Store
	sessions  session.Store
	pool      *pgxpool.Pool
	dbEnabled bool
}

// App is the securebank server runtime.
type App struct {
	cfg Config
	log Logger

	store     Store
	dbPool    *pgxpool.Pool
	dbEnabled bool

	handler http.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	secrets, err := ResolveSecrets(cfg, log)
	if err != nil {
		return nil, err
	}

	pw := passwordConfig(cfg)
	if err := pw.Check(); err != nil {
		return nil, err
	}
	dummyHash, err := pw.DummyHash()
	if err != nil {
		return nil, err
	}
	ssnDigest, err := digest.New(secrets.HMACKey, 0)
	if err != nil {
		return nil, err
	}
	codec, err := session.NewCodec(secrets.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}

	st, err := newStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*App, error) {
		_ = st.closer.Close(context.Background())
		return nil, err
	}

	accounts, err := identity.NewService(st.accounts, pw, ssnDigest, dummyHash)
	if err != nil {
		return fail(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := realtime.NewHub(log)

	sessCfg := session.Config{
		Issuer:          cfg.JWTIssuer,
		SessionDuration: cfg.SessionDuration,
		RenewThreshold:  cfg.RenewThreshold,
	}
	manager, err := session.NewManager(sessCfg, codec, st.sessions, accounts,
		session.WithLogger(log),
		session.WithMetrics(session.NewMetrics(reg)),
		session.WithNotifier(hub),
	)
	if err != nil {
		return fail(err)
	}

	apiCfg := authapi.DefaultConfig()
	apiCfg.MaxBodyBytes = cfg.MaxBodyBytes
	apiCfg.CookieSecure = cfg.CookieSecure

	auth, err := authapi.NewHandler(log, apiCfg, accounts, manager)
	if err != nil {
		return fail(err)
	}

	gwCfg := realtime.DefaultGatewayConfig()
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		gwCfg.AllowedOrigins = origins
	}
	maxAge := sessCfg.MaxAgeSeconds()
	ws, err := realtime.NewWSGateway(log, hub, manager,
		func(w http.ResponseWriter, r *http.Request) session.Transport {
			return authapi.NewCookieTransport(w, r, apiCfg, maxAge)
		},
		gwCfg,
	)
	if err != nil {
		return fail(err)
	}

	mux := http.NewServeMux()
	registerHTTP(mux, routes{
		log:       log,
		cfg:       cfg,
		dbPool:    st.pool,
		dbEnabled: st.dbEnabled,
		metrics:   reg,
		ws:        ws,
		auth:      auth,
	})

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st.closer,
		dbPool:    st.pool,
		dbEnabled: st.dbEnabled,
		handler:   WithRequestID(WithRequestLogging(WithSecurityHeaders(mux), log)),
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

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

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled, "env", a.cfg.Env)

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
		_ = a.store.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

// Close releases storage resources without running the server.
func (a *App) Close(ctx context.Context) error { return a.store.Close(ctx) }

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

func passwordConfig(cfg Config) password.Config {
	pw := password.DefaultConfig()
	if cfg.Argon2MemoryKiB > 0 {
		pw.Params.MemoryKiB = cfg.Argon2MemoryKiB
	}
	if cfg.Argon2Iterations > 0 {
		pw.Params.Iterations = cfg.Argon2Iterations
	}
	if cfg.Argon2Parallelism > 0 {
		pw.Params.Parallelism = cfg.Argon2Parallelism
	}
	return pw
}

// newStores decides between Postgres-backed persistence and the in-memory dev stores.
func newStores(ctx context.Context, cfg Config, log Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return stores{
			closer:   nopStore{},
			accounts: identity.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg, log)
	if err != nil {
		return stores{}, err
	}

	log.Info("db.enabled.postgres_store")

	// The app owns the pool; the stores only borrow it.
	accounts, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return stores{}, err
	}
	sessions, err := session.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return stores{}, fmt.Errorf("session store: %w", err)
	}

	return stores{
		closer:    dbStore{pool: pool},
		accounts:  accounts,
		sessions:  sessions,
		pool:      pool,
		dbEnabled: true,
	}, nil
}
