package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/tutor-portal/internal/admin"
	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/httpapi"
	"github.com/p-n-ai/tutor-portal/internal/identity"
	"github.com/p-n-ai/tutor-portal/internal/platform/cache"
	"github.com/p-n-ai/tutor-portal/internal/platform/config"
	"github.com/p-n-ai/tutor-portal/internal/platform/database"
	"github.com/p-n-ai/tutor-portal/internal/quiz"
	"github.com/p-n-ai/tutor-portal/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects the backends named by cfg and assembles the HTTP handler.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	var (
		base     store.Store
		attempts quiz.AttemptLog = quiz.NopAttemptLog{}
		checks   []readinessCheck
	)
	switch cfg.Store.Driver {
	case "postgres":
		db, err := database.New(ctx, database.Options{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				a.close()
				return nil, err
			}
		}
		pg, err := store.NewPostgresStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		base = pg
		attempts = quiz.NewPostgresAttemptLog(db.Pool)
		checks = append(checks, readinessCheck{name: "database", check: db.HealthCheck})
	default:
		slog.Warn("using in-memory store, data is lost on restart")
		base = store.NewMemoryStore()
	}

	var kv cache.KV
	if c, err := cache.New(ctx, cfg.Cache.URL); err != nil {
		slog.Warn("cache unavailable, using in-process cache", "error", err)
		kv = cache.NewMemory()
	} else {
		a.closers = append(a.closers, func() { c.Close() })
		kv = c
	}

	st := store.NewCachedStore(base, kv, cfg.Cache.CurriculumTTL)
	if err := seed(ctx, st, cfg.CurriculumPath); err != nil {
		a.close()
		return nil, err
	}

	adminSvc, err := admin.NewService(st)
	if err != nil {
		a.close()
		return nil, err
	}
	quizSvc := quiz.NewService(quiz.ServiceConfig{
		Store:    st,
		Sessions: quiz.NewKVSessionStore(kv, cfg.Quiz.SessionTTL),
		Attempts: attempts,
	})
	resolver := identity.NewResolver(
		identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.EmailClaim),
		identity.NewRoles(cfg.Admin.Emails),
	)

	checks = append(checks,
		readinessCheck{name: "store", check: base.HealthCheck},
		readinessCheck{name: "cache", check: kv.HealthCheck},
	)
	mux := newMux(checks...)
	httpapi.New(httpapi.Config{
		Store:    st,
		Quiz:     quizSvc,
		Admin:    adminSvc,
		Identity: resolver,
	}).Register(mux)

	a.handler = mux
	return a, nil
}

// seed loads the YAML curriculum into an empty store.
func seed(ctx context.Context, st store.Store, path string) error {
	existing, err := st.ListModules(ctx)
	if err != nil {
		return fmt.Errorf("list modules: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	loader, err := curriculum.NewLoader(path)
	if err != nil {
		return err
	}
	if err := loader.Seed(ctx, st); err != nil {
		return err
	}
	slog.Info("curriculum seeded", "path", path, "modules", len(loader.Modules()))
	return nil
}

type readinessCheck struct {
	name  string
	check func(context.Context) error
}

// newMux creates the HTTP router with health check endpoints.
func newMux(checks ...readinessCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(checks))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks []readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		failed := map[string]string{}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				slog.Warn("readiness check failed", "check", c.name, "error", err)
				failed[c.name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
