package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tphummel/lab_inventory/internal/db"
	"github.com/tphummel/lab_inventory/internal/handlers"
	"github.com/tphummel/lab_inventory/internal/inventory"
	"github.com/tphummel/lab_inventory/internal/metrics"
	"github.com/tphummel/lab_inventory/internal/middleware"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

type config struct {
	token    string
	dbPath   string
	port     string
	logLevel slog.Level
}

// loadConfig reads service configuration from environment variables and
// applies defaults. It returns an error when a required variable is absent.
func loadConfig() (config, error) {
	cfg := config{
		token:    os.Getenv("API_TOKEN"),
		dbPath:   os.Getenv("DB_PATH"),
		port:     os.Getenv("PORT"),
		logLevel: slog.LevelInfo,
	}
	if cfg.token == "" {
		return cfg, fmt.Errorf("API_TOKEN environment variable is required")
	}
	if cfg.dbPath == "" {
		cfg.dbPath = "./lab_inventory.db"
	}
	if cfg.port == "" {
		cfg.port = "8080"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.logLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}
	return cfg, nil
}

// newMux wires every route. Each route is wrapped in the metrics middleware
// under its path pattern; /api/v1 routes also require the bearer token.
func newMux(h *handlers.Handler, token string, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	get := func(path string, next http.Handler) {
		mux.Handle("GET "+path, metrics.Middleware(path, next))
	}

	// Health check, metrics and docs — no auth
	get("/healthz", http.HandlerFunc(h.Health))
	mux.Handle("GET /metrics", metrics.Handler(gatherer))
	get("/openapi.yaml", http.HandlerFunc(handlers.OpenAPISpec))
	get("/docs", http.HandlerFunc(handlers.Docs))

	// Inventory — Bearer token auth required
	get("/api/v1/inventory", middleware.Auth(token, http.HandlerFunc(h.ListInventory)))
	get("/api/v1/hosts/{name}", middleware.Auth(token, http.HandlerFunc(h.GetHost)))
	get("/api/v1/lookups", middleware.Auth(token, http.HandlerFunc(h.ListLookups)))
	get("/api/v1/lookups/{id}", middleware.Auth(token, http.HandlerFunc(h.GetLookup)))

	return mux
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel})))

	database, err := db.New(cfg.dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	store := inventory.New(inventory.EnvSecrets(os.Getenv))
	h := &handlers.Handler{Store: store, DB: database, Version: version, Commit: commit}

	reg := prometheus.NewRegistry()
	metrics.Register(reg, store, database)

	skip := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	handler := middleware.RequestLogger(slog.Default(), skip, newMux(h, cfg.token, reg))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("listening", "addr", srv.Addr, "version", version, "hosts", store.Len())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}
	slog.Info("server stopped")
}
