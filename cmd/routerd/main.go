// Command routerd runs the model-service routing layer as an HTTP service.
//
// Configuration is read from the file named by ROUTER_CONFIG (YAML or JSON);
// without it the bundled default catalog is used. ROUTER_ADDR overrides the
// listen address (default :8080). ROUTER_WATCH=1 hot-reloads the config file
// on change. ROUTER_ECHO=1 makes /v1/execute answer with a loopback echo
// payload instead of invoking provider handles, for smoke testing.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	modelrouter "github.com/arc-labs/model-router"
	"github.com/arc-labs/model-router/internal/logging"
	"github.com/arc-labs/model-router/internal/version"
)

func main() {
	var cfg modelrouter.Config
	cfgPath := os.Getenv("ROUTER_CONFIG")
	if cfgPath != "" {
		loaded, err := modelrouter.LoadConfig(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
		log.Printf("Config loaded: providers=%d tools=%d", len(cfg.Providers), len(cfg.Tools))
	} else {
		log.Printf("No ROUTER_CONFIG set; using bundled default catalog")
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// Every entry point shares the same bootstrap; All is idempotent so the
	// HTTP server, the watcher, and any embedding code observe one registry.
	bootstrap := modelrouter.NewBootstrap(cfg)
	router, err := bootstrap.All()
	if err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfgPath != "" && os.Getenv("ROUTER_WATCH") == "1" {
		go func() {
			if err := router.Watch(ctx, cfgPath); err != nil && !errors.Is(err, context.Canceled) {
				logging.Logger.Error("config watcher stopped", "error", err.Error())
			}
		}()
	}

	srv := &server{router: router, echo: os.Getenv("ROUTER_ECHO") == "1"}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(logging.Middleware)
	mux.Get("/health", srv.handleHealth)
	mux.Get("/providers", srv.handleProviders)
	mux.Get("/models", srv.handleModels)
	mux.Post("/v1/select", srv.handleSelect)
	mux.Post("/v1/execute", srv.handleExecute)
	mux.Handle("/metrics", promhttp.Handler())

	addr := os.Getenv("ROUTER_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("routerd %s listening on %s", version.Short(), addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
