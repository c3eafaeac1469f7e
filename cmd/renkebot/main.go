package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/liurenke/renkebot/internal/config"
	"github.com/liurenke/renkebot/internal/engine"
	"github.com/liurenke/renkebot/internal/httpapi"
	"github.com/liurenke/renkebot/internal/observability"
)

func main() {
	configPath := flag.String("config", "config/backend.yaml", "path to the backend config document")
	bindAddr := flag.String("addr", "", "listen address, overrides server.bind_addr")
	flag.Parse()

	// .env is optional; real deployments set variables in the environment.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *bindAddr != "" {
		cfg.Server.BindAddr = *bindAddr
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	eng, err := engine.Bootstrap(ctx, cfg, metrics)
	if err != nil {
		log.Fatalf("engine bootstrap failed: %v", err)
	}
	defer eng.Close()
	log.Printf("engine initialized, ready for handling requests")

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	eng.Sessions().StartJanitor(runCtx, time.Minute, 10*time.Minute)

	api := httpapi.New(eng, metrics)
	httpServer := &http.Server{
		Addr:         cfg.Server.BindAddr,
		Handler:      api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("server listening on %s", cfg.Server.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
