package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gameVerifyServer/api"
	"gameVerifyServer/config"
	"gameVerifyServer/db"
	"gameVerifyServer/registry"
	"gameVerifyServer/ws"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
		log.Printf("⚠️  Warning: failed to set GOMAXPROCS: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ Invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize registry store
	store, err := db.Open(ctx, cfg)
	if err != nil {
		log.Printf("⚠️  Warning: %s store initialization failed: %v", cfg.StoreDriver, err)
		log.Println("   Falling back to the in-memory registry; submissions will not survive a restart")
		store = db.NewMemoryStore()
	}
	defer store.Close()

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := registry.OptionsFromConfig(cfg)
	opts.Metrics = registry.NewMetrics(promRegistry)

	// Rapid-duplicate window: Redis when configured, else the store
	var redisWindow *db.RedisWindow
	if cfg.RedisURL != "" {
		client, err := db.OpenRedis(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Printf("⚠️  Warning: Redis initialization failed: %v", err)
			log.Println("   Rapid-duplicate window will be counted in the registry store")
		} else {
			redisWindow = db.NewRedisWindow(client, cfg.RapidDuplicateWindow)
			opts.Window = redisWindow
			defer redisWindow.Close()
		}
	}

	// Live feed
	hub := ws.NewHub()
	opts.Publisher = hub
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	svc := registry.NewService(store, opts)
	handler := api.NewHandler(svc, cfg)
	if redisWindow != nil {
		handler.AddHealthCheck("redis", redisWindow.HealthCheck)
	}

	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	log.Printf("🚀 Server starting on %s (store: %s)", cfg.Addr, cfg.StoreDriver)
	log.Println("")
	log.Println("📡 WebSocket Endpoints:")
	log.Println("   /ws - Verification feed")
	log.Println("   - Subscribe to 'submissions' for accepted submissions")
	log.Println("   - Subscribe to 'flags' for rapid-duplicate flags")
	log.Println("   - Subscribe to 'seed:<seed>' for one seed")
	log.Println("")
	log.Println("🔌 API Endpoints:")
	log.Println("   POST /api/submit - Submit a completed game")
	log.Println("   POST /api/score - Recompute a score without registering")
	log.Println("   GET  /api/leaderboard?seed=&originals=&limit= - Ranked leaderboard")
	log.Println("   GET  /api/registry/:fingerprint - Registry entry lookup")
	log.Println("   GET  /api/seed - Issue a fresh seed")
	log.Println("   POST /api/seed/verify - Check a seed against its commitment")
	log.Println("   GET  /api/health - Health check")
	log.Println("   GET  /metrics - Prometheus metrics")
	log.Println("")

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Printf("❌ Server error: %v", err)
		}
		stop()
	case <-ctx.Done():
	}

	log.Println("🔌 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Graceful shutdown failed: %v", err)
	}
	<-hubDone
	log.Println("✅ Server stopped")
}
