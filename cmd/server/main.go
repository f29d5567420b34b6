package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"breed-detector/cmd"
	"breed-detector/internal/api"
	"breed-detector/internal/breeds"
	"breed-detector/internal/config"
	"breed-detector/internal/metrics"
	"breed-detector/internal/presenter"
	"breed-detector/internal/preview"
	"breed-detector/internal/upload"
	"breed-detector/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func createServer(cfg config.Config, catalog *breeds.Catalog, sessions *upload.SessionCache, previews *preview.Store) *http.Server {
	layout, err := presenter.ParseLayout(cfg.Layout)
	if err != nil {
		log.Fatalf("invalid layout: %v", err)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)                    // Log requests
	r.Use(middleware.Recoverer)                 // Recover from panics
	r.Use(middleware.Timeout(60 * time.Second)) // Set request timeout
	r.Use(metrics.Middleware)

	web.NewPage(sessions, previews, layout, cfg.MaxUploadBytes, cfg.AssetsDir).AddRoutes(r)

	detector := api.NewDetectorService(sessions, catalog, layout, cfg.MaxUploadBytes)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Origins(),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300, // Cache preflight response for 5 minutes
		}))
		detector.AddRoutes(r)
	})

	r.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cmd.LoadEnvFile()
	cfg := cmd.LoadConfig()

	slog.Info("starting breed detector", "port", cfg.Port, "prediction_url", cfg.PredictionURL, "auto_submit", cfg.AutoSubmitOnSelect, "layout", cfg.Layout, "max_upload_bytes", cfg.MaxUploadBytes)

	catalog := cmd.LoadCatalog(cfg)
	client := cmd.NewPredictionClient(cfg)
	previews := preview.NewStore(cfg.PreviewSize, "/previews")

	opts := cfg.UploadOptions()
	sessions := upload.NewSessionCache(cfg.MaxSessions, func() *upload.Controller {
		return upload.NewController(client, previews, catalog, opts)
	})

	server := createServer(cfg, catalog, sessions, previews)

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		sessions.Close()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
