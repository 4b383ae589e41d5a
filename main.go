package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riptide-dev/riptide/internal/api"
	"github.com/riptide-dev/riptide/internal/app"
	"github.com/riptide-dev/riptide/internal/config"
	"github.com/riptide-dev/riptide/internal/logger"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.LogError("Failed to load configuration: %v", err)
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.LogError("Failed to wire application: %v", err)
		log.Fatalf("Failed to wire application: %v", err)
	}
	defer application.Close()

	handler := api.NewHandler(application)
	mux := http.NewServeMux()
	handler.Routes(mux)

	wrapped := api.GzipMiddleware(api.TimeoutMiddleware(3 * time.Minute)(mux))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      wrapped,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		log.Printf("Available endpoints:")
		log.Printf("  POST   /api/v1/content/chunk")
		log.Printf("  POST   /api/v1/render")
		log.Printf("  POST   /api/v1/extract")
		log.Printf("  POST   /api/v1/sessions")
		log.Printf("  GET    /api/v1/sessions/:id")
		log.Printf("  DELETE /api/v1/sessions/:id")
		log.Printf("  POST   /api/v1/sessions/:id/cookies")
		log.Printf("  GET    /api/v1/sessions/:id/cookies/:domain")
		log.Printf("  DELETE /api/v1/sessions/:id/cookies/:domain/:name")
		log.Printf("  GET    /api/v1/memory/profile")
		log.Printf("  GET    /healthz")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError("Server failed to start: %v", err)
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.LogError("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited gracefully")
}
