package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	appConfig "github.com/sitesmithapp/sitesmith/config"
	"github.com/sitesmithapp/sitesmith/internal/api"
	"github.com/sitesmithapp/sitesmith/internal/app"
	"github.com/sitesmithapp/sitesmith/internal/editor"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appConfig.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	a, err := app.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	sessions := editor.NewSessions(a.Projects, editor.WithHistoryLimit(cfg.EditorHistoryLimit))
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go sessions.RunJanitor(janitorCtx, cfg.EditorIdleTimeout)

	// Initialize API handlers
	handler := api.NewHandler(a.Websites, a.Deployments, a.Domains, sessions, a.Queue)
	handler.Ping = a.Postgres.Ping

	// Create server. No WriteTimeout: progress streams stay open for the
	// length of a build.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     api.NewRouter(cfg, handler),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		return
	}

	log.Println("Server exited")
}
