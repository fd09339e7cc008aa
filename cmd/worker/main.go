package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	appConfig "github.com/sitesmithapp/sitesmith/config"
	"github.com/sitesmithapp/sitesmith/internal/app"
	"github.com/sitesmithapp/sitesmith/internal/worker"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found")
	}

	// Load configuration
	cfg := appConfig.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	builder := worker.NewBuilder(cfg, a.Deployments, a.Projects, a.Queue, a.Queue, a.Artifacts)
	if err := builder.Run(ctx); err != nil {
		log.Printf("Worker stopped: %v", err)
		a.Close()
		os.Exit(1)
	}

	log.Println("Worker exited")
}
