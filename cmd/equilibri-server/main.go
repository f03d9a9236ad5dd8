package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/equilibri/equilibri-server/internal/api"
	"github.com/equilibri/equilibri-server/internal/artifact"
	"github.com/equilibri/equilibri-server/internal/config"
	"github.com/equilibri/equilibri-server/internal/db"
	"github.com/equilibri/equilibri-server/internal/llm"
	"github.com/equilibri/equilibri-server/internal/scheduler"
	"github.com/equilibri/equilibri-server/internal/scoring"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting equilibri-server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Open database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	// Load the model artifact. A missing model is not fatal: scoring
	// returns 503 until the first training run produces one.
	svc := scoring.NewService(cfg.ModelPath)
	if !artifact.FileExists(cfg.ModelPath) {
		log.Printf("WARNING: no model artifact at %s", cfg.ModelPath)
		log.Println("Run equilibri-train or POST /api/v1/train to create one")
	} else if err := svc.LoadModel(); err != nil {
		log.Printf("WARNING: model not loaded: %v", err)
		log.Println("Scoring will be unavailable until a model is trained")
	} else if info, err := svc.ModelInfo(); err == nil {
		log.Printf("Model loaded: %s (MAE %.2f, %d examples)", info.Family, info.MAE, info.NumExamples)
	}

	// Create LLM client
	llmClient := llm.NewClient(cfg.OllamaURL, cfg.OllamaModel)

	// Validate Ollama connection at startup
	log.Println("Validating Ollama connection...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := llmClient.HealthCheck(ctx); err != nil {
		log.Printf("WARNING: Ollama health check failed: %v", err)
		log.Println("Server will start but advice features may not work")
	} else {
		log.Printf("Ollama connected: %s (model: %s)", cfg.OllamaURL, cfg.OllamaModel)
	}
	cancel()

	// Create router
	router := api.NewRouter(cfg, database, svc, llmClient)

	// Create and start scheduler
	sched, err := scheduler.New(cfg, database, svc, llmClient)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Start server
	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down gracefully...")

	// Give ongoing requests 10 seconds to complete
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Stopping scheduler...")
	if err := sched.Stop(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}

	log.Println("Closing database...")
	if err := database.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
}
