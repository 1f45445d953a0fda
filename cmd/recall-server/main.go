// recall-server runs the Recall API: event ingestion, context retrieval
// and the LLM-backed rewrite, chat and summarize endpoints.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/engine"
	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Storage.Engine, err)
	}
	defer store.Close()

	engCfg := server.EngineConfig(cfg)
	if cfg.Storage.Engine == "sqlite" {
		// Single writer avoids database locking on SQLite.
		engCfg.NumWorkers = 1
	}

	memoryEngine, err := engine.NewEngine(store, engCfg)
	if err != nil {
		log.Fatalf("Failed to initialize memory engine: %v", err)
	}
	if err := memoryEngine.Start(ctx); err != nil {
		log.Fatalf("Failed to start memory engine: %v", err)
	}

	router := llm.NewRouter(cfg.LLM)
	if !router.Available() {
		log.Println("No LLM provider configured, rewrite and chat use deterministic fallbacks")
	}

	addr, _, err := server.Start(ctx, cfg, memoryEngine, router)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Recall running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	if err := memoryEngine.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down memory engine: %v", err)
	}

	cancel()
	time.Sleep(1 * time.Second)
}
