// Package server wires the configured storage backend, memory engine,
// LLM router and HTTP handlers together and manages the server lifecycle.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/scrypster/recall/internal/composer"
	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/engine"
	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/internal/storage/neo4jdb"
	"github.com/scrypster/recall/internal/storage/postgres"
	"github.com/scrypster/recall/internal/storage/sqlite"
	"github.com/scrypster/recall/web/handlers"
)

// OpenStore opens the graph store backend selected by the configuration.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.GraphStore, error) {
	switch cfg.Storage.Engine {
	case "sqlite":
		path := filepath.Join(cfg.Storage.DataPath, "recall.db")
		return sqlite.NewGraphStore(path)
	case "postgres":
		return postgres.NewGraphStore(cfg.Storage.PostgresDSN)
	case "neo4j":
		return neo4jdb.NewGraphStore(ctx, neo4jdb.Config{
			URI:      cfg.Storage.Neo4jURI,
			User:     cfg.Storage.Neo4jUser,
			Password: cfg.Storage.Neo4jPass,
			Database: cfg.Storage.Neo4jDB,
		})
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
	}
}

// EngineConfig translates the loaded configuration into engine settings.
func EngineConfig(cfg *config.Config) engine.Config {
	engCfg := engine.DefaultConfig()
	if cfg.Engine.IngestWorkers > 0 {
		engCfg.NumWorkers = cfg.Engine.IngestWorkers
	}
	if cfg.Engine.IngestQueueSize > 0 {
		engCfg.QueueSize = cfg.Engine.IngestQueueSize
	}
	if cfg.Engine.ReadDeadline > 0 {
		engCfg.ReadDeadline = cfg.Engine.ReadDeadline
	}
	if cfg.Engine.ContextCharLimit > 0 {
		engCfg.ContextCharLimit = cfg.Engine.ContextCharLimit
	}
	if cfg.Engine.MessageWindow > 0 {
		engCfg.MessageWindow = cfg.Engine.MessageWindow
	}
	if cfg.Engine.TurnWindow > 0 {
		engCfg.TurnWindow = cfg.Engine.TurnWindow
	}
	return engCfg
}

// Start builds the HTTP stack over an already started engine and serves
// until ctx is cancelled. It returns the actual listen address (useful
// for tests binding port 0) and the activity hub wired to the engine
// callbacks.
func Start(ctx context.Context, cfg *config.Config, eng *engine.Engine, router *llm.Router) (string, *handlers.ActivityHub, error) {
	comp := composer.New(eng, router)
	api := handlers.NewAPIHandlers(eng, comp, router)

	hub := handlers.NewActivityHub([]string{
		fmt.Sprintf("localhost:%d", cfg.Server.Port),
		fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
	})
	go hub.Run()

	eng.SetOnEventStored(hub.EventStored)
	eng.SetOnEventDropped(hub.EventDropped)
	eng.SetOnContextServed(hub.ContextServed)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/rewrite", api.Rewrite)
	apiMux.HandleFunc("POST /api/events", api.IngestEvents)
	apiMux.HandleFunc("GET /api/conversations/{recipient}", api.GetConversation)
	apiMux.HandleFunc("DELETE /api/conversations/{recipient}", api.DeleteConversation)
	apiMux.HandleFunc("GET /api/contacts/{recipient}/stats", api.ContactStats)
	apiMux.HandleFunc("POST /api/chat", api.Chat)
	apiMux.HandleFunc("DELETE /api/chat-history", api.ClearChatHistory)
	apiMux.HandleFunc("POST /api/summarize", api.Summarize)
	apiMux.HandleFunc("GET /api/pages/search", api.SearchPages)
	apiMux.HandleFunc("GET /api/llm/models", api.AvailableModels)

	mux := http.NewServeMux()

	// Health endpoint stays outside auth so monitors and the extension
	// can probe without credentials.
	mux.HandleFunc("GET /health", api.Health)

	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket activity feed; origin validation handles access control.
	mux.Handle("/ws", hub)

	rateLimiter := handlers.NewRateLimiter(cfg.Security.RateLimit, cfg.Security.RateBurst)
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = handlers.SecurityHeaders(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		hub.Stop()
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		hub.Stop()
	}()

	log.Printf("Recall API listening on %s", actualAddr)
	return actualAddr, hub, nil
}
