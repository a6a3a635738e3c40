package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hollowvale/companion-engine/internal/config"
	"github.com/hollowvale/companion-engine/internal/handlers"
	"github.com/hollowvale/companion-engine/internal/logger"
	"github.com/hollowvale/companion-engine/internal/middleware"
	"github.com/hollowvale/companion-engine/internal/services"
	"github.com/hollowvale/companion-engine/internal/services/events"
	"github.com/hollowvale/companion-engine/internal/session"
	"github.com/hollowvale/companion-engine/internal/storage"
	"github.com/hollowvale/companion-engine/pkg/sentiment"
	"github.com/hollowvale/companion-engine/pkg/worldclock"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Companion Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"world", cfg.WorldName,
		"model_name", cfg.LLMModel)

	// An empty endpoint is supported: NPC greetings degrade to static
	// flavor lines instead of streamed dialogue.
	var llmService services.LLMService
	if cfg.LLMAPIURL != "" {
		llmService = services.NewOpenAIService(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.LLMModel)
		log.Info("Using chat-completions endpoint", "url", cfg.LLMAPIURL)
	} else {
		log.Warn("No LLM endpoint configured; greetings will use static lines")
	}

	store := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log)

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	broadcaster := events.NewBroadcaster(store.Client(), log)

	manager := session.NewManager(store, llmService, broadcaster, session.Options{
		WorldName: cfg.WorldName,
		Clock: worldclock.Config{
			MessagesPerDay:      cfg.MessagesPerDay,
			EnableDayNightCycle: cfg.EnableDayNightCycle,
		},
		Sentiment: sentiment.Config{
			Cooldown: cfg.SentimentCooldown,
			DailyCap: cfg.DailyAffinityCap,
		},
	}, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, llmService, log)
	mux.Handle("/health", healthHandler)

	sessionHandler := handlers.NewSessionHandler(manager, log)
	mux.Handle("/v1/session", sessionHandler)
	mux.Handle("/v1/session/", sessionHandler)

	roomHandler := handlers.NewRoomHandler(store, log)
	mux.Handle("/v1/rooms", roomHandler)
	mux.Handle("/v1/rooms/", roomHandler)

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: greeting streams manage their own deadlines.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
