package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/api"
	"github.com/MikeSquared-Agency/nuance/internal/breakdown"
	"github.com/MikeSquared-Agency/nuance/internal/breaker"
	"github.com/MikeSquared-Agency/nuance/internal/coaching"
	"github.com/MikeSquared-Agency/nuance/internal/command"
	"github.com/MikeSquared-Agency/nuance/internal/config"
	"github.com/MikeSquared-Agency/nuance/internal/extraction"
	"github.com/MikeSquared-Agency/nuance/internal/hermes"
	"github.com/MikeSquared-Agency/nuance/internal/ingest"
	"github.com/MikeSquared-Agency/nuance/internal/intent"
	"github.com/MikeSquared-Agency/nuance/internal/limits"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
	"github.com/MikeSquared-Agency/nuance/internal/router"
	"github.com/MikeSquared-Agency/nuance/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("nuance starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Anthropic client with circuit breaker
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	circuit := breaker.New("anthropic", 3, 60*time.Second)
	llm.SetBreaker(circuit)
	slog.Info("anthropic client ready", "model", cfg.AnthropicModel)

	registry := prompts.Default()

	// Extraction pipeline
	orchestrator := extraction.NewOrchestrator(
		extraction.NewExtractor(llm, registry, slog.Default()),
		extraction.NewAvoidanceDetector(llm, registry, slog.Default()),
		extraction.NewComplexityClassifier(llm, registry, slog.Default()),
		extraction.NewConfidenceScorer(llm, registry, extraction.DefaultWeights(), cfg.EscalationThreshold, slog.Default()),
		cfg.ValidationThreshold,
		slog.Default(),
	)

	// Coaching with in-memory conversation state
	conversations := coaching.NewMemoryStore(cfg.ConversationTTL, cfg.ConversationCap)
	coach := coaching.NewService(llm, registry, conversations, cfg.HistoryLimit, cfg.CoachingMaxTokens, slog.Default())

	classifier := intent.NewClassifier(llm, registry, slog.Default())
	commands := command.NewHandler(coach, slog.Default())
	breakdowns := breakdown.NewService(llm, registry, slog.Default())

	rt := router.New(classifier, orchestrator, coach, commands, slog.Default())
	limiter := limits.New(cfg.RequestsPerMinute, cfg.RequestsPerDay, slog.Default())

	// Database (optional — without it captures are not persisted)
	var (
		intents api.IntentLog
		actions api.ActionStore
		saved   ingest.ActionStore
	)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		intents, actions, saved = db, db, db
		slog.Info("database connected")
	} else {
		slog.Warn("database not configured — captures will not be persisted")
	}

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Bus intake
	consumer := ingest.New(rt, saved, hermesClient, slog.Default())
	if err := hermesClient.Subscribe(hermes.SubjectProcessRequest, consumer.HandleProcessRequest); err != nil {
		slog.Error("failed to subscribe to process requests", "error", err)
		os.Exit(1)
	}

	// HTTP API
	recorder := api.NewRecorder(intents, actions, hermesClient, slog.Default())
	srv := api.NewServer(cfg.Port, rt, classifier, breakdowns, limiter, recorder, circuit, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := hermesClient.Publish("nuance.service.registered", map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("nuance ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("nuance stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
