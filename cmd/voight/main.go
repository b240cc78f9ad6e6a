package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/voight/internal/anthropic"
	"github.com/MikeSquared-Agency/voight/internal/api"
	"github.com/MikeSquared-Agency/voight/internal/config"
	"github.com/MikeSquared-Agency/voight/internal/correction"
	"github.com/MikeSquared-Agency/voight/internal/dialog"
	"github.com/MikeSquared-Agency/voight/internal/hermes"
	"github.com/MikeSquared-Agency/voight/internal/merge"
	"github.com/MikeSquared-Agency/voight/internal/nlu"
	"github.com/MikeSquared-Agency/voight/internal/session"
	"github.com/MikeSquared-Agency/voight/internal/slack"
	"github.com/MikeSquared-Agency/voight/internal/slotgraph"
	"github.com/MikeSquared-Agency/voight/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("voight starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (optional — without it the audit trail is memory-only)
	var db *store.Store
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set — sessions will not be persisted")
	}

	// Anthropic client
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	slog.Info("anthropic client ready", "model", cfg.AnthropicModel)

	// Slot graph: file-configured or the built-in intake graph
	graph := slotgraph.Default()
	if cfg.GraphPath != "" {
		g, err := slotgraph.LoadFile(cfg.GraphPath)
		if err != nil {
			slog.Error("failed to load slot graph", "path", cfg.GraphPath, "error", err)
			os.Exit(1)
		}
		graph = g
		slog.Info("slot graph loaded", "path", cfg.GraphPath, "slots", graph.Len())
	}

	// NATS/Hermes (optional — interviews run without the bus)
	var events dialog.Events
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Warn("failed to connect to NATS — running without events", "error", err)
		} else {
			hermesClient = hc
			events = hc
			defer hc.Close()
			slog.Info("NATS connected", "url", cfg.NatsURL)
		}
	}

	// Slack poster (optional — without it completed intakes stay in the DB)
	var slackPoster *slack.Poster
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		slackPoster = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured — completed intakes will not be announced")
	}

	// Interview engine
	delegate := nlu.NewClient(llm, slog.Default())
	merger := merge.NewEngine(cfg.ConfidenceThreshold, slog.Default())
	corrector := correction.NewEngine(graph, delegate, slog.Default())
	controller := dialog.NewController(graph, delegate, merger, corrector, cfg.ApprovalToken, cfg.MaxRetries, events, slog.Default())

	manager := session.NewManager()

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, manager, controller, db, slackPoster, events, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if hermesClient != nil {
		if err := hermesClient.Publish("swarm.agent.voight.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"slots":     graph.Len(),
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("voight ready", "port", cfg.Port, "slots", graph.Len())

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("voight stopped")
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
