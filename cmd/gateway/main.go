package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/convohub/convo-gateway/internal/channel"
	"github.com/convohub/convo-gateway/internal/channel/discord"
	"github.com/convohub/convo-gateway/internal/channel/telegram"
	"github.com/convohub/convo-gateway/internal/channel/webchat"
	"github.com/convohub/convo-gateway/internal/command"
	"github.com/convohub/convo-gateway/internal/config"
	"github.com/convohub/convo-gateway/internal/gateway"
	"github.com/convohub/convo-gateway/internal/logging"
	"github.com/convohub/convo-gateway/internal/provider"
	"github.com/convohub/convo-gateway/internal/ratelimit"
	"github.com/convohub/convo-gateway/internal/router"
	"github.com/convohub/convo-gateway/internal/scheduler"
	"github.com/convohub/convo-gateway/internal/server"
	"github.com/convohub/convo-gateway/internal/session"
	"github.com/convohub/convo-gateway/internal/store"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	logger := logging.WithComponent("main")
	logger.Info("starting convo-gateway", "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Generation providers
	openai := provider.NewOpenAIClient(provider.OpenAIConfig{
		BaseURL: cfg.Providers.OpenAI.BaseURL,
		APIKey:  cfg.Providers.OpenAI.APIKey,
		Model:   cfg.Providers.OpenAI.Model,
	})
	mistral := provider.NewMistralClient(provider.MistralConfig{
		BaseURL: cfg.Providers.Mistral.BaseURL,
		APIKey:  cfg.Providers.Mistral.APIKey,
		Model:   cfg.Providers.Mistral.Model,
	})
	orchestrator := provider.NewOrchestrator(
		[]provider.Generator{openai, mistral},
		cfg.Providers.Primary,
		cfg.Providers.Secondary,
		logging.WithComponent("orchestrator"),
	)

	// Fatal precondition: a gateway without a usable generation
	// provider cannot serve anything.
	if !orchestrator.HasCredentialed() {
		logger.Error("no generation provider has a credential configured")
		os.Exit(1)
	}

	// Durable backing. Losing it degrades durability, not availability.
	var backing store.Backing
	redisBacking, err := store.NewRedisBacking(store.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("redis unavailable, sessions will not survive a restart", "error", err)
	} else {
		backing = redisBacking
		defer redisBacking.Close()
	}

	sessions := store.New(backing, store.Options{
		Timeout:     cfg.SessionTimeout(),
		RejectGrace: cfg.RejectGrace(),
		Defaults: session.Params{
			Provider:     cfg.Providers.Primary,
			Temperature:  1.0,
			SystemPrompt: cfg.Session.DefaultSystemPrompt,
			MemorySize:   cfg.Session.DefaultMemorySize,
			MaxTokens:    cfg.Session.DefaultMaxTokens,
			VoiceID:      cfg.Session.DefaultVoice,
		},
	}, logging.WithComponent("store"))

	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimitWindow())
	dispatcher := command.NewDispatcher(sessions, orchestrator.Names(), provider.VoiceAliases())
	msgRouter := router.New(sessions, limiter, dispatcher, orchestrator,
		cfg.Session.MaxInputLength, logging.WithComponent("router"))

	sweeper, err := scheduler.New(sessions, limiter, msgRouter, cfg.SweepInterval(),
		logging.WithComponent("scheduler"))
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Speech capabilities
	synth := provider.NewElevenLabsClient(provider.ElevenLabsConfig{
		APIKey:  cfg.Speech.Synthesis.APIKey,
		ModelID: cfg.Speech.Synthesis.ModelID,
		Voice:   cfg.Speech.Synthesis.Voice,
	})
	stt := provider.NewWhisperClient(provider.WhisperConfig{
		BaseURL: cfg.Speech.Transcription.BaseURL,
		APIKey:  cfg.Speech.Transcription.APIKey,
		Model:   cfg.Speech.Transcription.Model,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Transport adapters
	adapters := []channel.Adapter{
		webchat.NewWebchatAdapter(cfg.Channels.Webchat.Port, logging.WithComponent("webchat")),
		telegram.NewTelegramAdapter(cfg.Channels.Telegram.Token),
		discord.NewDiscordAdapter(cfg.Channels.Discord.Token),
	}
	var active []channel.Adapter
	for _, ad := range adapters {
		if !ad.IsEnabled() {
			continue
		}
		if err := ad.Start(ctx); err != nil {
			logger.Error("failed to start channel", "channel", ad.Name(), "error", err)
			continue
		}
		logger.Info("channel started", "channel", ad.Name())
		active = append(active, ad)
	}
	if len(active) == 0 {
		logger.Error("no transport channels configured")
		os.Exit(1)
	}

	httpServer := server.New(cfg, backing, sessions, orchestrator, logging.WithComponent("server"))
	if err := httpServer.Start(); err != nil {
		logger.Error("failed to start http server", "error", err)
		os.Exit(1)
	}

	loop := gateway.NewLoop(msgRouter, synth, stt, logging.WithComponent("gateway"))
	go loop.Run(ctx, active)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}
}
