// Package main provides the chorus worker entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/chorus/internal/bluesky"
	"github.com/thebtf/chorus/internal/config"
	db "github.com/thebtf/chorus/internal/db/gorm"
	"github.com/thebtf/chorus/internal/llm"
	"github.com/thebtf/chorus/internal/watcher"
	"github.com/thebtf/chorus/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "Worker port (default: from settings)")
	dataDir := flag.String("data-dir", "", "Data directory (default: ~/.chorus)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	once := flag.Bool("once", false, "Run one collect-and-process pass and exit")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	// Relocate all state (settings, database, watcher) together.
	if *dataDir != "" {
		config.SetDataDir(*dataDir)
	}

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}
	if *port != 0 {
		cfg.WorkerPort = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	store, err := db.NewStore(db.Config{
		Path:     config.DBPath(),
		MaxConns: cfg.MaxConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.Close()

	platform := bluesky.NewXRPCClient(cfg.PDSHost, cfg.Handle, cfg.AppPassword)
	if err := platform.Login(ctx); err != nil {
		log.Fatal().Err(err).Msg("Platform login failed")
	}

	ai := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.ChatModel, cfg.EmbeddingModel,
		cfg.MaxPostLength-len([]rune(cfg.AnnotationPrefix)))

	svc := worker.New(cfg, store, platform, ai, ai, Version)

	if *once {
		if err := svc.RunOnce(ctx); err != nil {
			log.Fatal().Err(err).Msg("Pass failed")
		}
		return
	}

	// Settings edits restart the process (the supervisor brings it back up
	// with the new configuration).
	settingsWatcher, err := watcher.New(config.SettingsPath(), func() {
		log.Info().Msg("Settings changed, exiting for restart")
		cancel()
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
	} else {
		if err := settingsWatcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start settings watcher")
		}
		defer settingsWatcher.Stop()
	}

	log.Info().Str("handle", cfg.Handle).Str("version", Version).Msg("Starting chorus worker")
	if err := svc.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Worker error")
	}
}
