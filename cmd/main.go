package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookdigest/internal/bot"
	"bookdigest/internal/chat"
	"bookdigest/internal/config"
	"bookdigest/internal/database"
	"bookdigest/internal/library"
	"bookdigest/internal/readwise"
	"bookdigest/internal/registry"
	"bookdigest/internal/render"
	"bookdigest/internal/scheduler"
	"bookdigest/internal/server"
	"bookdigest/internal/speech"
	"bookdigest/internal/summary"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bookdigest",
		Short: "Book summary viewer, renderer and sharing service",
		Long: `BookDigest stores structured book summaries and renders them as
Markdown, printable HTML, narration scripts and Readwise highlights.

It serves an HTTP API, an optional Telegram bot and a nightly
Readwise auto-sync.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Telegram bot and the auto-sync scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg config.Config) error {
	log := newLogger(cfg)
	slog.SetDefault(log)

	start := time.Now()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	reg, err := loadRegistry(cfg.RegistryPath)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load registry",
			"error", err,
			"registryPath", cfg.RegistryPath)

		return err
	}

	renderer := render.New(reg)
	rw := readwise.New(cfg.ReadwiseAPIURL, log)
	lib := library.New(db, summary.NewCache(summary.DefaultCacheEntries, summary.DefaultCacheTTL), renderer, rw, log)

	var (
		assistant chat.Answerer
		synth     speech.Synthesizer
	)
	if cfg.OpenAIEnabled() {
		assistant = chat.NewOpenAIAssistant(cfg.OpenAIAPIKey, renderer)
		synth = speech.NewOpenAISynthesizer(cfg.OpenAIAPIKey, cfg.SpeechVoice)
		log.InfoContext(ctx, "OpenAI integrations are initialized",
			"provider", "openai",
			"voice", cfg.SpeechVoice)
	} else {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so chat and narration are disabled",
			"envVar", "OPENAI_API_KEY")
	}

	sched := scheduler.New(ctx, cfg.AutoSyncSpec, lib, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.AutoSyncSpec)

		return err
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.AutoSyncSpec)

	if cfg.BotEnabled() {
		botInst, err := bot.New(cfg.Token, bot.Deps{
			Store:       db,
			Library:     lib,
			Readwise:    rw,
			Assistant:   assistant,
			Synthesizer: synth,
		}, cfg.AllowedUsers, log)
		if err != nil {
			log.ErrorContext(ctx, "Failed to initialize bot",
				"error", err,
				"allowedUsersCount", len(cfg.AllowedUsers))

			return err
		}
		log.InfoContext(ctx, "Bot is initialized",
			"allowedUsersCount", len(cfg.AllowedUsers))

		go botInst.Start(ctx)
		defer func() {
			botInst.Stop()
			log.InfoContext(ctx, "Bot is stopped",
				"uptimeSeconds", time.Since(start).Seconds())
		}()
	} else {
		log.WarnContext(ctx, "TOKEN is missing so the bot is disabled",
			"envVar", "TOKEN")
	}

	srv := server.New(server.Deps{
		Store:     db,
		Library:   lib,
		Readwise:  rw,
		Assistant: assistant,
	}, cfg.PublicBaseURL, log)

	if err = srv.Run(ctx, cfg.HTTPAddr); err != nil {
		log.ErrorContext(ctx, "HTTP server failed",
			"error", err,
			"addr", cfg.HTTPAddr)

		return err
	}

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default(), nil
	}

	return registry.Load(path)
}
