// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/oche/internal/config"
	"github.com/codr1/oche/internal/db"
	"github.com/codr1/oche/internal/email"
	"github.com/codr1/oche/internal/live"
	"github.com/codr1/oche/internal/notify"
	"github.com/codr1/oche/internal/scheduler"
)

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := flag.String("config", "config/app.yaml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	var mailer email.EmailSender
	if cfg.Email.Enabled {
		ses, err := email.NewSESClient(ctx, cfg.Email.AccessKeyID, cfg.Email.SecretAccessKey, cfg.Email.Region, cfg.Email.Sender)
		if err != nil {
			return fmt.Errorf("create email client: %w", err)
		}
		mailer = ses
	}

	pusher := notify.NewPusher(database.Queries, notify.Config{
		Enabled:    cfg.Push.Enabled,
		Subject:    cfg.Push.Subject,
		PublicKey:  cfg.Push.VAPIDPublicKey,
		PrivateKey: cfg.Push.VAPIDPrivateKey,
		TTLSeconds: cfg.Push.TTLSeconds,
	})
	hub := live.NewHub(cfg.App.BaseURL)

	server := newServer(cfg, database, deps{hub: hub, pusher: pusher, mailer: mailer})

	if err := scheduler.Init(); err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	reminders := &scheduler.Reminders{
		DB:     database,
		Email:  mailer,
		Pusher: pusher,
		Window: cfg.Scheduler.ReminderWindow,
	}
	if err := scheduler.RegisterReminderJob(reminders, cfg.Scheduler.ReminderCron); err != nil {
		return fmt.Errorf("register reminder job: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("environment", cfg.App.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}
