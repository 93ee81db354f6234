// main is the entry point of the contact-form service.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file (plus .env and environment)
//  2. Initialise the logger
//  3. Open the submission archive
//  4. Pick the notifier
//  5. Register HTTP routes and start the server in a goroutine
//  6. Block until SIGINT or SIGTERM arrives
//  7. Gracefully shut down: finish in-flight submissions, then exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/contact-form --config=config/local.yaml
//
// or:
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/contact-form
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aanand-mishra/contact-form/internal/config"
	"github.com/aanand-mishra/contact-form/internal/logging"
	"github.com/aanand-mishra/contact-form/internal/notify"
	"github.com/aanand-mishra/contact-form/internal/storage"
	"github.com/aanand-mishra/contact-form/internal/storage/jsonfile"
	"github.com/aanand-mishra/contact-form/internal/storage/sqlite"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	log := logging.Setup(cfg.Env, os.Stdout)

	log.Info("starting contact-form",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	// ── 3. Open the Archive ───────────────────────────────────────────────
	archive, err := openArchive(cfg.Storage)
	if err != nil {
		log.Error("failed to initialise storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := archive.Close(); err != nil {
			log.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	log.Info("storage initialised",
		slog.String("driver", cfg.Storage.Driver),
		slog.String("path", cfg.Storage.Path))

	// ── 4. Pick the Notifier ──────────────────────────────────────────────
	notifier := newNotifier(cfg.Notify)
	if !cfg.Notify.Enabled {
		log.Warn("email notifications disabled, submissions will only be logged")
	}

	// ── 5. Routes and Server ──────────────────────────────────────────────
	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      newRouter(cfg, archive, notifier),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 6. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	// The deadline has to cover a submission that is mid-way through its
	// notification attempt.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout+cfg.Notify.Timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
		return
	}

	log.Info("server stopped gracefully")
}

// openArchive returns the configured storage.Archive.
func openArchive(cfg config.Storage) (storage.Archive, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		// sqlite waits on its own busy handler for as long as the JSON
		// archive would wait for its file lock.
		return sqlite.New(cfg.Path, cfg.LockWait())
	default:
		return jsonfile.New(cfg.Path, jsonfile.Options{
			LockRetries: cfg.LockRetries,
			LockBackoff: cfg.LockBackoff,
		}), nil
	}
}

func newNotifier(cfg config.Notify) notify.Notifier {
	if !cfg.Enabled {
		return notify.Log{}
	}
	return notify.NewSMTP(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.FromAddress,
		FromName: cfg.FromName,
	})
}
