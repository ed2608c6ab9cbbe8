package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakmere/vaultd/internal/archive"
	"github.com/oakmere/vaultd/internal/config"
	"github.com/oakmere/vaultd/internal/engine"
	"github.com/oakmere/vaultd/internal/events"
	"github.com/oakmere/vaultd/internal/ledger"
	"github.com/oakmere/vaultd/internal/monitor"
	"github.com/oakmere/vaultd/internal/projection"
	"github.com/oakmere/vaultd/internal/server"
	"github.com/oakmere/vaultd/internal/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the vaultd server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (VAULTD_NATS_URL not set)")
		}

		// Create server components.
		clock := engine.SystemClock{}
		vaultLedger := ledger.New(store, clock)
		tracker := projection.NewTracker(store, clock, logger)
		vaultServer := server.NewVaultServer(vaultLedger, tracker, publisher, cfg.DevFaucet, cfg.KeyEncryptionKey)
		if cfg.DevFaucet {
			logger.Warn("dev faucet enabled; do not run this in production")
		}

		// Start HTTP server.
		handler := server.RecoveryMiddleware(
			server.LoggingMiddleware(vaultServer.NewHTTPHandler(cfg.JWTSecret)),
		)
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: handler,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the projection reconciler if NATS is available.
		var reconcilerCancel context.CancelFunc
		if cfg.NATSURL != "" {
			sub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create reconciler subscriber", "err", err)
			} else {
				reconciler := projection.NewReconciler(tracker, sub, logger)
				var reconcilerCtx context.Context
				reconcilerCtx, reconcilerCancel = context.WithCancel(context.Background())
				go func() {
					if err := reconciler.Run(reconcilerCtx); err != nil {
						logger.Error("reconciler error", "err", err)
					}
					sub.Close()
				}()
				logger.Info("projection reconciler started")
			}
		}

		// Start the expiry sweeper.
		var sweeper *monitor.Sweeper
		if cfg.SweepInterval > 0 {
			sweeper = monitor.New(vaultLedger, store, tracker, publisher, cfg.SweeperWallet, cfg.SweepInterval, clock, logger)
			sweeper.Start()
			logger.Info("expiry sweeper started", "interval", cfg.SweepInterval, "wallet", cfg.SweeperWallet)
		}

		// Start the archive scheduler if any destinations are configured.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 {
			var dests []archive.Destination

			if cfg.ArchiveS3Bucket != "" {
				s3Dest, err := archive.NewS3Destination(
					context.Background(),
					cfg.ArchiveS3Bucket,
					cfg.ArchiveS3Key,
					cfg.ArchiveS3Region,
					cfg.ArchiveS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 archive destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("archive S3 destination enabled", "bucket", cfg.ArchiveS3Bucket, "key", cfg.ArchiveS3Key)
				}
			}

			if cfg.ArchiveGitRepo != "" {
				gitDest := archive.NewGitDestination(cfg.ArchiveGitRepo, cfg.ArchiveGitFile, cfg.ArchiveGitBranch)
				dests = append(dests, gitDest)
				logger.Info("archive git destination enabled", "repo", cfg.ArchiveGitRepo, "file", cfg.ArchiveGitFile)
			}

			if len(dests) > 0 {
				scheduler = archive.NewScheduler(store, dests, cfg.ArchiveInterval, logger)
				scheduler.Start()
				logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval)
			}
		}

		logger.Info("vaultd server started", "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}

		if sweeper != nil {
			sweeper.Stop()
			logger.Info("expiry sweeper stopped")
		}

		if reconcilerCancel != nil {
			reconcilerCancel()
			logger.Info("projection reconciler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
