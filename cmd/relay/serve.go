package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/relay/internal/archive"
	"github.com/alfredjeanlab/relay/internal/broadcast"
	"github.com/alfredjeanlab/relay/internal/config"
	"github.com/alfredjeanlab/relay/internal/events"
	"github.com/alfredjeanlab/relay/internal/feed"
	"github.com/alfredjeanlab/relay/internal/ingest"
	"github.com/alfredjeanlab/relay/internal/journal"
	"github.com/alfredjeanlab/relay/internal/server"
	"github.com/alfredjeanlab/relay/internal/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	// Override PersistentPreRun so we don't create an HTTP client.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Seed the journal from the database so sessions attaching
		// right after startup still see history. Refusing to start on
		// a failed read beats serving an empty log as if it were real.
		messages, err := st.ListMessages(context.Background())
		if err != nil {
			st.Close()
			return err
		}
		j := journal.New()
		j.Bootstrap(messages)
		logger.Info("journal seeded", "messages", j.Len(), "last_id", j.LastID())

		b := broadcast.New(cfg.StreamBuffer)

		// Over NATS there is no database trigger feeding the subject,
		// so the server mirrors accepted messages onto it itself.
		var source feed.Source
		var publisher events.Publisher = events.NoopPublisher{}
		if cfg.NATSURL != "" {
			source = feed.NewNATSSource(cfg.NATSURL, cfg.NATSSubject, logger)
			pub, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("change feed: nats", "url", cfg.NATSURL, "subject", cfg.NATSSubject)
		} else {
			source = feed.NewListenerSource(cfg.DatabaseURL, cfg.FeedChannel, logger)
			logger.Info("change feed: postgres", "channel", cfg.FeedChannel)
		}

		ingestCtx, stopIngest := context.WithCancel(context.Background())
		ingestor := ingest.New(source, j, b, logger)
		ingestDone := make(chan struct{})
		go func() {
			defer close(ingestDone)
			if err := ingestor.Run(ingestCtx); err != nil && ingestCtx.Err() == nil {
				logger.Error("ingest loop exited", "err", err)
			}
		}()

		relayServer := server.NewRelayServer(st, j, b, logger)
		relayServer.KeepaliveInterval = cfg.KeepaliveInterval
		if cfg.NATSURL != "" {
			relayServer.Publisher = publisher
		}

		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: relayServer.NewHTTPHandler(),
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the archive scheduler if any destinations are configured.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 {
			var dests []archive.Destination

			if cfg.ArchiveFile != "" {
				dests = append(dests, archive.NewFileDestination(cfg.ArchiveFile))
				logger.Info("archive file destination enabled", "path", cfg.ArchiveFile)
			}

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

			if len(dests) > 0 {
				scheduler = archive.NewScheduler(j, dests, cfg.ArchiveInterval, logger)
				scheduler.Start()
				logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval)
			}
		}

		logger.Info("relay server started", "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		stopIngest()
		select {
		case <-ingestDone:
		case <-time.After(5 * time.Second):
			logger.Error("ingest loop did not stop in time")
		}
		logger.Info("ingest loop stopped")

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}

		// Closing the broadcaster ends every open stream so Shutdown
		// is not held up by long-lived SSE connections.
		b.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
