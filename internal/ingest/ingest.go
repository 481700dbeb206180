// Package ingest runs the single loop that turns change-feed
// notifications into journal appends and broadcast publishes. It is
// the journal's only writer.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/relay/internal/broadcast"
	"github.com/alfredjeanlab/relay/internal/feed"
	"github.com/alfredjeanlab/relay/internal/journal"
	"github.com/alfredjeanlab/relay/internal/model"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Ingestor consumes a feed.Source and applies each valid notification
// to the journal before publishing it to the broadcaster, so a session
// that pairs a snapshot with the live tail can never see the tail run
// ahead of the snapshot.
type Ingestor struct {
	source      feed.Source
	journal     *journal.Journal
	broadcaster *broadcast.Broadcaster
	logger      *slog.Logger

	// RetryInterval is the initial resubscribe backoff. Zero selects
	// the default of one second.
	RetryInterval time.Duration
}

func New(source feed.Source, j *journal.Journal, b *broadcast.Broadcaster, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{source: source, journal: j, broadcaster: b, logger: logger}
}

// Run subscribes to the feed and processes notifications until ctx is
// cancelled. Subscription failures and feed terminations are retried
// indefinitely with exponential backoff; they never propagate out.
func (i *Ingestor) Run(ctx context.Context) error {
	initial := i.RetryInterval
	if initial <= 0 {
		initial = initialBackoff
	}
	backoff := initial
	for {
		ch, cancel, err := i.source.Subscribe(ctx)
		if err != nil {
			i.logger.Warn("ingest: feed subscribe failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initial
		i.logger.Info("ingest: feed subscribed")

		i.consume(ctx, ch)
		cancel()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		i.logger.Warn("ingest: feed terminated, resubscribing", "retry_in", backoff)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
	}
}

// consume processes notifications until the channel closes or ctx is
// cancelled. A malformed payload is logged and skipped; it must never
// take the loop down.
func (i *Ingestor) consume(ctx context.Context, ch <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			i.apply(raw)
		}
	}
}

func (i *Ingestor) apply(raw []byte) {
	m, err := model.DecodeChange(raw)
	if err != nil {
		i.logger.Warn("ingest: dropping malformed notification", "err", err)
		return
	}
	if !i.journal.Append(m) {
		i.logger.Debug("ingest: duplicate notification", "id", m.ID)
		return
	}
	i.broadcaster.Publish(m)
	i.logger.Debug("ingest: message ingested", "id", m.ID)
}

// sleep waits for d or ctx cancellation, reporting true if the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
