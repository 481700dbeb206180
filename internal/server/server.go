// Package server exposes the relay service over HTTP: a snapshot page,
// a JSON write/read API, and the SSE stream that carries live updates.
package server

import (
	"log/slog"
	"time"

	"github.com/alfredjeanlab/relay/internal/broadcast"
	"github.com/alfredjeanlab/relay/internal/events"
	"github.com/alfredjeanlab/relay/internal/journal"
	"github.com/alfredjeanlab/relay/internal/presence"
	"github.com/alfredjeanlab/relay/internal/store"
)

// defaultKeepalive is the idle interval between keepalive events on a
// stream, chosen to stay under common proxy timeouts.
const defaultKeepalive = 15 * time.Second

// RelayServer handles all HTTP traffic for the service. Writes go to
// the store only; reads come from the journal, which the ingestion
// loop keeps current from the change feed.
type RelayServer struct {
	store       store.Store
	journal     *journal.Journal
	broadcaster *broadcast.Broadcaster
	sessions    *presence.Tracker
	logger      *slog.Logger

	// Publisher mirrors accepted messages onto the change feed. Nil
	// means the feed is driven elsewhere (the database trigger).
	Publisher events.Publisher

	// KeepaliveInterval is how long a stream may stay idle before a
	// keepalive event is emitted. Zero selects the 15s default.
	KeepaliveInterval time.Duration
}

// NewRelayServer returns a server backed by the given collaborators.
func NewRelayServer(st store.Store, j *journal.Journal, b *broadcast.Broadcaster, logger *slog.Logger) *RelayServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayServer{
		store:       st,
		journal:     j,
		broadcaster: b,
		sessions:    presence.New(),
		logger:      logger,
	}
}

func (s *RelayServer) keepalive() time.Duration {
	if s.KeepaliveInterval > 0 {
		return s.KeepaliveInterval
	}
	return defaultKeepalive
}
