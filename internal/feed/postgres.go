package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

const (
	// DefaultChannel is the NOTIFY channel the messages insert trigger
	// publishes to (see the store migrations).
	DefaultChannel = "relay_messages"

	listenerMinReconnect = 2 * time.Second
	listenerMaxReconnect = time.Minute

	// listenerPingInterval guards against silently dead connections
	// when no notifications arrive for a long time.
	listenerPingInterval = 90 * time.Second
)

// ListenerSource delivers insert notifications via Postgres
// LISTEN/NOTIFY. The underlying pq.Listener reconnects on its own with
// bounded backoff, so a feed outage shows up as a pause rather than an
// error; after a reconnect, rows inserted while disconnected are not
// replayed.
type ListenerSource struct {
	databaseURL string
	channel     string
	logger      *slog.Logger
}

// NewListenerSource returns a source listening on the given NOTIFY
// channel. An empty channel selects DefaultChannel.
func NewListenerSource(databaseURL, channel string, logger *slog.Logger) *ListenerSource {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ListenerSource{databaseURL: databaseURL, channel: channel, logger: logger}
}

func (s *ListenerSource) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	listener := pq.NewListener(s.databaseURL, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventDisconnected:
				s.logger.Warn("feed: listener disconnected", "err", err)
			case pq.ListenerEventReconnected:
				s.logger.Info("feed: listener reconnected")
			case pq.ListenerEventConnectionAttemptFailed:
				s.logger.Warn("feed: listener connection attempt failed", "err", err)
			}
		})

	if err := listener.Listen(s.channel); err != nil {
		listener.Close()
		return nil, nil, fmt.Errorf("listen on %s: %w", s.channel, err)
	}

	out := make(chan []byte)
	done := make(chan struct{})

	go func() {
		defer close(out)
		ping := time.NewTicker(listenerPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					// Emitted after an automatic reconnect; rows inserted
					// while disconnected were not delivered.
					s.logger.Warn("feed: notifications may have been missed during reconnect",
						"channel", s.channel)
					continue
				}
				select {
				case out <- []byte(n.Extra):
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			case <-ping.C:
				if err := listener.Ping(); err != nil {
					s.logger.Warn("feed: listener ping failed", "err", err)
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			listener.Close()
		})
	}
	return out, cancel, nil
}
