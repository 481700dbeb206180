package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject carrying relayed CDC rows.
const DefaultSubject = "relay.messages"

// NATSSource delivers insert notifications from a NATS subject. Useful
// when the database's change feed is relayed through a broker instead
// of being consumed directly. The connection reconnects indefinitely.
type NATSSource struct {
	url     string
	subject string
	logger  *slog.Logger
	opts    []nats.Option
}

// NewNATSSource returns a source for the given subject. An empty
// subject selects DefaultSubject. Extra nats.Option values (e.g. test
// timeouts) can be appended.
func NewNATSSource(url, subject string, logger *slog.Logger, opts ...nats.Option) *NATSSource {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSource{url: url, subject: subject, logger: logger, opts: opts}
}

func (s *NATSSource) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	logger := s.logger
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("feed: nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("feed: nats reconnected")
		}),
	}
	nc, err := nats.Connect(s.url, append(defaults, s.opts...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to NATS at %s: %w", s.url, err)
	}

	ch := make(chan []byte, 64)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := nc.Subscribe(s.subject, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- msg.Data:
		default:
			// Drop rather than block the NATS client; the journal
			// bootstrap remains the source of truth for history.
			logger.Warn("feed: nats delivery buffer full, dropping notification",
				"subject", s.subject)
		}
	})
	if err != nil {
		nc.Close()
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", s.subject, err)
	}
	// Flush ensures the subscription is registered on the server before
	// returning, so rows published on other connections are routed.
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		nc.Close()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			mu.Unlock()
			nc.Close()
			// Drain remaining payloads so senders don't block, then close.
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}

	return ch, cancel, nil
}
