// Package feed abstracts the change-data-capture subscription that
// delivers insert notifications for the messages table. Two transports
// are provided: a Postgres LISTEN/NOTIFY listener fed by an insert
// trigger, and a NATS subject for deployments that relay CDC rows
// through a broker.
package feed

import "context"

// Source is a managed subscription to row-insert notifications.
type Source interface {
	// Subscribe opens the subscription and delivers raw JSON row
	// payloads on the returned channel. The channel is closed when the
	// subscription terminates; call the returned cancel function to
	// release it. Transient disconnects are handled internally by the
	// transport and are not surfaced as channel closure.
	Subscribe(ctx context.Context) (<-chan []byte, func(), error)
}
