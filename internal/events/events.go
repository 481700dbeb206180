// Package events publishes accepted messages to the change feed
// transport. When the feed runs over NATS there is no database trigger
// in the path, so the server mirrors each insert onto the subject
// itself; ingestion dedupes by id either way.
package events

import (
	"context"

	"github.com/alfredjeanlab/relay/internal/model"
)

// Publisher is the interface for emitting accepted messages onto the
// change feed.
type Publisher interface {
	Publish(ctx context.Context, m *model.Message) error
	Close() error
}

// NoopPublisher discards all events. Used when the change feed comes
// from the database trigger and needs no help from the server.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *model.Message) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }
