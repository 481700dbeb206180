// Package store defines the persistence interface for the messages
// table. The table is append-only; the change feed, not the writer,
// propagates new rows into the in-memory journal.
package store

import (
	"context"

	"github.com/alfredjeanlab/relay/internal/model"
)

// Store is the durable, queryable home of the message log.
type Store interface {
	// InsertMessage appends a message row and returns the id the
	// database assigned to it.
	InsertMessage(ctx context.Context, text string) (int64, error)

	// ListMessages returns every message ordered ascending by id.
	ListMessages(ctx context.Context) ([]*model.Message, error)

	// Lifecycle
	Close() error
}
