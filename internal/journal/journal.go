// Package journal holds the in-memory ordered record of every message
// this process has observed. It is hydrated once from the store at
// startup and extended by the ingestion loop; HTTP handlers read it
// concurrently through snapshots.
package journal

import (
	"cmp"
	"slices"
	"sync"

	"github.com/alfredjeanlab/relay/internal/model"
)

// Journal is a single-writer, many-reader append-only message log
// ordered by message id. The zero value is not usable; call New.
type Journal struct {
	mu       sync.RWMutex
	messages []*model.Message
}

func New() *Journal {
	return &Journal{}
}

// Bootstrap replaces the journal contents with the given messages,
// sorted ascending by id. Call once, before any Append.
func (j *Journal) Bootstrap(messages []*model.Message) {
	copied := make([]*model.Message, len(messages))
	copy(copied, messages)
	slices.SortFunc(copied, func(a, b *model.Message) int {
		return cmp.Compare(a.ID, b.ID)
	})

	j.mu.Lock()
	j.messages = copied
	j.mu.Unlock()
}

// Append inserts the message in id order. It returns false without
// modifying the journal when a message with the same id is already
// present, which makes redelivered change notifications a no-op.
func (j *Journal) Append(m *model.Message) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	idx, found := slices.BinarySearchFunc(j.messages, m, func(a, b *model.Message) int {
		return cmp.Compare(a.ID, b.ID)
	})
	if found {
		return false
	}
	j.messages = slices.Insert(j.messages, idx, m)
	return true
}

// Snapshot returns a point-in-time copy of the journal, ordered
// ascending by id. The returned slice is owned by the caller.
func (j *Journal) Snapshot() []*model.Message {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]*model.Message, len(j.messages))
	copy(out, j.messages)
	return out
}

// Len reports the number of messages currently held.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.messages)
}

// LastID returns the highest message id observed, or 0 when empty.
func (j *Journal) LastID() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.messages) == 0 {
		return 0
	}
	return j.messages[len(j.messages)-1].ID
}
