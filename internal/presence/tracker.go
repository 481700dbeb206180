// Package presence tracks the stream sessions currently attached to
// the server. The tracker is updated directly by the SSE handler on
// attach, send, and detach, and backs the GET /v1/sessions roster.
package presence

import (
	"sort"
	"sync"
	"time"
)

// Entry is a snapshot of one attached stream session.
type Entry struct {
	SessionID    string    `json:"session_id"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
	AttachedAt   time.Time `json:"attached_at"`
	LastSentAt   time.Time `json:"last_sent_at"`
	LastSentID   int64     `json:"last_sent_id"`
	SentCount    int64     `json:"sent_count"`
	GapCount     int64     `json:"gap_count"`
	IdleSecs     float64   `json:"idle_secs"`
	DurationSecs float64   `json:"duration_secs"`
}

// Tracker maintains an in-memory roster of attached sessions.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
}

type sessionState struct {
	remoteAddr string
	attachedAt time.Time
	lastSentAt time.Time
	lastSentID int64
	sentCount  int64
	gapCount   int64
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{sessions: make(map[string]*sessionState)}
}

// Attach registers a new stream session.
func (t *Tracker) Attach(sessionID, remoteAddr string) {
	if sessionID == "" {
		return
	}
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[sessionID] = &sessionState{
		remoteAddr: remoteAddr,
		attachedAt: now,
		lastSentAt: now,
	}
}

// Advance records that a message with the given id was sent to the
// session.
func (t *Tracker) Advance(sessionID string, id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	state.lastSentAt = time.Now()
	state.lastSentID = id
	state.sentCount++
}

// RecordGap counts a gap marker delivered to the session.
func (t *Tracker) RecordGap(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.sessions[sessionID]; ok {
		state.gapCount++
	}
}

// Detach removes a session. Detaching an unknown id is a no-op.
func (t *Tracker) Detach(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// Count returns the number of attached sessions.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Sessions returns a snapshot of all attached sessions, most recently
// attached first.
func (t *Tracker) Sessions() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	entries := make([]Entry, 0, len(t.sessions))
	for id, state := range t.sessions {
		entries = append(entries, Entry{
			SessionID:    id,
			RemoteAddr:   state.remoteAddr,
			AttachedAt:   state.attachedAt,
			LastSentAt:   state.lastSentAt,
			LastSentID:   state.lastSentID,
			SentCount:    state.sentCount,
			GapCount:     state.gapCount,
			IdleSecs:     now.Sub(state.lastSentAt).Seconds(),
			DurationSecs: now.Sub(state.attachedAt).Seconds(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AttachedAt.After(entries[j].AttachedAt)
	})
	return entries
}
