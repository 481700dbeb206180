package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/relay/internal/idgen"
	"github.com/alfredjeanlab/relay/internal/model"
)

// SSE event types on the message stream. Keepalives and gaps carry no
// payload and are distinguished from data purely by this tag.
const (
	eventMessage   = "message"
	eventGap       = "gap"
	eventKeepalive = "keepalive"
)

// sessionIDPrefix marks stream session ids in logs and the roster.
const sessionIDPrefix = "sess-"

// handleMessageStream handles GET /v1/messages/stream (SSE endpoint).
// A session first receives the full journal snapshot, then every
// message ingested while it stays connected, interleaved with gap
// markers when it falls behind and keepalives when nothing happens.
func (s *RelayServer) handleMessageStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sessionID, err := idgen.New(sessionIDPrefix)
	if err != nil {
		sessionID = sessionIDPrefix + "unknown"
	}

	s.sessions.Attach(sessionID, r.RemoteAddr)
	defer s.sessions.Detach(sessionID)

	// Subscribe before snapshotting so nothing ingested in between is
	// lost; the id filter below drops the overlap.
	sub := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	// snapshotMax bounds the dedup window. Only live items whose id
	// falls inside the snapshot are overlap; anything newer is
	// delivered even when ids arrive out of order.
	var snapshotMax int64
	snapshot := s.journal.Snapshot()
	for _, m := range snapshot {
		writeSSEMessage(w, m)
		s.sessions.Advance(sessionID, m.ID)
		snapshotMax = m.ID
	}
	flusher.Flush()

	s.logger.Info("stream: session attached", "session", sessionID, "snapshot", len(snapshot))
	defer s.logger.Info("stream: session detached", "session", sessionID)

	ctx := r.Context()
	keepalive := time.NewTicker(s.keepalive())
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case <-sub.Ready():
			wrote := false
			for {
				item, ok := sub.Next()
				if !ok {
					break
				}
				switch {
				case item.Gap:
					writeSSEEvent(w, eventGap, "")
					s.sessions.RecordGap(sessionID)
					wrote = true
				case item.Msg.ID > snapshotMax:
					writeSSEMessage(w, item.Msg)
					s.sessions.Advance(sessionID, item.Msg.ID)
					wrote = true
				}
			}
			if wrote {
				flusher.Flush()
				keepalive.Reset(s.keepalive())
			}
		case <-keepalive.C:
			writeSSEEvent(w, eventKeepalive, "")
			flusher.Flush()
		}
	}
}

// writeSSEMessage writes one message as a data event keyed by its id.
func writeSSEMessage(w http.ResponseWriter, m *model.Message) {
	fmt.Fprintf(w, "id:%d\n", m.ID)
	writeSSEEvent(w, eventMessage, m.Text)
}

// writeSSEEvent writes a single SSE event. Multi-line payloads become
// multiple data fields so embedded newlines cannot break the framing.
func writeSSEEvent(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event:%s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data:%s\n", line)
	}
	fmt.Fprint(w, "\n")
}
