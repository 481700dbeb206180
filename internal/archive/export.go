package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/relay/internal/journal"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"message_count"`
	LastID       int64     `json:"last_id"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes the journal snapshot as JSONL to w: one header
// line followed by one message record per journal entry, ascending
// by id.
func ExportJSONL(j *journal.Journal, w io.Writer) error {
	messages := j.Snapshot()

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	hdr := header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		MessageCount: len(messages),
	}
	if len(messages) > 0 {
		hdr.LastID = messages[len(messages)-1].ID
	}
	if err := enc.Encode(hdr); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, m := range messages {
		if err := enc.Encode(record{Type: "message", Data: m}); err != nil {
			return fmt.Errorf("encode message %d: %w", m.ID, err)
		}
	}

	return nil
}
