// Package model defines the message record shared by the store, the
// change feed, and the HTTP surface.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message is one row of the append-only messages table. ID is assigned
// by the database at insert time and is the total order key.
type Message struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// timestampLayouts covers the formats Postgres emits for timestamptz in
// row_to_json output, depending on server version and column type.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// changeRow is the dynamic shape of a CDC insert payload. Pointer
// fields distinguish "absent" from zero values.
type changeRow struct {
	ID        *int64          `json:"id"`
	Text      *string         `json:"text"`
	CreatedAt json.RawMessage `json:"created_at"`
}

// DecodeChange validates a raw change-feed payload and produces a
// Message. The id and text fields are required; created_at is parsed
// best-effort since it is only used for display.
func DecodeChange(raw []byte) (*Message, error) {
	var row changeRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode change payload: %w", err)
	}
	if row.ID == nil || *row.ID <= 0 {
		return nil, errors.New("change payload missing id")
	}
	if row.Text == nil {
		return nil, errors.New("change payload missing text")
	}

	m := &Message{ID: *row.ID, Text: *row.Text}
	if len(row.CreatedAt) > 0 {
		var s string
		if err := json.Unmarshal(row.CreatedAt, &s); err == nil {
			m.CreatedAt = parseTimestamp(s)
		}
	}
	return m, nil
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ValidateText trims and validates user-supplied message text before it
// is handed to the store. Ingestion does not re-validate.
func ValidateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", errors.New("text is required")
	}
	return trimmed, nil
}
