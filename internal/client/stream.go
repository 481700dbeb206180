package client

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// StreamEvent is one occurrence on the live message stream.
type StreamEvent struct {
	Kind EventKind
	// ID and Text are set when Kind is EventMessage.
	ID   int64
	Text string
}

// EventKind classifies a stream event.
type EventKind int

const (
	// EventMessage carries one message from the server's journal.
	EventMessage EventKind = iota
	// EventGap marks that the session fell behind and an unknown
	// number of messages were dropped before the next one.
	EventGap
	// EventKeepalive is the server's idle heartbeat.
	EventKeepalive
)

// Tail attaches to the server's live stream and invokes fn for every
// event until the context is canceled, the connection drops, or fn
// returns an error. The server replays its full snapshot first, so a
// fresh Tail always starts at id 1 unless a gap intervenes.
func (c *Client) Tail(ctx context.Context, fn func(StreamEvent) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/messages/stream", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: "stream rejected"}
	}

	br := bufio.NewReader(resp.Body)
	var id int64
	var event string
	var data []string
	var seenField bool
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading stream: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		if line != "" {
			switch {
			case strings.HasPrefix(line, "id:"):
				id, _ = strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "id:")), 10, 64)
				seenField = true
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				seenField = true
			case strings.HasPrefix(line, "data:"):
				data = append(data, strings.TrimPrefix(line, "data:"))
				seenField = true
			}
			continue
		}

		// Blank line ends the event. Extra separators between events
		// carry no fields and are not events themselves.
		if !seenField {
			continue
		}
		ev := StreamEvent{}
		switch event {
		case "gap":
			ev.Kind = EventGap
		case "keepalive":
			ev.Kind = EventKeepalive
		default:
			ev.Kind = EventMessage
			ev.ID = id
			ev.Text = strings.Join(data, "\n")
		}
		if err := fn(ev); err != nil {
			return err
		}
		id, event, data, seenField = 0, "", nil, false
	}
}
