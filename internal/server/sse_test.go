package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/relay/internal/broadcast"
	"github.com/alfredjeanlab/relay/internal/journal"
	"github.com/alfredjeanlab/relay/internal/model"
)

type sseEvent struct {
	id    string
	event string
	data  string
}

// pumpEvents parses an SSE byte stream into events until the reader
// fails, typically because the test closed the connection.
func pumpEvents(r io.Reader, ch chan<- sseEvent) {
	defer close(ch)
	br := bufio.NewReader(r)
	var ev sseEvent
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			ch <- ev
			ev = sseEvent{}
		case strings.HasPrefix(line, "id:"):
			ev.id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			ev.event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			if ev.data != "" {
				ev.data += "\n"
			}
			ev.data += strings.TrimPrefix(line, "data:")
		}
	}
}

type streamSession struct {
	events <-chan sseEvent
	cancel context.CancelFunc
}

func openStream(t *testing.T, baseURL string) *streamSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/messages/stream", nil)
	if err != nil {
		t.Fatalf("build stream request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("open stream: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		t.Fatalf("stream status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	ch := make(chan sseEvent, 64)
	go func() {
		defer resp.Body.Close()
		pumpEvents(resp.Body, ch)
	}()
	t.Cleanup(cancel)
	return &streamSession{events: ch, cancel: cancel}
}

func (s *streamSession) next(t *testing.T) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-s.events:
		if !ok {
			t.Fatal("stream closed while waiting for an event")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a stream event")
	}
	return sseEvent{}
}

func (s *streamSession) nextMessage(t *testing.T) sseEvent {
	t.Helper()
	for {
		ev := s.next(t)
		if ev.event != eventKeepalive {
			return ev
		}
	}
}

func waitSubscribers(t *testing.T, b *broadcast.Broadcaster, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Subscribers() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscribers = %d, want %d", b.Subscribers(), n)
}

func TestStreamReplaysSnapshot(t *testing.T) {
	srv, j, _ := newTestServer(&fakeStore{})
	j.Bootstrap([]*model.Message{{ID: 1, Text: "hi"}, {ID: 2, Text: "there"}})
	ts := httptest.NewServer(srv.NewHTTPHandler())
	t.Cleanup(ts.Close)

	stream := openStream(t, ts.URL)
	first := stream.nextMessage(t)
	if first.event != eventMessage || first.id != "1" || first.data != "hi" {
		t.Fatalf("first event = %+v", first)
	}
	second := stream.nextMessage(t)
	if second.event != eventMessage || second.id != "2" || second.data != "there" {
		t.Fatalf("second event = %+v", second)
	}
}

func TestStreamForwardsLiveMessages(t *testing.T) {
	srv, j, b := newTestServer(&fakeStore{})
	ts := httptest.NewServer(srv.NewHTTPHandler())
	t.Cleanup(ts.Close)

	stream := openStream(t, ts.URL)
	waitSubscribers(t, b, 1)

	m := &model.Message{ID: 1, Text: "first\nwith a second line"}
	j.Append(m)
	b.Publish(m)

	ev := stream.nextMessage(t)
	if ev.event != eventMessage || ev.id != "1" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.data != "first\nwith a second line" {
		t.Errorf("multi-line data = %q", ev.data)
	}
}

func TestStreamFiltersSnapshotOverlap(t *testing.T) {
	srv, j, b := newTestServer(&fakeStore{})
	j.Bootstrap([]*model.Message{{ID: 1, Text: "hi"}, {ID: 2, Text: "there"}})
	ts := httptest.NewServer(srv.NewHTTPHandler())
	t.Cleanup(ts.Close)

	stream := openStream(t, ts.URL)
	stream.nextMessage(t)
	stream.nextMessage(t)
	waitSubscribers(t, b, 1)

	// A publish covered by the snapshot must not reach the session a
	// second time; the next id past the snapshot must.
	b.Publish(&model.Message{ID: 2, Text: "there"})
	fresh := &model.Message{ID: 3, Text: "new"}
	j.Append(fresh)
	b.Publish(fresh)

	ev := stream.nextMessage(t)
	if ev.id != "3" || ev.data != "new" {
		t.Fatalf("event after overlap = %+v, want id 3", ev)
	}
}

func TestStreamDeliversOutOfOrderLiveMessages(t *testing.T) {
	srv, j, b := newTestServer(&fakeStore{})
	j.Bootstrap([]*model.Message{{ID: 1, Text: "hi"}})
	ts := httptest.NewServer(srv.NewHTTPHandler())
	t.Cleanup(ts.Close)

	stream := openStream(t, ts.URL)
	stream.nextMessage(t)
	waitSubscribers(t, b, 1)

	// The feed can redeliver notifications out of id order after a
	// reconnect. Only ids inside the snapshot are overlap; a later
	// publish with a lower id than an already sent live message must
	// still reach the session.
	later := &model.Message{ID: 5, Text: "later"}
	j.Append(later)
	b.Publish(later)
	earlier := &model.Message{ID: 4, Text: "earlier"}
	j.Append(earlier)
	b.Publish(earlier)

	ev := stream.nextMessage(t)
	if ev.id != "5" || ev.data != "later" {
		t.Fatalf("first live event = %+v, want id 5", ev)
	}
	ev = stream.nextMessage(t)
	if ev.id != "4" || ev.data != "earlier" {
		t.Fatalf("second live event = %+v, want id 4", ev)
	}
}

func TestStreamKeepalive(t *testing.T) {
	srv, _, _ := newTestServer(&fakeStore{})
	srv.KeepaliveInterval = 50 * time.Millisecond
	ts := httptest.NewServer(srv.NewHTTPHandler())
	t.Cleanup(ts.Close)

	stream := openStream(t, ts.URL)
	ev := stream.next(t)
	if ev.event != eventKeepalive {
		t.Fatalf("event = %+v, want keepalive", ev)
	}
	if ev.data != "" {
		t.Errorf("keepalive data = %q, want empty", ev.data)
	}
}

func TestStreamDisconnectUnsubscribes(t *testing.T) {
	srv, _, b := newTestServer(&fakeStore{})
	ts := httptest.NewServer(srv.NewHTTPHandler())
	t.Cleanup(ts.Close)

	stream := openStream(t, ts.URL)
	waitSubscribers(t, b, 1)

	stream.cancel()
	waitSubscribers(t, b, 0)
}

// pipeResponseWriter backs the stream handler with an unbuffered pipe,
// so a write blocks until the test reads it. That pins the handler
// mid-write and lets publishes pile up behind it deterministically.
type pipeResponseWriter struct {
	header http.Header
	pw     *io.PipeWriter
}

func (w *pipeResponseWriter) Header() http.Header         { return w.header }
func (w *pipeResponseWriter) WriteHeader(int)             {}
func (w *pipeResponseWriter) Flush()                      {}
func (w *pipeResponseWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func TestStreamEmitsGapWhenLagging(t *testing.T) {
	st := &fakeStore{}
	j := journal.New()
	b := broadcast.New(2)
	srv := NewRelayServer(st, j, b, nil)

	pr, pw := io.Pipe()
	defer pr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/messages/stream", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleMessageStream(&pipeResponseWriter{header: make(http.Header), pw: pw}, req)
		close(done)
	}()
	waitSubscribers(t, b, 1)

	// The handler forwards at most one of these before its pipe write
	// blocks; the rest overflow the 2-slot queue.
	for i := int64(1); i <= 10; i++ {
		m := &model.Message{ID: i, Text: fmt.Sprintf("m%d", i)}
		j.Append(m)
		b.Publish(m)
	}

	events := make(chan sseEvent, 64)
	go pumpEvents(pr, events)

	var gaps int
	var afterGap []string
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case ev := <-events:
			switch ev.event {
			case eventGap:
				gaps++
			case eventMessage:
				if gaps > 0 {
					afterGap = append(afterGap, ev.id)
				}
				if ev.id == "10" {
					break loop
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for the stream to drain")
		}
	}

	if gaps != 1 {
		t.Errorf("gap events = %d, want exactly 1", gaps)
	}
	// The queue retains only the newest two entries, so after the gap
	// the session resumes at the tail of what was published.
	want := []string{"9", "10"}
	if len(afterGap) != len(want) || afterGap[0] != want[0] || afterGap[1] != want[1] {
		t.Errorf("ids after gap = %v, want %v", afterGap, want)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after cancel")
	}
	waitSubscribers(t, b, 0)
}

// TestLiveViewerFlow walks the whole read path: a seeded journal, one
// session already attached when a message arrives, and a second
// session attaching afterwards.
func TestLiveViewerFlow(t *testing.T) {
	srv, j, b := newTestServer(&fakeStore{})
	j.Bootstrap([]*model.Message{{ID: 1, Text: "hi"}})
	ts := httptest.NewServer(srv.NewHTTPHandler())
	t.Cleanup(ts.Close)

	sessA := openStream(t, ts.URL)
	if ev := sessA.nextMessage(t); ev.id != "1" || ev.data != "hi" {
		t.Fatalf("A snapshot event = %+v", ev)
	}
	waitSubscribers(t, b, 1)

	m := &model.Message{ID: 2, Text: "there"}
	j.Append(m)
	b.Publish(m)
	if ev := sessA.nextMessage(t); ev.id != "2" || ev.data != "there" {
		t.Fatalf("A live event = %+v", ev)
	}

	sessB := openStream(t, ts.URL)
	if ev := sessB.nextMessage(t); ev.id != "1" {
		t.Fatalf("B first event = %+v", ev)
	}
	if ev := sessB.nextMessage(t); ev.id != "2" {
		t.Fatalf("B second event = %+v", ev)
	}
	waitSubscribers(t, b, 2)

	// A later message reaches both sessions exactly once, with no
	// replay of what either already saw.
	m3 := &model.Message{ID: 3, Text: "everyone"}
	j.Append(m3)
	b.Publish(m3)
	if ev := sessA.nextMessage(t); ev.id != "3" {
		t.Fatalf("A third event = %+v", ev)
	}
	if ev := sessB.nextMessage(t); ev.id != "3" {
		t.Fatalf("B third event = %+v", ev)
	}
}
