package feed

import (
	"context"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func publish(t *testing.T, url, subject string, payload []byte) {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting publisher: %v", err)
	}
	defer nc.Close()
	if err := nc.Publish(subject, payload); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	nc.Flush()
}

func TestNATSSource_DeliversPayloads(t *testing.T) {
	url := startTestNATS(t)
	src := NewNATSSource(url, "relay.test", slog.Default())

	ch, cancel, err := src.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	publish(t, url, "relay.test", []byte(`{"id":1,"text":"hi"}`))

	select {
	case raw := <-ch:
		if string(raw) != `{"id":1,"text":"hi"}` {
			t.Errorf("got %q, want %q", raw, `{"id":1,"text":"hi"}`)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
	}
}

func TestNATSSource_CancelClosesChannel(t *testing.T) {
	url := startTestNATS(t)
	src := NewNATSSource(url, "", slog.Default())

	ch, cancel, err := src.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	cancel()
	cancel() // idempotent

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("received payload after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestNATSSource_SubscribeFailsWithoutServer(t *testing.T) {
	src := NewNATSSource("nats://127.0.0.1:1", "relay.test", slog.Default(),
		nats.RetryOnFailedConnect(false), nats.Timeout(200*time.Millisecond))

	if _, _, err := src.Subscribe(context.Background()); err == nil {
		t.Fatal("Subscribe succeeded against an unreachable server")
	}
}
