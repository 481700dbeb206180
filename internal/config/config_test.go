package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearRelayEnv unsets every RELAY_* variable the loader reads so tests
// start from a clean slate.
func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RELAY_CONFIG_FILE", "RELAY_DATABASE_URL", "RELAY_HTTP_ADDR",
		"RELAY_FEED_CHANNEL", "RELAY_NATS_URL", "RELAY_NATS_SUBJECT",
		"RELAY_STREAM_BUFFER", "RELAY_KEEPALIVE_INTERVAL",
		"RELAY_ARCHIVE_INTERVAL", "RELAY_ARCHIVE_FILE", "RELAY_ARCHIVE_S3_BUCKET",
		"RELAY_ARCHIVE_S3_ENDPOINT", "RELAY_ARCHIVE_S3_REGION",
		"RELAY_ARCHIVE_S3_KEY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("RELAY_DATABASE_URL", "postgres://localhost/relay")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", c.HTTPAddr)
	}
	if c.FeedChannel != "relay_messages" {
		t.Errorf("FeedChannel = %q", c.FeedChannel)
	}
	if c.NATSSubject != "relay.messages" {
		t.Errorf("NATSSubject = %q", c.NATSSubject)
	}
	if c.StreamBuffer != 100 {
		t.Errorf("StreamBuffer = %d, want 100", c.StreamBuffer)
	}
	if c.KeepaliveInterval != 15*time.Second {
		t.Errorf("KeepaliveInterval = %s, want 15s", c.KeepaliveInterval)
	}
	if c.ArchiveInterval != 0 {
		t.Errorf("ArchiveInterval = %s, want 0", c.ArchiveInterval)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	clearRelayEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without RELAY_DATABASE_URL")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("RELAY_DATABASE_URL", "postgres://localhost/relay")
	t.Setenv("RELAY_HTTP_ADDR", ":9999")
	t.Setenv("RELAY_STREAM_BUFFER", "16")
	t.Setenv("RELAY_KEEPALIVE_INTERVAL", "3s")
	t.Setenv("RELAY_NATS_URL", "nats://localhost:4222")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", c.HTTPAddr)
	}
	if c.StreamBuffer != 16 {
		t.Errorf("StreamBuffer = %d", c.StreamBuffer)
	}
	if c.KeepaliveInterval != 3*time.Second {
		t.Errorf("KeepaliveInterval = %s", c.KeepaliveInterval)
	}
	if c.NATSURL != "nats://localhost:4222" {
		t.Errorf("NATSURL = %q", c.NATSURL)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearRelayEnv(t)
	path := filepath.Join(t.TempDir(), "relay.toml")
	body := `
database_url = "postgres://filehost/relay"
http_addr = ":7070"
stream_buffer = 50
keepalive_interval = "30s"
feed_channel = "custom_feed"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RELAY_CONFIG_FILE", path)

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DatabaseURL != "postgres://filehost/relay" {
		t.Errorf("DatabaseURL = %q", c.DatabaseURL)
	}
	if c.HTTPAddr != ":7070" {
		t.Errorf("HTTPAddr = %q", c.HTTPAddr)
	}
	if c.StreamBuffer != 50 {
		t.Errorf("StreamBuffer = %d", c.StreamBuffer)
	}
	if c.KeepaliveInterval != 30*time.Second {
		t.Errorf("KeepaliveInterval = %s", c.KeepaliveInterval)
	}
	if c.FeedChannel != "custom_feed" {
		t.Errorf("FeedChannel = %q", c.FeedChannel)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	clearRelayEnv(t)
	path := filepath.Join(t.TempDir(), "relay.toml")
	if err := os.WriteFile(path, []byte(`database_url = "postgres://filehost/relay"`+"\n"+`http_addr = ":7070"`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RELAY_CONFIG_FILE", path)
	t.Setenv("RELAY_HTTP_ADDR", ":6060")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTPAddr != ":6060" {
		t.Errorf("HTTPAddr = %q, want env value :6060", c.HTTPAddr)
	}
	if c.DatabaseURL != "postgres://filehost/relay" {
		t.Errorf("DatabaseURL = %q, want file value", c.DatabaseURL)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("RELAY_DATABASE_URL", "postgres://localhost/relay")

	t.Setenv("RELAY_STREAM_BUFFER", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("Load succeeded with invalid stream buffer")
	}

	t.Setenv("RELAY_STREAM_BUFFER", "-5")
	if _, err := Load(); err == nil {
		t.Error("Load succeeded with negative stream buffer")
	}

	t.Setenv("RELAY_STREAM_BUFFER", "10")
	t.Setenv("RELAY_KEEPALIVE_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Error("Load succeeded with invalid keepalive interval")
	}
}
