// Package config loads runtime configuration for the relay server.
// Values come from an optional TOML file (RELAY_CONFIG_FILE) with
// environment variables taking precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL string // RELAY_DATABASE_URL (required)
	HTTPAddr    string // RELAY_HTTP_ADDR (default ":8080")

	// Feed settings. When NATSURL is set the change feed is consumed
	// from a NATS subject instead of Postgres LISTEN/NOTIFY.
	FeedChannel string // RELAY_FEED_CHANNEL (default "relay_messages")
	NATSURL     string // RELAY_NATS_URL (optional)
	NATSSubject string // RELAY_NATS_SUBJECT (default "relay.messages")

	// Stream settings.
	StreamBuffer      int           // RELAY_STREAM_BUFFER (default 100)
	KeepaliveInterval time.Duration // RELAY_KEEPALIVE_INTERVAL (default 15s)

	// Archive settings.
	ArchiveInterval   time.Duration // RELAY_ARCHIVE_INTERVAL (0 = disabled)
	ArchiveFile       string        // RELAY_ARCHIVE_FILE (enables a local file destination when set)
	ArchiveS3Bucket   string        // RELAY_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // RELAY_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // RELAY_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Key      string        // RELAY_ARCHIVE_S3_KEY (default "relay/messages.jsonl")
}

// duration lets config-file values be written as "15s" rather than
// integer nanoseconds.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// fileConfig is the on-disk TOML shape of Config.
type fileConfig struct {
	DatabaseURL       string   `toml:"database_url"`
	HTTPAddr          string   `toml:"http_addr"`
	FeedChannel       string   `toml:"feed_channel"`
	NATSURL           string   `toml:"nats_url"`
	NATSSubject       string   `toml:"nats_subject"`
	StreamBuffer      int      `toml:"stream_buffer"`
	KeepaliveInterval duration `toml:"keepalive_interval"`
	ArchiveInterval   duration `toml:"archive_interval"`
	ArchiveFile       string   `toml:"archive_file"`
	ArchiveS3Bucket   string   `toml:"archive_s3_bucket"`
	ArchiveS3Endpoint string   `toml:"archive_s3_endpoint"`
	ArchiveS3Region   string   `toml:"archive_s3_region"`
	ArchiveS3Key      string   `toml:"archive_s3_key"`
}

// Load builds the configuration from the optional TOML file named by
// RELAY_CONFIG_FILE, then applies environment overrides and defaults.
func Load() (*Config, error) {
	c := &Config{}

	if path := os.Getenv("RELAY_CONFIG_FILE"); path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		c.DatabaseURL = fc.DatabaseURL
		c.HTTPAddr = fc.HTTPAddr
		c.FeedChannel = fc.FeedChannel
		c.NATSURL = fc.NATSURL
		c.NATSSubject = fc.NATSSubject
		c.StreamBuffer = fc.StreamBuffer
		c.KeepaliveInterval = time.Duration(fc.KeepaliveInterval)
		c.ArchiveInterval = time.Duration(fc.ArchiveInterval)
		c.ArchiveFile = fc.ArchiveFile
		c.ArchiveS3Bucket = fc.ArchiveS3Bucket
		c.ArchiveS3Endpoint = fc.ArchiveS3Endpoint
		c.ArchiveS3Region = fc.ArchiveS3Region
		c.ArchiveS3Key = fc.ArchiveS3Key
	}

	applyString(&c.DatabaseURL, "RELAY_DATABASE_URL", "")
	applyString(&c.HTTPAddr, "RELAY_HTTP_ADDR", ":8080")
	applyString(&c.FeedChannel, "RELAY_FEED_CHANNEL", "relay_messages")
	applyString(&c.NATSURL, "RELAY_NATS_URL", "")
	applyString(&c.NATSSubject, "RELAY_NATS_SUBJECT", "relay.messages")
	applyString(&c.ArchiveFile, "RELAY_ARCHIVE_FILE", "")
	applyString(&c.ArchiveS3Bucket, "RELAY_ARCHIVE_S3_BUCKET", "")
	applyString(&c.ArchiveS3Endpoint, "RELAY_ARCHIVE_S3_ENDPOINT", "")
	applyString(&c.ArchiveS3Region, "RELAY_ARCHIVE_S3_REGION", "us-east-1")
	applyString(&c.ArchiveS3Key, "RELAY_ARCHIVE_S3_KEY", "relay/messages.jsonl")

	if err := applyInt(&c.StreamBuffer, "RELAY_STREAM_BUFFER", 100); err != nil {
		return nil, err
	}
	if err := applyDuration(&c.KeepaliveInterval, "RELAY_KEEPALIVE_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if err := applyDuration(&c.ArchiveInterval, "RELAY_ARCHIVE_INTERVAL", 0); err != nil {
		return nil, err
	}

	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("RELAY_DATABASE_URL is required")
	}
	if c.StreamBuffer <= 0 {
		return nil, fmt.Errorf("stream buffer must be positive, got %d", c.StreamBuffer)
	}
	if c.KeepaliveInterval <= 0 {
		return nil, fmt.Errorf("keepalive interval must be positive, got %s", c.KeepaliveInterval)
	}

	return c, nil
}

// applyString overrides dst from the environment, keeping any
// file-supplied value and falling back to the default only when both
// are empty.
func applyString(dst *string, key, fallback string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
	if *dst == "" {
		*dst = fallback
	}
}

func applyInt(dst *int, key string, fallback int) error {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	if *dst == 0 {
		*dst = fallback
	}
	return nil
}

func applyDuration(dst *time.Duration, key string, fallback time.Duration) error {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	if *dst == 0 {
		*dst = fallback
	}
	return nil
}
