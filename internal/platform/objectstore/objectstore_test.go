package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Endpoint:  "localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Region:    "us-east-1",
		Bucket:    "jobintel",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }},
		{"missing access key", func(c *Config) { c.AccessKey = "" }},
		{"missing secret key", func(c *Config) { c.SecretKey = "" }},
		{"missing bucket", func(c *Config) { c.Bucket = "" }},
		{"endpoint with scheme", func(c *Config) { c.Endpoint = "http://localhost:9000" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	body := []byte("payload")
	if err := store.Put(ctx, "bucket", "runs/a/b", bytes.NewReader(body), int64(len(body)), "abc123"); err != nil {
		t.Fatalf("Put() err=%v", err)
	}

	info, err := store.Stat(ctx, "bucket", "runs/a/b")
	if err != nil {
		t.Fatalf("Stat() err=%v", err)
	}
	if info.ContentSHA256 != "abc123" {
		t.Fatalf("ContentSHA256=%q", info.ContentSHA256)
	}
	if info.Size != int64(len(body)) {
		t.Fatalf("Size=%d", info.Size)
	}

	rc, _, err := store.Get(ctx, "bucket", "runs/a/b")
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, body) {
		t.Fatalf("Get()=%q", got)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	_, err := NewMemoryStore().Stat(context.Background(), "bucket", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Stat() err=%v, want ErrNotFound", err)
	}
}
