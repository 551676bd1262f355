package storage

import (
	"testing"

	"github.com/andresuchdata/rxstock/backend-go/internal/config"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in         string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{"https://s3.example.com", false, "s3.example.com", true},
		{"http://localhost:9000", true, "localhost:9000", false},
		{"localhost:9000", true, "localhost:9000", true},
		{"//minio:9000", false, "minio:9000", false},
	}

	for _, tt := range tests {
		host, secure := normalizeEndpoint(tt.in, tt.useSSL)
		if host != tt.wantHost || secure != tt.wantSecure {
			t.Errorf("%s: expected (%s,%v), got (%s,%v)", tt.in, tt.wantHost, tt.wantSecure, host, secure)
		}
	}
}

func TestNewMinioClient_Validation(t *testing.T) {
	bad := []config.StorageConfig{
		{},
		{Endpoint: "localhost:9000"},
		{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
	}
	for i, cfg := range bad {
		if _, err := NewMinioClient(cfg); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}

	c, err := NewMinioClient(config.StorageConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "rx"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.bucket != "rx" {
		t.Errorf("expected bucket rx, got %s", c.bucket)
	}
}

func TestContentType(t *testing.T) {
	if contentType("snap/periodicity.JSON") != "application/json" {
		t.Error("expected json content type")
	}
	if contentType("report.bin") != "application/octet-stream" {
		t.Error("expected octet-stream")
	}
}
