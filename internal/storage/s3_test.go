package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestPresignGetSignsObjectURL(t *testing.T) {
	store, err := NewS3Store(context.Background(), S3Options{
		Region:    "us-east-1",
		Bucket:    "cases",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
		Endpoint:  "http://localhost:9000",
	})
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}

	raw, err := store.PresignGet(context.Background(), "Generated/1/2/abc.png", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignGet: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Host != "localhost:9000" {
		t.Fatalf("host = %q, want custom endpoint", u.Host)
	}
	if u.Path != "/cases/Generated/1/2/abc.png" {
		t.Fatalf("path = %q, want path-style bucket/key", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Expires") != "900" {
		t.Fatalf("X-Amz-Expires = %q, want 900", q.Get("X-Amz-Expires"))
	}
	if !strings.HasPrefix(q.Get("X-Amz-Credential"), "AKIDEXAMPLE/") {
		t.Fatalf("credential = %q", q.Get("X-Amz-Credential"))
	}
}
