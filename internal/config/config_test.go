package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
jwt:
  secret: s3cret
aws:
  s3_bucket: cases
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	g := cfg.Generation
	if cfg.Server.Port != 8000 || cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Fatalf("server defaults %+v", cfg.Server)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" || cfg.JWT.ExpireMinutes != 60 {
		t.Fatalf("redis/jwt defaults %+v %+v", cfg.Redis, cfg.JWT)
	}
	if g.DefaultProvider != "huggingface" || g.DefaultCount != 1 || g.MaxCount != 4 || g.AnonQuota != 1 {
		t.Fatalf("generation defaults %+v", g)
	}
	if g.AnonQuotaTTL != 30*24*time.Hour || g.SignedURLTTL != time.Hour || g.KeyPrefix != "Generated" {
		t.Fatalf("ttl defaults %+v", g)
	}
	if g.PublishWorkers != 4 || g.PublishQueue != 64 || g.Replicate.PollInterval != time.Second {
		t.Fatalf("publish defaults %+v", g)
	}
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")
	t.Setenv("TEST_HF_TOKEN", "hf_abc")

	cfg, err := Parse([]byte(`
jwt:
  secret: ${TEST_JWT_SECRET}
aws:
  s3_bucket: cases
generation:
  anon_quota: 3
  anon_quota_ttl: 48h
  huggingface:
    token: ${TEST_HF_TOKEN}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.JWT.Secret != "from-env" || cfg.Generation.HuggingFace.Token != "hf_abc" {
		t.Fatalf("env not expanded: %+v", cfg)
	}
	if cfg.Generation.AnonQuota != 3 || cfg.Generation.AnonQuotaTTL != 48*time.Hour {
		t.Fatalf("generation %+v", cfg.Generation)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"missing secret": "aws:\n  s3_bucket: cases\n",
		"missing bucket": "jwt:\n  secret: s\n",
		"count over max": "jwt:\n  secret: s\naws:\n  s3_bucket: b\ngeneration:\n  default_count: 5\n  max_count: 2\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  host: 127.0.0.1\n  port: 9000\njwt:\n  secret: s\naws:\n  s3_bucket: b\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Fatalf("addr = %q", cfg.Server.Addr())
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("err = %v", err)
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "cases", SSLMode: "disable"}
	if got := db.DSN(); got != "host=db port=5432 user=u password=p dbname=cases sslmode=disable" {
		t.Fatalf("DSN() = %q", got)
	}
}
