package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RENDER_TOKEN_SECRET", "secret")
	t.Setenv("PDF_BUCKET", "agreements")
	t.Setenv("QUEUE_URL", "https://sqs.test/queue")
	t.Setenv("ALLOWED_RENDER_HOSTS", "example.com")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TmpFolder != "/tmp/agreement-pdf" {
		t.Errorf("tmp folder = %q", cfg.TmpFolder)
	}
	if cfg.TokenTTL != 5*time.Minute {
		t.Errorf("token ttl = %v", cfg.TokenTTL)
	}
	if cfg.Retention.BaseYears != 7 || cfg.Retention.BaseThreshold != 10 || cfg.Retention.ExtendedThreshold != 15 {
		t.Errorf("retention = %+v", cfg.Retention)
	}
	if cfg.Retention.BasePrefix != "standard" || cfg.Retention.MaximumPrefix != "permanent" {
		t.Errorf("retention prefixes = %+v", cfg.Retention)
	}
	if cfg.Queue.BatchSize != 5 || cfg.Queue.WaitSeconds != 20 || cfg.Queue.VisibilitySeconds != 300 {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if cfg.Queue.HandlerTimeout != 2*time.Minute {
		t.Errorf("handler timeout = %v", cfg.Queue.HandlerTimeout)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}
}

func TestLoadMissingSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("RENDER_TOKEN_SECRET", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "RENDER_TOKEN_SECRET") {
		t.Fatalf("expected error naming RENDER_TOKEN_SECRET, got %v", err)
	}
}

func TestLoadMissingBucket(t *testing.T) {
	setRequired(t)
	t.Setenv("PDF_BUCKET", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "PDF_BUCKET") {
		t.Fatalf("expected error naming PDF_BUCKET, got %v", err)
	}
}

func TestLoadMissingAllowedHosts(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_RENDER_HOSTS", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "ALLOWED_RENDER_HOSTS") {
		t.Fatalf("expected error naming ALLOWED_RENDER_HOSTS, got %v", err)
	}
}

func TestLoadBatchSizeBounds(t *testing.T) {
	setRequired(t)
	t.Setenv("QUEUE_BATCH_SIZE", "11")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for batch size over the SQS limit")
	}
}

func TestSplitHosts(t *testing.T) {
	got := splitHosts(" Example.com , other.test ,, ")
	if len(got) != 2 || got[0] != "example.com" || got[1] != "other.test" {
		t.Errorf("splitHosts = %v", got)
	}
	if splitHosts("") != nil {
		t.Errorf("empty input should yield nil")
	}
}

func TestLoadHostList(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_RENDER_HOSTS", "example.com,printable.example.net")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AllowedHosts) != 2 || cfg.AllowedHosts[1] != "printable.example.net" {
		t.Errorf("allowed hosts = %v", cfg.AllowedHosts)
	}
}
