package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.File != "./evacuator.db" {
		t.Errorf("Expected default ledger file, got %q", cfg.Database.File)
	}
	if cfg.Mastodon.TextSizeLimit != 500 {
		t.Errorf("Expected default text size limit 500, got %d", cfg.Mastodon.TextSizeLimit)
	}
	if cfg.Mastodon.RatelimitRetries != 3 {
		t.Errorf("Expected 3 rate limit retries, got %d", cfg.Mastodon.RatelimitRetries)
	}
	if cfg.Mastodon.MediaPollInterval != 5*time.Second {
		t.Errorf("Expected 5s poll interval, got %v", cfg.Mastodon.MediaPollInterval)
	}
	if !cfg.Mastodon.PushPrivate {
		t.Error("Expected private publication by default")
	}
	if !cfg.Mastodon.FilterMentions {
		t.Error("Expected mention filtering by default")
	}
	if cfg.Mastodon.DryRun || cfg.Mastodon.Retry || cfg.Mastodon.DateTag {
		t.Error("Expected dry run, retry and date tag off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_FILE", "/tmp/other.db")
	t.Setenv("MASTODON_TEXT_SIZE_LIMIT", "5000")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("MASTODON_MEDIA_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.File != "/tmp/other.db" {
		t.Errorf("Expected overridden ledger file, got %q", cfg.Database.File)
	}
	if cfg.Mastodon.TextSizeLimit != 5000 {
		t.Errorf("Expected text size limit 5000, got %d", cfg.Mastodon.TextSizeLimit)
	}
	if !cfg.Mastodon.DryRun {
		t.Error("Expected dry run enabled")
	}
	if cfg.Mastodon.MediaPollInterval != 250*time.Millisecond {
		t.Errorf("Expected 250ms poll interval, got %v", cfg.Mastodon.MediaPollInterval)
	}
}

func TestLoad_TextSizeLimitFloor(t *testing.T) {
	t.Setenv("MASTODON_TEXT_SIZE_LIMIT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mastodon.TextSizeLimit != 500 {
		t.Errorf("A limit below the floor must fall back to 500, got %d", cfg.Mastodon.TextSizeLimit)
	}
}

func TestValidate_RejectsZeroRetries(t *testing.T) {
	t.Setenv("MASTODON_RATELIMIT_RETRIES", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Expected validation to reject zero retries")
	}
}

func TestPromptMissing(t *testing.T) {
	cfg := &Config{}
	in := strings.NewReader("home.social\nsecret-token\n")
	var out strings.Builder

	if err := cfg.PromptMissing(in, &out); err != nil {
		t.Fatalf("PromptMissing failed: %v", err)
	}
	if cfg.Mastodon.Domain != "home.social" {
		t.Errorf("Expected prompted domain, got %q", cfg.Mastodon.Domain)
	}
	if cfg.Mastodon.AccessToken != "secret-token" {
		t.Errorf("Expected prompted token, got %q", cfg.Mastodon.AccessToken)
	}
	if !strings.Contains(out.String(), "mastodon domain") {
		t.Errorf("Expected a domain prompt, got %q", out.String())
	}
}

func TestPromptMissing_KeepsConfiguredValues(t *testing.T) {
	cfg := &Config{}
	cfg.Mastodon.Domain = "home.social"
	cfg.Mastodon.AccessToken = "secret-token"

	if err := cfg.PromptMissing(strings.NewReader(""), &strings.Builder{}); err != nil {
		t.Fatalf("PromptMissing must not prompt when both values are set: %v", err)
	}
}

func TestPromptMissing_EmptyInput(t *testing.T) {
	cfg := &Config{}
	if err := cfg.PromptMissing(strings.NewReader(""), &strings.Builder{}); err == nil {
		t.Fatal("Expected an error when nothing is provided")
	}
}
