package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsHaveTwoSources(t *testing.T) {
	cfg := defaultConfig()
	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 default sources, got %d", len(cfg.Sources))
	}
	for _, src := range cfg.Sources {
		if len(src.TopicPatterns) == 0 || len(src.ListingURLs) == 0 || src.BaseURL == "" {
			t.Fatalf("incomplete default source: %+v", src)
		}
	}
	if cfg.Extract.MaxPages != 7 {
		t.Fatalf("expected 7 extraction pages, got %d", cfg.Extract.MaxPages)
	}
	if cfg.Analysis.MaxInputChars != 12000 {
		t.Fatalf("expected 12000 input chars, got %d", cfg.Analysis.MaxInputChars)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte(`
logging:
  level: debug
run:
  workers: 3
  timeout: 2m
dedup:
  path: /tmp/seen.json
messaging:
  botToken: from-file
sources:
  - name: test
    displayName: Тест
    baseUrl: https://example.org
    listingUrls: ["https://example.org/list"]
    topicPatterns: ["Обзор"]
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MESSAGING_TOKEN", "from-env")
	t.Setenv("MESSAGING_CHANNEL_ID", "123")
	t.Setenv("ANALYSIS_API_KEY", "sk-test")

	cfg := Load(path)

	if cfg.Logging.Level != "debug" {
		t.Fatalf("file level not applied: %s", cfg.Logging.Level)
	}
	if cfg.Run.Workers != 3 {
		t.Fatalf("file workers not applied: %d", cfg.Run.Workers)
	}
	if cfg.Dedup.Path != "/tmp/seen.json" {
		t.Fatalf("file dedup path not applied: %s", cfg.Dedup.Path)
	}
	// Environment wins over the file for secrets.
	if cfg.Messaging.BotToken != "from-env" {
		t.Fatalf("env token must override file, got %s", cfg.Messaging.BotToken)
	}
	if cfg.Messaging.ChatID != "123" {
		t.Fatalf("env chat id not applied: %s", cfg.Messaging.ChatID)
	}
	if cfg.Analysis.APIKey != "sk-test" {
		t.Fatalf("env api key not applied: %s", cfg.Analysis.APIKey)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "test" {
		t.Fatalf("file sources not applied: %+v", cfg.Sources)
	}
	// Unset sections keep defaults.
	if cfg.Analysis.Endpoint == "" || cfg.Extract.MaxPages != 7 {
		t.Fatal("defaults must survive a partial file")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if len(cfg.Sources) != 2 {
		t.Fatalf("expected default sources, got %d", len(cfg.Sources))
	}
}

func TestRunTimeoutDuration(t *testing.T) {
	t.Parallel()

	if d := (RunConfig{Timeout: "90s"}).TimeoutDuration(); d.Seconds() != 90 {
		t.Fatalf("expected 90s, got %v", d)
	}
	if d := (RunConfig{Timeout: "nonsense"}).TimeoutDuration(); d.Minutes() != 10 {
		t.Fatalf("expected 10m fallback, got %v", d)
	}
}

func TestMessagingEnabled(t *testing.T) {
	t.Parallel()

	if (MessagingConfig{BotToken: "t"}).Enabled() {
		t.Fatal("token alone must not enable messaging")
	}
	if !(MessagingConfig{BotToken: "t", ChatID: "c"}).Enabled() {
		t.Fatal("token and chat id must enable messaging")
	}
}
