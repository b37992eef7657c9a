package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "channels": {"telegram": {"enabled": true, "token": "tok"}},
	  "openai": {"chat_model": "gpt-4o-mini", "transcribe_model": "whisper-1"},
	  "search": {"api_key": "serp", "result_limit": 3, "marketplace": "flipkart.com"},
	  "ledger": {"path": "data/walle.db"},
	  "automation": {"timeout_seconds": 45, "headless": true},
	  "assistant": {"history_size": 10},
	  "gateway": {"host": "0.0.0.0", "port": 18791},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("WALLE_CONFIG", path)
	unsetCredentialEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Channels.Telegram.Token != "tok" {
		t.Fatalf("telegram.token = %q, want %q", cfg.Channels.Telegram.Token, "tok")
	}
	if cfg.Search.ResultLimit != 3 {
		t.Fatalf("search.result_limit = %d, want 3", cfg.Search.ResultLimit)
	}
	if cfg.Automation.TimeoutSeconds != 45 {
		t.Fatalf("automation.timeout_seconds = %d, want 45", cfg.Automation.TimeoutSeconds)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "channels": {"telegram": {"enabled": true, "token": "file-token"}},
	  "search": {"api_key": "file-key"},
	  "ledger": {"path": "file.db"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("WALLE_CONFIG", path)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_ALLOW_FROM", "1, 2 ,")
	t.Setenv("SERPAPI_KEY", "env-key")
	t.Setenv("WALLE_DB_PATH", "env.db")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Channels.Telegram.Token != "env-token" {
		t.Fatalf("telegram.token = %q, want env override", cfg.Channels.Telegram.Token)
	}
	if len(cfg.Channels.Telegram.AllowFrom) != 2 {
		t.Fatalf("allow_from = %v, want 2 entries", cfg.Channels.Telegram.AllowFrom)
	}
	if cfg.Search.APIKey != "env-key" {
		t.Fatalf("search.api_key = %q, want env override", cfg.Search.APIKey)
	}
	if cfg.Ledger.Path != "env.db" {
		t.Fatalf("ledger.path = %q, want env override", cfg.Ledger.Path)
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv("WALLE_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	cfg := &Config{}
	cfg.Channels.Telegram.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error without credentials")
	}

	cfg.Channels.Telegram.Token = "tok"
	cfg.Search.APIKey = "serp"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func unsetCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envTelegramBotToken, envTelegramAllowFrom, envSerpAPIKey, envLedgerPath} {
		t.Setenv(key, "")
	}
}
