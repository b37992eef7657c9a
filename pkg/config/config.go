package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envSerpAPIKey        = "SERPAPI_KEY"
	envLedgerPath        = "WALLE_DB_PATH"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Channels   ChannelsConfig   `json:"channels"`
	OpenAI     OpenAIConfig     `json:"openai"`
	Search     SearchConfig     `json:"search"`
	Ledger     LedgerConfig     `json:"ledger"`
	Automation AutomationConfig `json:"automation"`
	Assistant  AssistantConfig  `json:"assistant"`
	Gateway    GatewayConfig    `json:"gateway"`
	Logging    LoggingConfig    `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allow_from"`
}

// OpenAIConfig configures the shared OpenAI client used for chat
// generation and voice transcription.
type OpenAIConfig struct {
	APIKeyEnv             string `json:"api_key_env"`
	BaseURL               string `json:"base_url"`
	ChatModel             string `json:"chat_model"`
	TranscribeModel       string `json:"transcribe_model"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// SearchConfig configures the SerpAPI shopping-search provider.
type SearchConfig struct {
	APIKey                string `json:"api_key"`
	BaseURL               string `json:"base_url"`
	ResultLimit           int    `json:"result_limit"`
	Marketplace           string `json:"marketplace"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// LedgerConfig configures order-query persistence.
type LedgerConfig struct {
	Path string `json:"path"`
}

// AutomationConfig configures the headless-browser purchase flow.
type AutomationConfig struct {
	TimeoutSeconds int  `json:"timeout_seconds"`
	Headless       bool `json:"headless"`
}

// AssistantConfig tunes routing behavior: keyword lists for intent rules,
// greeting triggers, and conversation memory depth.
type AssistantConfig struct {
	HistorySize      int      `json:"history_size"`
	Persona          string   `json:"persona,omitempty"`
	GreetingPhrases  []string `json:"greeting_phrases,omitempty"`
	ShoppingKeywords []string `json:"shopping_keywords,omitempty"`
	OrderKeywords    []string `json:"order_keywords,omitempty"`
}

// GatewayConfig configures HTTP status server bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// LoadConfig resolves config.json, unmarshals it, and applies environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// Validate reports missing required credentials as a single startup error.
func (c *Config) Validate() error {
	var missing []string

	if c.Channels.Telegram.Enabled && strings.TrimSpace(c.Channels.Telegram.Token) == "" {
		missing = append(missing, "channels.telegram.token (or "+envTelegramBotToken+")")
	}
	if strings.TrimSpace(c.Search.APIKey) == "" {
		missing = append(missing, "search.api_key (or "+envSerpAPIKey+")")
	}

	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}

	return nil
}

// applyEnvOverrides injects credential and path env settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	if key := strings.TrimSpace(os.Getenv(envSerpAPIKey)); key != "" {
		cfg.Search.APIKey = key
	}

	if path := strings.TrimSpace(os.Getenv(envLedgerPath)); path != "" {
		cfg.Ledger.Path = path
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is WALLE_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("WALLE_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("WALLE_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
