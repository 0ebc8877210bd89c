// Package config handles Hearth configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/hearth/config.yaml, /etc/hearth/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "hearth", "config.yaml"))
	}

	paths = append(paths, "/etc/hearth/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Hearth configuration.
type Config struct {
	Telegram      TelegramConfig      `yaml:"telegram"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Models        ModelsConfig        `yaml:"models"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Agent         AgentConfig         `yaml:"agent"`
	Triage        TriageConfig        `yaml:"triage"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Webhook       WebhookConfig       `yaml:"webhook"`
	DataDir       string              `yaml:"data_dir"`
	LogLevel      string              `yaml:"log_level"`
}

// TelegramConfig defines the chat transport binding.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// HomeAssistantConfig defines HA connection and file-access settings.
type HomeAssistantConfig struct {
	URL        string `yaml:"url"`
	Token      string `yaml:"token"`
	ConfigDir  string `yaml:"config_dir"`  // where automations.yaml etc. live
	RecorderDB string `yaml:"recorder_db"` // HA recorder SQLite database (read-only)
	// ValidateCommand is run after a config-file write; non-zero exit
	// triggers a rollback. Empty disables validation.
	ValidateCommand []string `yaml:"validate_command"`
	// SubscribeEvents enables the WebSocket state_changed subscription as a
	// second triage trigger source alongside the webhook.
	SubscribeEvents bool `yaml:"subscribe_events"`
}

// ModelsConfig maps each agent purpose to a model identifier, with
// ordered fallback lists tried when the primary model fails.
type ModelsConfig struct {
	Conversation string              `yaml:"conversation"`
	Triage       string              `yaml:"triage"`
	Briefing     string              `yaml:"briefing"`
	Delegate     string              `yaml:"delegate"`
	Proactive    string              `yaml:"proactive"`
	Fallbacks    map[string][]string `yaml:"fallbacks"` // purpose → models
}

// ProvidersConfig holds API credentials for the completion providers.
type ProvidersConfig struct {
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	OpenRouterAPIKey string `yaml:"openrouter_api_key"`
}

// AgentConfig tunes the tool-calling loop.
type AgentConfig struct {
	BotName         string `yaml:"bot_name"`
	Timezone        string `yaml:"timezone"`
	MaxHistory      int    `yaml:"max_history"`
	MaxRounds       int    `yaml:"max_rounds"`
	DelegateRounds  int    `yaml:"delegate_rounds"`
	SilenceSentinel string `yaml:"silence_sentinel"`
	// AskUserTimeout bounds how long the ask_user tool waits for a reply.
	AskUserTimeout time.Duration `yaml:"ask_user_timeout"`
}

// TriageConfig tunes the state-diff noise filter.
type TriageConfig struct {
	AbsThreshold   float64  `yaml:"abs_threshold"`
	PctThreshold   float64  `yaml:"pct_threshold"`
	WatchedDomains []string `yaml:"watched_domains"`
}

// ScheduleConfig defines the proactive jobs.
type ScheduleConfig struct {
	BriefingTime string        `yaml:"briefing_time"` // "HH:MM" local wall clock
	PollInterval time.Duration `yaml:"poll_interval"`
}

// WebhookConfig defines the HA event ingress listener.
type WebhookConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Load reads configuration from a YAML file. A .env file in the working
// directory is loaded first so ${VAR} references in the YAML resolve to
// secrets without requiring them in the process environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with the observed defaults filled in.
// Thresholds and the silence sentinel are policy knobs, not fixed law.
func Default() *Config {
	return &Config{
		HomeAssistant: HomeAssistantConfig{
			URL:             "http://localhost:8123",
			ConfigDir:       "/homeassistant",
			RecorderDB:      "/homeassistant/home-assistant_v2.db",
			ValidateCommand: []string{"ha", "core", "check"},
		},
		Models: ModelsConfig{
			Conversation: "anthropic/claude-haiku-4-5",
			Triage:       "openrouter/meta-llama/llama-3.2-3b-instruct:free",
			Briefing:     "anthropic/claude-haiku-4-5",
			Delegate:     "anthropic/claude-opus-4-6",
			Proactive:    "anthropic/claude-sonnet-4-6",
		},
		Agent: AgentConfig{
			BotName:         "Hearth",
			Timezone:        "UTC",
			MaxHistory:      20,
			MaxRounds:       5,
			DelegateRounds:  8,
			SilenceSentinel: "SILENT",
			AskUserTimeout:  5 * time.Minute,
		},
		Triage: TriageConfig{
			AbsThreshold:   2.0,
			PctThreshold:   0.05,
			WatchedDomains: []string{"sensor", "binary_sensor", "switch", "climate", "lock"},
		},
		Schedule: ScheduleConfig{
			BriefingTime: "07:30",
			PollInterval: 5 * time.Minute,
		},
		Webhook: WebhookConfig{
			Address: "127.0.0.1",
			Port:    8765,
		},
		DataDir:  "data",
		LogLevel: "info",
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Agent.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
