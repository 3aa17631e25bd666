package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full gateway configuration loaded from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Providers ProvidersConfig `yaml:"providers"`
	Speech    SpeechConfig    `yaml:"speech"`
	Channels  ChannelsConfig  `yaml:"channels"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RedisConfig holds the durable backing connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SessionConfig holds session lifecycle settings
type SessionConfig struct {
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	RejectGraceSeconds  int    `yaml:"reject_grace_seconds"`
	SweepIntervalSecs   int    `yaml:"sweep_interval_seconds"`
	MaxInputLength      int    `yaml:"max_input_length"`
	DefaultMemorySize   int    `yaml:"default_memory_size"`
	DefaultMaxTokens    int    `yaml:"default_max_tokens"`
	DefaultSystemPrompt string `yaml:"default_system_prompt"`
	DefaultVoice        string `yaml:"default_voice"`
}

// RateLimitConfig holds sliding-window admission settings
type RateLimitConfig struct {
	MaxRequests   int `yaml:"max_requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

// ProvidersConfig holds the generation provider settings
type ProvidersConfig struct {
	Primary   string         `yaml:"primary"`
	Secondary string         `yaml:"secondary"`
	OpenAI    ProviderConfig `yaml:"openai"`
	Mistral   ProviderConfig `yaml:"mistral"`
}

// ProviderConfig holds one generation provider's settings
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

// SpeechConfig holds speech synthesis and transcription settings
type SpeechConfig struct {
	Synthesis     SynthesisConfig     `yaml:"synthesis"`
	Transcription TranscriptionConfig `yaml:"transcription"`
}

// SynthesisConfig holds text-to-speech settings
type SynthesisConfig struct {
	APIKey  string `yaml:"api_key"`
	ModelID string `yaml:"model_id"`
	Voice   string `yaml:"voice"`
}

// TranscriptionConfig holds speech-to-text settings
type TranscriptionConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

// ChannelsConfig holds per-transport settings
type ChannelsConfig struct {
	Webchat  WebchatConfig  `yaml:"webchat"`
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
}

// WebchatConfig holds the websocket transport settings
type WebchatConfig struct {
	Port int `yaml:"port"`
}

// TelegramConfig holds the Telegram bot settings
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// DiscordConfig holds the Discord bot settings
type DiscordConfig struct {
	Token string `yaml:"token"`
}

// Load reads and parses the config file, applies defaults and
// environment-variable credential fallbacks
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 18700
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Session.TimeoutSeconds == 0 {
		c.Session.TimeoutSeconds = 3600
	}
	if c.Session.RejectGraceSeconds == 0 {
		c.Session.RejectGraceSeconds = 5
	}
	if c.Session.SweepIntervalSecs == 0 {
		c.Session.SweepIntervalSecs = 60
	}
	if c.Session.MaxInputLength == 0 {
		c.Session.MaxInputLength = 4000
	}
	if c.Session.DefaultMemorySize == 0 {
		c.Session.DefaultMemorySize = 20
	}
	if c.Session.DefaultMaxTokens == 0 {
		c.Session.DefaultMaxTokens = 1000
	}
	if c.Session.DefaultSystemPrompt == "" {
		c.Session.DefaultSystemPrompt = "You are a helpful assistant."
	}
	if c.Session.DefaultVoice == "" {
		c.Session.DefaultVoice = "nova"
	}
	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = 100
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.Providers.Primary == "" {
		c.Providers.Primary = "openai"
	}
	if c.Providers.OpenAI.BaseURL == "" {
		c.Providers.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.Providers.OpenAI.Model == "" {
		c.Providers.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Providers.Mistral.BaseURL == "" {
		c.Providers.Mistral.BaseURL = "https://api.mistral.ai/v1"
	}
	if c.Providers.Mistral.Model == "" {
		c.Providers.Mistral.Model = "mistral-small-latest"
	}
	if c.Speech.Transcription.BaseURL == "" {
		c.Speech.Transcription.BaseURL = "https://api.openai.com/v1"
	}
	if c.Speech.Transcription.Model == "" {
		c.Speech.Transcription.Model = "whisper-1"
	}
}

func (c *Config) applyEnvOverrides() {
	if c.Providers.OpenAI.APIKey == "" {
		c.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Providers.Mistral.APIKey == "" {
		c.Providers.Mistral.APIKey = os.Getenv("MISTRAL_API_KEY")
	}
	if c.Speech.Synthesis.APIKey == "" {
		c.Speech.Synthesis.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if c.Speech.Transcription.APIKey == "" {
		c.Speech.Transcription.APIKey = c.Providers.OpenAI.APIKey
	}
	if c.Channels.Telegram.Token == "" {
		c.Channels.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if c.Channels.Discord.Token == "" {
		c.Channels.Discord.Token = os.Getenv("DISCORD_BOT_TOKEN")
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("rate_limit.max_requests must be positive, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("rate_limit.window_seconds must be positive, got %d", c.RateLimit.WindowSeconds)
	}
	if c.Session.TimeoutSeconds < 1 {
		return fmt.Errorf("session.timeout_seconds must be positive, got %d", c.Session.TimeoutSeconds)
	}
	if c.Session.DefaultMemorySize < 1 || c.Session.DefaultMemorySize > 100 {
		return fmt.Errorf("session.default_memory_size must be in [1,100], got %d", c.Session.DefaultMemorySize)
	}
	if c.Session.DefaultMaxTokens < 100 || c.Session.DefaultMaxTokens > 4000 {
		return fmt.Errorf("session.default_max_tokens must be in [100,4000], got %d", c.Session.DefaultMaxTokens)
	}
	switch c.Providers.Primary {
	case "openai", "mistral":
	default:
		return fmt.Errorf("unknown primary provider: %s", c.Providers.Primary)
	}
	if c.Providers.Secondary != "" {
		switch c.Providers.Secondary {
		case "openai", "mistral":
		default:
			return fmt.Errorf("unknown secondary provider: %s", c.Providers.Secondary)
		}
		if strings.EqualFold(c.Providers.Secondary, c.Providers.Primary) {
			return fmt.Errorf("secondary provider must differ from primary")
		}
	}
	return nil
}

// SessionTimeout returns the session timeout as a duration
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutSeconds) * time.Second
}

// RejectGrace returns the grace delay before a rejected session is deleted
func (c *Config) RejectGrace() time.Duration {
	return time.Duration(c.Session.RejectGraceSeconds) * time.Second
}

// SweepInterval returns the periodic sweep interval
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalSecs) * time.Second
}

// RateLimitWindow returns the sliding window duration
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
