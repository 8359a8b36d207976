// ABOUTME: Configuration loading and parsing for muse-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete muse-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Providers ProvidersConfig `yaml:"providers"`
	Live      LiveConfig      `yaml:"live"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// AuthConfig holds signature authentication configuration.
// Clients sign "access_key:timestamp:nonce" with HMAC-SHA256 using the
// shared secret and pass the four values as query parameters.
type AuthConfig struct {
	AccessKey       string        `yaml:"access_key"`
	SecretKey       string        `yaml:"secret_key"`
	SignatureTTL    time.Duration `yaml:"-"`
	ReplayCacheSize int           `yaml:"replay_cache_size"`

	// Raw string value for YAML unmarshaling
	SignatureTTLRaw string `yaml:"signature_ttl"`
}

// ProvidersConfig holds configuration for the generation capabilities.
// A capability whose section is absent is reported as disabled rather
// than failing startup.
type ProvidersConfig struct {
	OpenAI *OpenAIConfig `yaml:"openai"`
	Music  *MusicConfig  `yaml:"music"`
	Video  *VideoConfig  `yaml:"video"`
	Intent IntentConfig  `yaml:"intent"`
}

// OpenAIConfig holds the OpenAI-compatible provider configuration used
// by the conversation and image capabilities and the intent classifier.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ChatModel  string `yaml:"chat_model"`
	ImageModel string `yaml:"image_model"`
	Preamble   string `yaml:"preamble"`
}

// MusicConfig holds the audio generation endpoint configuration
type MusicConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Voice    string `yaml:"voice"`
}

// VideoConfig holds the custom video generation endpoint configuration
type VideoConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// IntentConfig selects the intent classification strategy.
// Provider "openai" routes through the LLM classifier with keyword
// fallback; "keyword" (or empty) uses the keyword classifier alone.
type IntentConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// LiveConfig holds the external live-feed listener configuration
type LiveConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Host              string        `yaml:"host"`
	AppID             int64         `yaml:"app_id"`
	AccessKey         string        `yaml:"access_key"`
	AccessSecret      string        `yaml:"access_secret"`
	IDCode            string        `yaml:"id_code"`
	HeartbeatInterval time.Duration `yaml:"-"`

	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
}

// ArtifactsConfig holds generated-artifact storage configuration
type ArtifactsConfig struct {
	Dir       string `yaml:"dir"`
	IndexPath string `yaml:"index_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in defaults for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Auth.SignatureTTL == 0 {
		cfg.Auth.SignatureTTL = 60 * time.Second
	}
	if cfg.Auth.ReplayCacheSize == 0 {
		cfg.Auth.ReplayCacheSize = 100_000
	}
	if cfg.Live.HeartbeatInterval == 0 {
		cfg.Live.HeartbeatInterval = 20 * time.Second
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = "artifacts"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Auth.AccessKey == "" {
		return fmt.Errorf("auth.access_key is required")
	}
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key is required")
	}

	if c.Live.Enabled {
		if c.Live.AccessKey == "" || c.Live.AccessSecret == "" {
			return fmt.Errorf("live.access_key and live.access_secret are required when live is enabled")
		}
		if c.Live.IDCode == "" {
			return fmt.Errorf("live.id_code is required when live is enabled")
		}
	}

	switch c.Providers.Intent.Provider {
	case "", "keyword", "openai":
	default:
		return fmt.Errorf("providers.intent.provider must be \"openai\" or \"keyword\", got %q", c.Providers.Intent.Provider)
	}

	if c.Providers.Intent.Provider == "openai" && c.Providers.OpenAI == nil {
		return fmt.Errorf("providers.openai is required when intent provider is \"openai\"")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.SignatureTTLRaw != "" {
		cfg.Auth.SignatureTTL, err = time.ParseDuration(cfg.Auth.SignatureTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing signature_ttl %q: %w", cfg.Auth.SignatureTTLRaw, err)
		}
	}

	if cfg.Live.HeartbeatIntervalRaw != "" {
		cfg.Live.HeartbeatInterval, err = time.ParseDuration(cfg.Live.HeartbeatIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_interval %q: %w", cfg.Live.HeartbeatIntervalRaw, err)
		}
	}

	return nil
}
