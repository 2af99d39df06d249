package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Generation providers
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Source kinds
const (
	SourceRSS     = "rss"
	SourceHTML    = "html"
	SourceBrowser = "browser"
)

// Config holds all application configuration
type Config struct {
	Version    int              `toml:"version"`
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
	RateLimit  RateLimitConfig  `toml:"ratelimit"`
	Scraping   ScrapingConfig   `toml:"scraping"`
	Generation GenerationConfig `toml:"generation"`
	Store      StoreConfig      `toml:"store"`
}

type ServerConfig struct {
	Addr                string `toml:"addr"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type RateLimitConfig struct {
	MaxRequests   int    `toml:"max_requests"`
	WindowSeconds int    `toml:"window_seconds"`
	SweepSchedule string `toml:"sweep_schedule"`
}

// SourceEndpoint is one place posts can be fetched from.
// URL may contain {handle}, which is replaced with the normalized handle.
type SourceEndpoint struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
	Kind string `toml:"kind"`
}

type ScrapingConfig struct {
	Endpoints      []SourceEndpoint `toml:"endpoints"`
	TimeoutSeconds int              `toml:"timeout_seconds"`
	MinItems       int              `toml:"min_items"`
	MaxItems       int              `toml:"max_items"`
	MinChars       int              `toml:"min_chars"`
	UserAgent      string           `toml:"user_agent"`
	Headless       bool             `toml:"headless"`
	CookiesPath    string           `toml:"cookies_path"`
}

type GenerationConfig struct {
	Provider      string   `toml:"provider"`
	APIKey        string   `toml:"api_key"`
	BaseURL       string   `toml:"base_url"`
	APIVersions   []string `toml:"api_versions"`
	Models        []string `toml:"models"`
	TimeoutMs     int      `toml:"timeout_ms"`
	MaxAttempts   int      `toml:"max_attempts"`
	RetryDelayMs  int      `toml:"retry_delay_ms"`
	Temperature   float64  `toml:"temperature"`
	TopP          float64  `toml:"top_p"`
	MaxTokens     int      `toml:"max_output_tokens"`
	ChatTimeoutMs int      `toml:"chat_timeout_ms"`
}

type StoreConfig struct {
	// Path of the SQLite exchange log. ":memory:" keeps it in process.
	Path          string `toml:"path"`
	RetainMinutes int    `toml:"retain_minutes"`
	PruneSchedule string `toml:"prune_schedule"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:                ":8080",
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 390,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   10,
			WindowSeconds: 60,
			SweepSchedule: "@every 5m",
		},
		Scraping: ScrapingConfig{
			Endpoints: []SourceEndpoint{
				{Name: "privacydev", URL: "https://nitter.privacydev.net/{handle}/rss", Kind: SourceRSS},
				{Name: "poast", URL: "https://nitter.poast.org/{handle}/rss", Kind: SourceRSS},
				{Name: "lucabased", URL: "https://nitter.lucabased.xyz/{handle}/rss", Kind: SourceRSS},
				{Name: "moomoo", URL: "https://nitter.moomoo.me/{handle}/rss", Kind: SourceRSS},
				{Name: "nitter.net", URL: "https://nitter.net/{handle}/rss", Kind: SourceRSS},
			},
			TimeoutSeconds: 10,
			MinItems:       3,
			MaxItems:       10,
			MinChars:       10,
			UserAgent:      "Mozilla/5.0 (compatible; XPersonaBlueprint/1.0)",
			Headless:       true,
		},
		Generation: GenerationConfig{
			Provider:      ProviderGemini,
			BaseURL:       "https://generativelanguage.googleapis.com",
			APIVersions:   []string{"v1", "v1beta"},
			Models:        []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro"},
			TimeoutMs:     20000,
			MaxAttempts:   2,
			RetryDelayMs:  2000,
			Temperature:   0.7,
			TopP:          0.95,
			MaxTokens:     2048,
			ChatTimeoutMs: 20000,
		},
		Store: StoreConfig{
			Path:          ":memory:",
			RetainMinutes: 60,
			PruneSchedule: "@every 10m",
		},
	}
}

// Timeout returns the per-endpoint fetch timeout
func (c ScrapingConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Attempts returns how many times a blueprint generation is tried
func (c GenerationConfig) Attempts() int {
	if c.MaxAttempts <= 0 {
		return 2
	}
	return c.MaxAttempts
}

// AttemptTimeout returns the timeout of one version/model combination
func (c GenerationConfig) AttemptTimeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// RetryDelay returns the pause between generation attempts
func (c GenerationConfig) RetryDelay() time.Duration {
	if c.RetryDelayMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// ChatTimeout returns the timeout of one chat combination
func (c GenerationConfig) ChatTimeout() time.Duration {
	if c.ChatTimeoutMs <= 0 {
		return c.AttemptTimeout()
	}
	return time.Duration(c.ChatTimeoutMs) * time.Millisecond
}

// Window returns the rate-limit window length
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// RequestBudget is the longest an analyze request can run when every
// source and every generation combination times out.
func (c *Config) RequestBudget() time.Duration {
	fetch := time.Duration(len(c.Scraping.Endpoints)) * c.Scraping.Timeout()

	combos := len(c.Generation.Models)
	if c.Generation.Provider != ProviderAnthropic {
		combos *= len(c.Generation.APIVersions)
	}
	attempts := c.Generation.Attempts()
	generate := time.Duration(attempts*combos)*c.Generation.AttemptTimeout() +
		time.Duration(attempts-1)*c.Generation.RetryDelay()

	return fetch + generate
}

// writeMargin leaves room to encode the response after the budget runs out
const writeMargin = 10 * time.Second

// WriteTimeout returns the configured server write timeout, raised to the
// request budget plus a margin when the configured value is shorter.
func (c *Config) WriteTimeout() time.Duration {
	configured := time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
	return max(configured, c.RequestBudget()+writeMargin)
}

// ApplyEnv loads an optional .env file and overlays secrets from the
// environment. Environment values win over the config file.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	switch c.Generation.Provider {
	case ProviderAnthropic:
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			c.Generation.APIKey = key
		}
	default:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.Generation.APIKey = key
		}
	}
	if addr := os.Getenv("XBLUEPRINT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("XBLUEPRINT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "xblueprint"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path. Keys missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
