package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Export directories
	Sources SourceConfig

	// Remote instance and publication settings
	Mastodon MastodonConfig

	// Logging configuration
	Log LogConfig
}

// DatabaseConfig holds the ledger location
type DatabaseConfig struct {
	File string
}

// SourceConfig holds export directory locations
type SourceConfig struct {
	FacebookDir string
	MastodonDir string
}

// MastodonConfig holds instance credentials and publication settings
type MastodonConfig struct {
	Domain            string
	AccessToken       string
	RatelimitRetries  int
	TextSizeLimit     int
	MediaPollInterval time.Duration
	MediaPollRetries  int
	PushPrivate       bool
	DryRun            bool
	Retry             bool
	DateTag           bool
	FilterMentions    bool
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Minimum enforced floor for the status size limit; anything below it falls
// back to the default.
const (
	minTextSizeLimit     = 20
	defaultTextSizeLimit = 500
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			File: getEnv("DB_FILE", "./evacuator.db"),
		},
		Sources: SourceConfig{
			FacebookDir: getEnv("FB_POSTS_DIR", ""),
			MastodonDir: getEnv("MST_POSTS_DIR", ""),
		},
		Mastodon: MastodonConfig{
			Domain:            getEnv("MASTODON_DOMAIN", ""),
			AccessToken:       getEnv("MASTODON_CLIENT_ACCESS_TOKEN", ""),
			RatelimitRetries:  getIntEnv("MASTODON_RATELIMIT_RETRIES", 3),
			TextSizeLimit:     getIntEnv("MASTODON_TEXT_SIZE_LIMIT", defaultTextSizeLimit),
			MediaPollInterval: getDurationEnv("MASTODON_MEDIA_POLL_INTERVAL", 5*time.Second),
			MediaPollRetries:  getIntEnv("MASTODON_MEDIA_POLL_RETRIES", 12),
			PushPrivate:       getBoolEnv("MASTODON_PUSH_PRIVATE", true),
			DryRun:            getBoolEnv("DRY_RUN", false),
			Retry:             getBoolEnv("RETRY_PARTIAL", false),
			DateTag:           getBoolEnv("MASTODON_DATE_TAG", false),
			FilterMentions:    getBoolEnv("MST_FILTER_MENTIONS", true),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	// Legacy fallback: a ./posts directory next to the binary is taken as
	// the Facebook export when FB_POSTS_DIR is unset.
	if cfg.Sources.FacebookDir == "" {
		if _, err := os.Stat("./posts"); err == nil {
			cfg.Sources.FacebookDir = "./posts"
		}
	}

	if cfg.Mastodon.TextSizeLimit < minTextSizeLimit {
		cfg.Mastodon.TextSizeLimit = defaultTextSizeLimit
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.File == "" {
		return fmt.Errorf("DB_FILE is required")
	}
	if c.Mastodon.RatelimitRetries < 1 {
		return fmt.Errorf("MASTODON_RATELIMIT_RETRIES must be at least 1")
	}
	return nil
}

// PromptMissing asks on in for any credential still unset after Load. The
// publish and verify commands need both; import commands do not.
func (c *Config) PromptMissing(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	prompt := func(name string, dst *string) error {
		if *dst != "" {
			return nil
		}
		fmt.Fprintf(out, "Type %s: ", name)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("no %s provided", name)
		}
		*dst = strings.TrimSpace(line)
		if *dst == "" {
			return fmt.Errorf("no %s provided", name)
		}
		return nil
	}

	if err := prompt("mastodon domain", &c.Mastodon.Domain); err != nil {
		return err
	}
	return prompt("client access token", &c.Mastodon.AccessToken)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
