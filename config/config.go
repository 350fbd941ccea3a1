// Package config loads server-wide configuration from the environment
// (all of it optional, each with a documented default). It generalizes the
// teacher's config/config.go (a struct of sub-configs plus a plain Load()
// that falls back to strconv-parsed os.Getenv reads) onto spf13/viper, the
// way IshaanNene-ScrapeGoat-And-ArchEnemy's internal/config/loader.go wires
// a Viper instance: SetDefault per key, AutomaticEnv with no prefix (the
// variable names below are already the wire contract), then Unmarshal into
// a plain struct so nothing downstream of config.Load ever imports viper
// directly. godotenv.Load is attempted first (ignored if no .env file is
// present) so local development can override the environment without
// exporting variables, mirroring other_examples/rerouter's startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root server configuration, assembled once at startup and
// passed by value/pointer into each component's constructor.
type Config struct {
	Server   ServerConfig
	Defaults DefaultsConfig
	Browser  BrowserConfig
	Pool     PoolConfig
	Batch    BatchConfig
	Cleanup  CleanupConfig
	Webhook  WebhookConfig
	Log      LogConfig
	Shutdown ShutdownConfig
}

// ServerConfig controls the HTTP bind address and API prefix.
type ServerConfig struct {
	ListenHost string // LISTEN_HOST, default "0.0.0.0"
	ListenPort int    // LISTEN_PORT, default 8080
	BasePath   string // BASE_PATH, default ""
}

// DefaultsConfig carries the server-wide scrape and fingerprint defaults
// applied whenever a ScrapeRequest leaves the corresponding field unset,
// except TaskTimeoutSecs, which is loaded but not applied to requests.
type DefaultsConfig struct {
	Mode                   string        // DEFAULT_MODE, default "static"
	TaskTimeoutSecs        int           // DEFAULT_TASK_TIMEOUT_SECS, default 30; not passed to the scrape engine
	FingerprintUserAgent   string        // DEFAULT_FINGERPRINT_USER_AGENT, default "auto"
	FingerprintLocale      string        // DEFAULT_FINGERPRINT_LOCALE, default "auto"
	FingerprintTimezoneID  string        // DEFAULT_FINGERPRINT_TIMEZONE_ID, default "" (no override)
	FingerprintGenerate    bool          // DEFAULT_FINGERPRINT_GENERATE, default true
	FingerprintRotateOnBot bool          // DEFAULT_FINGERPRINT_ROTATE_ON_ANTI_BOT, default true
	BlockTrackers          bool          // DEFAULT_PLAYWRIGHT_BLOCK_TRACKERS, default true
	BlockHeavyResources    bool          // DEFAULT_PLAYWRIGHT_BLOCK_HEAVY_RESOURCES, default true
	NavTimeout             time.Duration // derived from Browser.NavigationTimeoutSecs
}

// BrowserConfig controls the headless browser driver.
type BrowserConfig struct {
	Headless              bool   // PLAYWRIGHT_HEADLESS, default true
	NavigationTimeoutSecs int    // PLAYWRIGHT_NAVIGATION_TIMEOUT_SECS, default 15
	NoSandbox             bool   // PLAYWRIGHT_NO_SANDBOX, default false
	BrowserBin            string // PLAYWRIGHT_BROWSER_BIN, default ""
	MaxPages              int    // same cap as Pool.MaxBrowserConcurrency
}

// PoolConfig controls the two bounded-concurrency admission gates.
type PoolConfig struct {
	MaxConcurrency        int // MAX_CONCURRENCY, default 10
	MaxQueue              int // MAX_QUEUE, default 50
	MaxBrowserConcurrency int // MAX_BROWSER_CONCURRENCY, default 3
	MaxBrowserQueue       int // MAX_BROWSER_QUEUE, default 20
}

// BatchConfig controls the batch job manager.
type BatchConfig struct {
	Concurrency int // server-wide worker count per job, default 4
	MinDelayMs  int // DEFAULT_BATCH_MIN_DELAY_MS, default 200
	MaxDelayMs  int // DEFAULT_BATCH_MAX_DELAY_MS, default 1000
}

// CleanupConfig controls the TTL sweep scheduler.
type CleanupConfig struct {
	DataLifetime time.Duration // DATA_LIFETIME_MINS, default 60m
	Interval     time.Duration // CLEANUP_INTERVAL_MINS, default 10m
	MinInterval  time.Duration // throttle floor between triggered sweeps, default 1m
}

// WebhookConfig controls default webhook delivery behavior.
type WebhookConfig struct {
	TimeoutMs   int // WEBHOOK_TIMEOUT_MS, default 5000
	BackoffMs   int // DEFAULT_WEBHOOK_BACKOFF_MS, default 500
	MaxAttempts int // DEFAULT_WEBHOOK_MAX_ATTEMPTS, default 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // LOG_LEVEL, default "info"
	Format string // LOG_FORMAT, default "json"
}

// ShutdownConfig controls the graceful-shutdown deadline.
type ShutdownConfig struct {
	CloseTimeout time.Duration // APP_CLOSE_TIMEOUT_MS, default 10s
}

// Load reads configuration from a local .env file (if present), then the
// environment, then documented defaults, in that priority order (lowest to
// highest: defaults < .env < real environment, since a real environment
// variable always wins over one sourced from .env).
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	browserNavSecs := v.GetInt("PLAYWRIGHT_NAVIGATION_TIMEOUT_SECS")

	cfg := &Config{
		Server: ServerConfig{
			ListenHost: v.GetString("LISTEN_HOST"),
			ListenPort: v.GetInt("LISTEN_PORT"),
			BasePath:   v.GetString("BASE_PATH"),
		},
		Defaults: DefaultsConfig{
			Mode:                   v.GetString("DEFAULT_MODE"),
			TaskTimeoutSecs:        v.GetInt("DEFAULT_TASK_TIMEOUT_SECS"),
			FingerprintUserAgent:   v.GetString("DEFAULT_FINGERPRINT_USER_AGENT"),
			FingerprintLocale:      v.GetString("DEFAULT_FINGERPRINT_LOCALE"),
			FingerprintTimezoneID:  v.GetString("DEFAULT_FINGERPRINT_TIMEZONE_ID"),
			FingerprintGenerate:    v.GetBool("DEFAULT_FINGERPRINT_GENERATE"),
			FingerprintRotateOnBot: v.GetBool("DEFAULT_FINGERPRINT_ROTATE_ON_ANTI_BOT"),
			BlockTrackers:          v.GetBool("DEFAULT_PLAYWRIGHT_BLOCK_TRACKERS"),
			BlockHeavyResources:    v.GetBool("DEFAULT_PLAYWRIGHT_BLOCK_HEAVY_RESOURCES"),
			NavTimeout:             time.Duration(browserNavSecs) * time.Second,
		},
		Browser: BrowserConfig{
			Headless:              v.GetBool("PLAYWRIGHT_HEADLESS"),
			NavigationTimeoutSecs: browserNavSecs,
			NoSandbox:             v.GetBool("PLAYWRIGHT_NO_SANDBOX"),
			BrowserBin:            v.GetString("PLAYWRIGHT_BROWSER_BIN"),
			MaxPages:              v.GetInt("MAX_BROWSER_CONCURRENCY"),
		},
		Pool: PoolConfig{
			MaxConcurrency:        v.GetInt("MAX_CONCURRENCY"),
			MaxQueue:              v.GetInt("MAX_QUEUE"),
			MaxBrowserConcurrency: v.GetInt("MAX_BROWSER_CONCURRENCY"),
			MaxBrowserQueue:       v.GetInt("MAX_BROWSER_QUEUE"),
		},
		Batch: BatchConfig{
			Concurrency: v.GetInt("BATCH_CONCURRENCY"),
			MinDelayMs:  v.GetInt("DEFAULT_BATCH_MIN_DELAY_MS"),
			MaxDelayMs:  v.GetInt("DEFAULT_BATCH_MAX_DELAY_MS"),
		},
		Cleanup: CleanupConfig{
			DataLifetime: time.Duration(v.GetInt("DATA_LIFETIME_MINS")) * time.Minute,
			Interval:     time.Duration(v.GetInt("CLEANUP_INTERVAL_MINS")) * time.Minute,
			MinInterval:  time.Duration(v.GetInt("CLEANUP_MIN_INTERVAL_MINS")) * time.Minute,
		},
		Webhook: WebhookConfig{
			TimeoutMs:   v.GetInt("WEBHOOK_TIMEOUT_MS"),
			BackoffMs:   v.GetInt("DEFAULT_WEBHOOK_BACKOFF_MS"),
			MaxAttempts: v.GetInt("DEFAULT_WEBHOOK_MAX_ATTEMPTS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Shutdown: ShutdownConfig{
			CloseTimeout: time.Duration(v.GetInt("APP_CLOSE_TIMEOUT_MS")) * time.Millisecond,
		},
	}

	if err := validateRanges(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LISTEN_HOST", "0.0.0.0")
	v.SetDefault("LISTEN_PORT", 8080)
	v.SetDefault("BASE_PATH", "")

	v.SetDefault("DEFAULT_MODE", "static")
	v.SetDefault("DEFAULT_TASK_TIMEOUT_SECS", 30)
	v.SetDefault("DEFAULT_FINGERPRINT_USER_AGENT", "auto")
	v.SetDefault("DEFAULT_FINGERPRINT_LOCALE", "auto")
	v.SetDefault("DEFAULT_FINGERPRINT_TIMEZONE_ID", "")
	v.SetDefault("DEFAULT_FINGERPRINT_GENERATE", true)
	v.SetDefault("DEFAULT_FINGERPRINT_ROTATE_ON_ANTI_BOT", true)
	v.SetDefault("DEFAULT_PLAYWRIGHT_BLOCK_TRACKERS", true)
	v.SetDefault("DEFAULT_PLAYWRIGHT_BLOCK_HEAVY_RESOURCES", true)

	v.SetDefault("PLAYWRIGHT_HEADLESS", true)
	v.SetDefault("PLAYWRIGHT_NAVIGATION_TIMEOUT_SECS", 15)
	v.SetDefault("PLAYWRIGHT_NO_SANDBOX", false)
	v.SetDefault("PLAYWRIGHT_BROWSER_BIN", "")

	v.SetDefault("MAX_CONCURRENCY", 10)
	v.SetDefault("MAX_QUEUE", 50)
	v.SetDefault("MAX_BROWSER_CONCURRENCY", 3)
	v.SetDefault("MAX_BROWSER_QUEUE", 20)

	v.SetDefault("BATCH_CONCURRENCY", 4)
	v.SetDefault("DEFAULT_BATCH_MIN_DELAY_MS", 200)
	v.SetDefault("DEFAULT_BATCH_MAX_DELAY_MS", 1000)

	v.SetDefault("DATA_LIFETIME_MINS", 60)
	v.SetDefault("CLEANUP_INTERVAL_MINS", 10)
	v.SetDefault("CLEANUP_MIN_INTERVAL_MINS", 1)

	v.SetDefault("WEBHOOK_TIMEOUT_MS", 5000)
	v.SetDefault("DEFAULT_WEBHOOK_BACKOFF_MS", 500)
	v.SetDefault("DEFAULT_WEBHOOK_MAX_ATTEMPTS", 3)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("APP_CLOSE_TIMEOUT_MS", 10000)
}

// validateRanges catches configuration that would silently misbehave
// rather than fail fast (e.g. a batch pacing window with max < min).
func validateRanges(cfg *Config) error {
	if cfg.Batch.MaxDelayMs < cfg.Batch.MinDelayMs {
		return fmt.Errorf("DEFAULT_BATCH_MAX_DELAY_MS (%d) must be >= DEFAULT_BATCH_MIN_DELAY_MS (%d)",
			cfg.Batch.MaxDelayMs, cfg.Batch.MinDelayMs)
	}
	if cfg.Pool.MaxConcurrency < 1 || cfg.Pool.MaxBrowserConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY and MAX_BROWSER_CONCURRENCY must be >= 1")
	}
	return nil
}
