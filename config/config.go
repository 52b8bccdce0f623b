// Package config provides configuration management for the tvstream server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "TVSTREAM"

// Keys used in flags, environment variables and the config file.
const (
	KeyPort            = "port"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyPlaylistURL     = "playlist"
	KeyEPGURL          = "epg"
	KeyBaseURL         = "base"
	KeyDataDir         = "data-dir"
	KeyRefreshCron     = "refresh-cron"
	KeyFetchTimeout    = "fetch-timeout"
	KeyUserAgent       = "user-agent"
	KeyMaxUploadBytes  = "max-upload-bytes"
	KeyImportRateLimit = "import-rate-limit"
	KeyProbeCacheTTL   = "probe-cache-ttl"
	KeyBlockPrivate    = "block-private-imports"
)

var (
	// ErrInvalidPort is returned when port number is invalid.
	ErrInvalidPort = errors.New("invalid port number")
	// ErrInvalidLogLevel is returned when log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when log format is neither text nor json.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidRefreshCron is returned when the refresh schedule cannot be parsed.
	ErrInvalidRefreshCron = errors.New("invalid refresh cron expression")
	// ErrDataDirRequired is returned when no data directory is configured.
	ErrDataDirRequired = errors.New("data directory is required")
	// ErrFetchTimeoutPositive is returned when fetch timeout is not positive.
	ErrFetchTimeoutPositive = errors.New("fetch timeout must be positive")
	// ErrMaxUploadPositive is returned when the upload limit is not positive.
	ErrMaxUploadPositive = errors.New("max upload size must be positive")
	// ErrImportRateLimitPositive is returned when the import rate limit is not positive.
	ErrImportRateLimitPositive = errors.New("import rate limit must be positive")
	// ErrProbeCacheTTLPositive is returned when the quality level cache TTL is not positive.
	ErrProbeCacheTTLPositive = errors.New("probe cache TTL must be positive")
)

// Config holds the application configuration.
type Config struct {
	Port            int
	LogLevel        string
	LogFormat       string
	PlaylistURL     string
	EPGURL          string
	BaseURL         string
	DataDir         string
	RefreshCron     string
	FetchTimeout    time.Duration
	UserAgent       string
	MaxUploadBytes  int64
	ImportRateLimit int
	ProbeCacheTTL   time.Duration

	// BlockPrivateImports rejects URL imports that resolve to loopback,
	// private or link-local addresses.
	BlockPrivateImports bool
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyPlaylistURL, "")
	v.SetDefault(KeyEPGURL, "")
	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyDataDir, "./data")
	v.SetDefault(KeyRefreshCron, "@every 30m")
	v.SetDefault(KeyFetchTimeout, 30*time.Second)
	v.SetDefault(KeyUserAgent, "tvstream/1.0")
	v.SetDefault(KeyMaxUploadBytes, int64(20<<20))
	v.SetDefault(KeyImportRateLimit, 10)
	v.SetDefault(KeyProbeCacheTTL, 5*time.Minute)
	v.SetDefault(KeyBlockPrivate, false)
}

// Load reads the configuration from v, which merges flags, TVSTREAM_* environment
// variables and an optional tvstream.yaml, then validates it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("tvstream")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:            v.GetInt(KeyPort),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
		PlaylistURL:     v.GetString(KeyPlaylistURL),
		EPGURL:          v.GetString(KeyEPGURL),
		BaseURL:         v.GetString(KeyBaseURL),
		DataDir:         v.GetString(KeyDataDir),
		RefreshCron:     v.GetString(KeyRefreshCron),
		FetchTimeout:    v.GetDuration(KeyFetchTimeout),
		UserAgent:       v.GetString(KeyUserAgent),
		MaxUploadBytes:  v.GetInt64(KeyMaxUploadBytes),
		ImportRateLimit: v.GetInt(KeyImportRateLimit),
		ProbeCacheTTL:   v.GetDuration(KeyProbeCacheTTL),

		BlockPrivateImports: v.GetBool(KeyBlockPrivate),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.PlaylistURL != "" {
		if _, err := url.Parse(c.PlaylistURL); err != nil {
			return fmt.Errorf("invalid playlist URL: %w", err)
		}
	}

	if c.EPGURL != "" {
		if _, err := url.Parse(c.EPGURL); err != nil {
			return fmt.Errorf("invalid EPG URL: %w", err)
		}
	}

	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}

	if c.DataDir == "" {
		return ErrDataDirRequired
	}

	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidRefreshCron, c.RefreshCron, err)
	}

	if c.FetchTimeout <= 0 {
		return ErrFetchTimeoutPositive
	}

	if c.MaxUploadBytes <= 0 {
		return ErrMaxUploadPositive
	}

	if c.ImportRateLimit <= 0 {
		return ErrImportRateLimitPositive
	}

	if c.ProbeCacheTTL <= 0 {
		return ErrProbeCacheTTLPositive
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("%w: %s (must be debug, info, warn, or error)", ErrInvalidLogLevel, c.LogLevel)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: %s (must be text or json)", ErrInvalidLogFormat, c.LogFormat)
	}

	return nil
}
