// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrGeminiAPIKeyRequired is returned when GEMINI_API_KEY is not set.
	ErrGeminiAPIKeyRequired = errors.New("config: GEMINI_API_KEY is required")
	// ErrInvalidFrameFormat is returned when FRAME_FORMAT is neither jpg nor png.
	ErrInvalidFrameFormat = errors.New("config: FRAME_FORMAT must be jpg or png")
	// ErrInvalidLogFormat is returned when LOG_FORMAT is not json, text or tint.
	ErrInvalidLogFormat = errors.New("config: LOG_FORMAT must be json, text or tint")
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidDispatchTimeout is returned when DISPATCH_TIMEOUT_SEC is not positive.
	ErrInvalidDispatchTimeout = errors.New("config: DISPATCH_TIMEOUT_SEC must be positive")
	// ErrInvalidConcurrency is returned when MAX_CONCURRENT_CAPTURES is negative.
	ErrInvalidConcurrency = errors.New("config: MAX_CONCURRENT_CAPTURES must not be negative")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Gemini settings
	GeminiAPIKey       string `env:"GEMINI_API_KEY, required" json:"-"` // Masked in JSON
	GeminiModel        string `env:"GEMINI_MODEL, default=gemini-1.5-flash" json:"gemini_model"`
	GeminiBaseURL      string `env:"GEMINI_BASE_URL" json:"gemini_base_url,omitempty"`
	AnalysisFraming    string `env:"ANALYSIS_FRAMING" json:"analysis_framing,omitempty"`
	DispatchTimeoutSec int    `env:"DISPATCH_TIMEOUT_SEC, default=120" json:"dispatch_timeout_sec"`

	// Frame capture settings
	TempDir               string `env:"TEMP_DIR, default=/tmp/framecast" json:"temp_dir"`
	FFmpegPath            string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FrameFormat           string `env:"FRAME_FORMAT, default=jpg" json:"frame_format"`
	MaxConcurrentCaptures int    `env:"MAX_CONCURRENT_CAPTURES, default=0" json:"max_concurrent_captures"`

	// Optional S3 settings for s3:// video sources
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Tracing
	OTLPTracesEndpoint string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT" json:"otlp_traces_endpoint,omitempty"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json", "text" or "tint"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Region != ""
}

// TracingEnabled returns true if an OTLP traces endpoint is configured.
func (c *Config) TracingEnabled() bool {
	return c.OTLPTracesEndpoint != ""
}

// DispatchTimeout returns the model call timeout.
func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSec) * time.Second
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set or values are invalid.
func Load() (*Config, error) {
	return load(context.Background(), envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "GEMINI_API_KEY") {
			return nil, ErrGeminiAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and that
// enumerated values are known.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return ErrGeminiAPIKeyRequired
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Port)
	}
	if c.DispatchTimeoutSec <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDispatchTimeout, c.DispatchTimeoutSec)
	}
	if c.MaxConcurrentCaptures < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, c.MaxConcurrentCaptures)
	}
	switch strings.ToLower(c.FrameFormat) {
	case "jpg", "png":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidFrameFormat, c.FrameFormat)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text", "tint":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogFormat, c.LogFormat)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// "json" suits production, "tint" gives colored output for local
// development, and anything else falls back to plain text.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stdout)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	switch strings.ToLower(c.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	case "tint":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, GeminiModel: %s, GeminiBaseURL: %s, DispatchTimeoutSec: %d, TempDir: %s, FFmpegPath: %s, FrameFormat: %s, MaxConcurrentCaptures: %d, S3Region: %s, S3Endpoint: %s, OTLPTracesEndpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.GeminiModel,
		c.GeminiBaseURL,
		c.DispatchTimeoutSec,
		c.TempDir,
		c.FFmpegPath,
		c.FrameFormat,
		c.MaxConcurrentCaptures,
		c.S3Region,
		c.S3Endpoint,
		c.OTLPTracesEndpoint,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
