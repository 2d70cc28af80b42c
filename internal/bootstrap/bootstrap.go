// Package bootstrap provides dependency initialization for the Framecast API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/framecast-api/internal/analysis"
	"github.com/maauso/framecast-api/internal/config"
	"github.com/maauso/framecast-api/internal/inference"
	"github.com/maauso/framecast-api/internal/media"
	"github.com/maauso/framecast-api/internal/payload"
	"github.com/maauso/framecast-api/internal/storage"
	"github.com/maauso/framecast-api/internal/tracing"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	AnalysisService *analysis.Service
	// Shutdown flushes and stops background exporters.
	Shutdown func(context.Context) error
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	shutdown, err := initTracing(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize Gemini client
	client, err := inference.NewGeminiClient(ctx, cfg.GeminiAPIKey,
		inference.WithModel(cfg.GeminiModel),
		inference.WithBaseURL(cfg.GeminiBaseURL),
		inference.WithFraming(cfg.AnalysisFraming),
		inference.WithTimeout(cfg.DispatchTimeout()),
		inference.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	logger.Info("using Gemini model", slog.String("model", client.Model()))

	// Initialize frame extraction
	extractor := media.NewFrameExtractor(
		media.NewFFmpegProcessor(cfg.FFmpegPath),
		media.WithFormat(cfg.FrameFormat),
		media.WithConcurrencyLimit(cfg.MaxConcurrentCaptures),
		media.WithLogger(logger),
	)

	svc := analysis.NewService(
		extractor,
		payload.NewEncoder(store),
		client,
		store,
		logger,
	)

	return &Dependencies{
		AnalysisService: svc,
		Shutdown:        shutdown,
	}, nil
}

// initTracing installs the OTLP exporter when an endpoint is configured.
func initTracing(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func(context.Context) error, error) {
	if !cfg.TracingEnabled() {
		return func(context.Context) error { return nil }, nil
	}

	tp, err := tracing.InitTracer(ctx, cfg.OTLPTracesEndpoint)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	logger.Info("tracing configured",
		slog.String("endpoint", cfg.OTLPTracesEndpoint),
	)
	return tp.Shutdown, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 sources enabled",
			slog.String("region", cfg.S3Region),
			slog.String("temp_dir", cfg.TempDir),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
