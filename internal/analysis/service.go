// Package analysis orchestrates a video analysis run: it validates the
// request, captures the requested frames into a private scope, encodes them,
// asks the model about them, and always releases the scope afterwards.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/maauso/framecast-api/internal/analysis/id"
	"github.com/maauso/framecast-api/internal/inference"
	"github.com/maauso/framecast-api/internal/media"
	"github.com/maauso/framecast-api/internal/metrics"
	"github.com/maauso/framecast-api/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/maauso/framecast-api/internal/analysis"

// FrameExtractor captures frames of a video into a directory.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, source, dir string, timestamps []float64) ([]media.Frame, error)
}

// Encoder converts captured frames into model parts, in request order.
type Encoder interface {
	EncodeAll(ctx context.Context, frames []media.Frame) ([]inference.Part, error)
}

// Result is the answer to a successful analysis.
type Result struct {
	RunID string
	// Text is the model's answer.
	Text string
	// Raw is set instead of Text when the model returned no text.
	Raw        any
	FrameCount int
}

// Service runs analyses. It is safe for concurrent use; every run gets its
// own scope.
type Service struct {
	extractor FrameExtractor
	encoder   Encoder
	analyzer  inference.Analyzer
	storage   storage.Storage
	logger    *slog.Logger
	tracer    trace.Tracer
	newID     func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithIDGenerator replaces the run ID generator.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService creates a new analysis Service.
func NewService(
	extractor FrameExtractor,
	encoder Encoder,
	analyzer inference.Analyzer,
	store storage.Storage,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		extractor: extractor,
		encoder:   encoder,
		analyzer:  analyzer,
		storage:   store,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		newID:     id.Generate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one analysis. A *ValidationError is returned as is; every
// other failure wraps ErrAnalysisFailed together with its cause.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	run := NewRun(s.newID())
	logger := s.logger.With(slog.String("run_id", run.ID))
	attrs := []attribute.KeyValue{
		attribute.String("run_id", run.ID),
		attribute.Int("timestamps", len(req.Timestamps)),
	}
	if requestID, ok := RequestIDFromContext(ctx); ok {
		logger = logger.With(slog.String("request_id", requestID))
		attrs = append(attrs, attribute.String("request_id", requestID))
	}

	metrics.InflightAnalyses.Inc()
	defer metrics.InflightAnalyses.Dec()

	ctx, span := s.tracer.Start(ctx, "analysis.Run", trace.WithAttributes(attrs...))
	defer span.End()

	if err := s.stage(ctx, run, func(context.Context) error { return req.Validate() }); err != nil {
		metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		logger.Info("analysis request rejected", slog.String("error", err.Error()))
		return Result{}, err
	}

	logger.Info("analysis started",
		slog.String("source", req.VideoSource),
		slog.Int("timestamps", len(req.Timestamps)),
	)
	start := time.Now()

	res, err := s.execute(ctx, run, req, logger)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		span.SetStatus(codes.Error, err.Error())
		logger.Error("analysis failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return Result{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	if err := run.TransitionTo(StageDone); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logger.Info("analysis completed",
		slog.Int("frames", res.FrameCount),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// execute runs the stages after validation. Once the scope exists it is
// released on every return path.
func (s *Service) execute(ctx context.Context, run *Run, req Request, logger *slog.Logger) (Result, error) {
	if err := run.TransitionTo(StageExtracting); err != nil {
		return Result{}, err
	}

	scope, err := s.storage.CreateScope(ctx, run.ID)
	if err != nil {
		_ = run.Fail(err)
		return Result{}, fmt.Errorf("create scope: %w", err)
	}

	var artifacts []string
	defer func() { s.release(ctx, run, scope, artifacts, logger) }()

	var frames []media.Frame
	err = s.stage(ctx, run, func(ctx context.Context) error {
		source, err := s.resolveSource(ctx, scope, req.VideoSource)
		if err != nil {
			return err
		}
		if source != req.VideoSource {
			artifacts = append(artifacts, source)
		}

		frames, err = s.extractor.ExtractFrames(ctx, source, scope.Dir, req.Timestamps)
		if err != nil {
			return err
		}
		for _, f := range frames {
			artifacts = append(artifacts, f.Path)
		}
		metrics.FramesExtractedTotal.Add(float64(len(frames)))
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if err := run.TransitionTo(StageEncoding); err != nil {
		return Result{}, err
	}
	var parts []inference.Part
	err = s.stage(ctx, run, func(ctx context.Context) error {
		parts, err = s.encoder.EncodeAll(ctx, frames)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	if err := run.TransitionTo(StageDispatching); err != nil {
		return Result{}, err
	}
	var out inference.Result
	err = s.stage(ctx, run, func(ctx context.Context) error {
		out, err = s.analyzer.Analyze(ctx, req.Prompt, parts)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	if err := run.TransitionTo(StageCleaningUp); err != nil {
		return Result{}, err
	}

	return Result{
		RunID:      run.ID,
		Text:       out.Text,
		Raw:        out.Raw,
		FrameCount: len(frames),
	}, nil
}

// stage runs fn as the run's current stage, recording a span and its
// duration. A failure moves the run to the failed stage.
func (s *Service) stage(ctx context.Context, run *Run, fn func(context.Context) error) error {
	stage := run.GetStage()

	ctx, span := s.tracer.Start(ctx, "analysis."+string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !run.IsTerminal() {
			_ = run.Fail(err)
		}
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}

// release removes the run's artifacts and scope. It ignores caller
// cancellation and never changes the run's outcome.
func (s *Service) release(ctx context.Context, run *Run, scope storage.Scope, artifacts []string, logger *slog.Logger) {
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "analysis."+string(StageCleaningUp))
	defer span.End()

	start := time.Now()
	err := s.storage.ReleaseScope(ctx, scope, artifacts)
	metrics.StageDuration.WithLabelValues(string(StageCleaningUp)).Observe(time.Since(start).Seconds())

	if err != nil {
		cerr := &CleanupError{RunID: run.ID, Dir: scope.Dir, Err: err}
		metrics.CleanupFailuresTotal.Inc()
		span.RecordError(cerr)
		logger.Error("cleanup failed", slog.String("error", cerr.Error()))
		return
	}

	logger.Debug("scope released",
		slog.String("dir", scope.Dir),
		slog.Int("artifacts", len(artifacts)),
	)
}

// resolveSource downloads s3:// sources into the scope. Any other source is
// returned unchanged for ffmpeg to open.
func (s *Service) resolveSource(ctx context.Context, scope storage.Scope, source string) (string, error) {
	bucket, key, ok := ParseS3URI(source)
	if !ok {
		return source, nil
	}

	dst := scope.Path("source" + path.Ext(key))
	if err := s.storage.FetchObject(ctx, bucket, key, dst); err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}
	return dst, nil
}

// ParseS3URI splits s3://bucket/key. It reports false for any other form.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// IsValidationError reports whether err was caused by an invalid request.
func IsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
