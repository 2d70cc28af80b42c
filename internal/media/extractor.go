package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrNoTimestamps is returned when extraction is requested without timestamps.
var ErrNoTimestamps = errors.New("no timestamps provided")

// Frame is a still image captured from a video and written to disk.
type Frame struct {
	// Index is the position of the timestamp in the original request.
	Index     int
	Timestamp float64
	Path      string
	MIMEType  string
}

// ExtractionError reports the capture that failed an extraction.
type ExtractionError struct {
	Index     int
	Timestamp float64
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract frame %d at %ss: %v", e.Index, formatTimestamp(e.Timestamp), e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Supported frame formats.
const (
	FormatJPG = "jpg"
	FormatPNG = "png"
)

// MIMEType returns the media type for a frame format.
func MIMEType(format string) string {
	if strings.EqualFold(format, FormatPNG) {
		return "image/png"
	}
	return "image/jpeg"
}

// FrameFilename returns the artifact name for the frame at index.
// Both index and timestamp are encoded so repeated timestamps never collide.
func FrameFilename(index int, timestamp float64, format string) string {
	return fmt.Sprintf("frame_%03d_%ss.%s", index, formatTimestamp(timestamp), format)
}

// FrameExtractor captures one frame per timestamp concurrently.
type FrameExtractor struct {
	capturer FrameCapturer
	format   string
	limit    int
	logger   *slog.Logger
}

// ExtractorOption configures a FrameExtractor.
type ExtractorOption func(*FrameExtractor)

// WithFormat sets the output image format ("jpg" or "png").
func WithFormat(format string) ExtractorOption {
	return func(e *FrameExtractor) {
		if format != "" {
			e.format = strings.ToLower(format)
		}
	}
}

// WithConcurrencyLimit bounds the number of simultaneous captures.
// Zero or a negative value means unbounded.
func WithConcurrencyLimit(n int) ExtractorOption {
	return func(e *FrameExtractor) {
		e.limit = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(e *FrameExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewFrameExtractor creates a FrameExtractor on top of capturer.
func NewFrameExtractor(capturer FrameCapturer, opts ...ExtractorOption) *FrameExtractor {
	e := &FrameExtractor{
		capturer: capturer,
		format:   FormatJPG,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFrames captures the frame at each timestamp of source into dir.
// All captures run concurrently and are joined before returning. Frames are
// returned in request order. If any capture fails the remaining ones are
// cancelled and no frames are returned; files already written stay in dir.
func (e *FrameExtractor) ExtractFrames(ctx context.Context, source, dir string, timestamps []float64) ([]Frame, error) {
	if len(timestamps) == 0 {
		return nil, ErrNoTimestamps
	}

	frames := make([]Frame, len(timestamps))

	g, gctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}

	for i, ts := range timestamps {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			path := filepath.Join(dir, FrameFilename(i, ts, e.format))
			if err := e.capturer.CaptureFrame(gctx, source, path, ts); err != nil {
				return &ExtractionError{Index: i, Timestamp: ts, Err: err}
			}

			frames[i] = Frame{
				Index:     i,
				Timestamp: ts,
				Path:      path,
				MIMEType:  MIMEType(e.format),
			}
			e.logger.Debug("frame captured",
				slog.Int("index", i),
				slog.Float64("timestamp", ts),
				slog.String("path", path),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return frames, nil
}
