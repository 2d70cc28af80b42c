package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Static errors for media operations.
var (
	// ErrInvalidTimestamp is returned when a timestamp is negative.
	ErrInvalidTimestamp = errors.New("invalid timestamp: must be non-negative")
	// ErrNoFrameCaptured is returned when ffmpeg exits cleanly but writes no image,
	// which happens when the timestamp lies beyond the end of the video.
	ErrNoFrameCaptured = errors.New("no frame captured")
)

// Compile-time check that FFmpegProcessor implements FrameCapturer.
var _ FrameCapturer = (*FFmpegProcessor)(nil)

// FFmpegProcessor implements FrameCapturer using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath}
}

// CaptureFrame seeks to timestamp in src and writes exactly one frame to dst.
// Input seeking (-ss before -i) keeps captures fast on long videos.
func (p *FFmpegProcessor) CaptureFrame(ctx context.Context, src, dst string, timestamp float64) error {
	if timestamp < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTimestamp, timestamp)
	}

	args := captureArgs(src, dst, timestamp)
	if err := p.runFFmpeg(ctx, args); err != nil {
		return err
	}

	info, err := os.Stat(dst)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w at %ss", ErrNoFrameCaptured, formatTimestamp(timestamp))
	}

	return nil
}

// captureArgs compiles the ffmpeg argument list for a single frame capture.
func captureArgs(src, dst string, timestamp float64) []string {
	return ffmpeg.
		Input(src, ffmpeg.KwArgs{"ss": formatTimestamp(timestamp)}).
		Output(dst, ffmpeg.KwArgs{"frames:v": 1, "q:v": 2}).
		OverWriteOutput().
		GetArgs()
}

func formatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
