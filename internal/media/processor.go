// Package media provides video frame capture capabilities.
package media

import "context"

// FrameCapturer captures single still frames from a video source.
// Implementations should use ffmpeg or similar tools for media manipulation.
type FrameCapturer interface {
	// CaptureFrame writes the frame at timestamp seconds of src to dst.
	// src may be a local path or any URL the underlying tool can open.
	// The image format follows the extension of dst.
	CaptureFrame(ctx context.Context, src, dst string, timestamp float64) error
}
