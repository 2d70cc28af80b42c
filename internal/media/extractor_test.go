package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCapturer writes a small file per capture and can be told to fail.
type fakeCapturer struct {
	mu       sync.Mutex
	calls    []float64
	failAt   map[float64]error
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeCapturer) CaptureFrame(ctx context.Context, _ string, dst string, ts float64) error {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, ts)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err, ok := f.failAt[ts]; ok {
		return err
	}
	return os.WriteFile(dst, []byte("frame"), 0600)
}

func TestFrameExtractor_ExtractFrames(t *testing.T) {
	t.Run("returns frames in request order", func(t *testing.T) {
		dir := t.TempDir()
		capturer := &fakeCapturer{}
		extractor := NewFrameExtractor(capturer)

		frames, err := extractor.ExtractFrames(context.Background(), "video.mp4", dir, []float64{5, 1, 3})
		require.NoError(t, err)
		require.Len(t, frames, 3)

		for i, want := range []float64{5, 1, 3} {
			assert.Equal(t, i, frames[i].Index)
			assert.Equal(t, want, frames[i].Timestamp)
			assert.Equal(t, "image/jpeg", frames[i].MIMEType)
			assert.Equal(t, dir, filepath.Dir(frames[i].Path))
			assert.FileExists(t, frames[i].Path)
		}
	})

	t.Run("duplicate timestamps produce distinct artifacts", func(t *testing.T) {
		dir := t.TempDir()
		extractor := NewFrameExtractor(&fakeCapturer{})

		frames, err := extractor.ExtractFrames(context.Background(), "video.mp4", dir, []float64{2, 2})
		require.NoError(t, err)
		require.Len(t, frames, 2)
		assert.NotEqual(t, frames[0].Path, frames[1].Path)
	})

	t.Run("png format", func(t *testing.T) {
		dir := t.TempDir()
		extractor := NewFrameExtractor(&fakeCapturer{}, WithFormat("PNG"))

		frames, err := extractor.ExtractFrames(context.Background(), "video.mp4", dir, []float64{0})
		require.NoError(t, err)
		assert.Equal(t, "image/png", frames[0].MIMEType)
		assert.Equal(t, ".png", filepath.Ext(frames[0].Path))
	})

	t.Run("empty timestamps", func(t *testing.T) {
		extractor := NewFrameExtractor(&fakeCapturer{})

		_, err := extractor.ExtractFrames(context.Background(), "video.mp4", t.TempDir(), nil)
		assert.ErrorIs(t, err, ErrNoTimestamps)
	})

	t.Run("single failure fails the whole extraction", func(t *testing.T) {
		dir := t.TempDir()
		capturer := &fakeCapturer{failAt: map[float64]error{4: ErrNoFrameCaptured}}
		extractor := NewFrameExtractor(capturer)

		frames, err := extractor.ExtractFrames(context.Background(), "video.mp4", dir, []float64{1, 4, 2})
		assert.Nil(t, frames)

		var extErr *ExtractionError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, 1, extErr.Index)
		assert.Equal(t, 4.0, extErr.Timestamp)
		assert.ErrorIs(t, err, ErrNoFrameCaptured)
	})

	t.Run("failure cancels pending captures", func(t *testing.T) {
		boom := errors.New("boom")
		capturer := &fakeCapturer{
			failAt: map[float64]error{0: boom},
			delay:  50 * time.Millisecond,
		}
		extractor := NewFrameExtractor(capturer, WithConcurrencyLimit(1))

		_, err := extractor.ExtractFrames(context.Background(), "video.mp4", t.TempDir(), []float64{0, 1, 2, 3})
		require.ErrorIs(t, err, boom)

		capturer.mu.Lock()
		defer capturer.mu.Unlock()
		assert.Less(t, len(capturer.calls), 4, "pending captures should observe cancellation")
	})

	t.Run("concurrency limit is respected", func(t *testing.T) {
		capturer := &fakeCapturer{delay: 20 * time.Millisecond}
		extractor := NewFrameExtractor(capturer, WithConcurrencyLimit(2))

		_, err := extractor.ExtractFrames(context.Background(), "video.mp4", t.TempDir(), []float64{0, 1, 2, 3, 4, 5})
		require.NoError(t, err)
		assert.LessOrEqual(t, capturer.peak.Load(), int32(2))
	})

	t.Run("unbounded captures run concurrently", func(t *testing.T) {
		capturer := &fakeCapturer{delay: 50 * time.Millisecond}
		extractor := NewFrameExtractor(capturer)

		_, err := extractor.ExtractFrames(context.Background(), "video.mp4", t.TempDir(), []float64{0, 1, 2, 3})
		require.NoError(t, err)
		assert.Greater(t, capturer.peak.Load(), int32(1))
	})
}

func TestFrameFilename(t *testing.T) {
	assert.Equal(t, "frame_000_1.5s.jpg", FrameFilename(0, 1.5, "jpg"))
	assert.Equal(t, "frame_012_30s.png", FrameFilename(12, 30, "png"))
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "image/jpeg", MIMEType("jpg"))
	assert.Equal(t, "image/png", MIMEType("png"))
	assert.Equal(t, "image/png", MIMEType("PNG"))
	assert.Equal(t, "image/jpeg", MIMEType(""))
}

func TestExtractionError(t *testing.T) {
	err := &ExtractionError{Index: 2, Timestamp: 7.5, Err: ErrNoFrameCaptured}

	assert.Contains(t, err.Error(), "frame 2")
	assert.Contains(t, err.Error(), "7.5s")
	assert.ErrorIs(t, err, ErrNoFrameCaptured)
}

func TestFrameExtractor_WithFFmpeg(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	video := filepath.Join(tmpDir, "input.mp4")
	createTestVideo(t, video, 3, "green")

	scope := filepath.Join(tmpDir, "scope")
	require.NoError(t, os.Mkdir(scope, 0750))

	extractor := NewFrameExtractor(NewFFmpegProcessor(""))

	frames, err := extractor.ExtractFrames(context.Background(), video, scope, []float64{0, 1, 2})
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for _, f := range frames {
		info, err := os.Stat(f.Path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
