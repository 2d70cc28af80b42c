// Package payload turns captured frames into model-ready image parts.
package payload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/maauso/framecast-api/internal/inference"
	"github.com/maauso/framecast-api/internal/media"
	"github.com/maauso/framecast-api/internal/storage"
)

// ErrEmptyArtifact is returned when a frame file exists but holds no data.
var ErrEmptyArtifact = errors.New("frame artifact is empty")

// EncodingError reports the artifact that could not be encoded.
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode frame %s: %v", e.Path, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Encoder reads frame artifacts through storage. It never modifies or
// deletes them.
type Encoder struct {
	storage storage.Storage
}

// NewEncoder creates an Encoder reading from store.
func NewEncoder(store storage.Storage) *Encoder {
	return &Encoder{storage: store}
}

// Encode loads one frame and tags it with its media type.
func (e *Encoder) Encode(ctx context.Context, frame media.Frame) (inference.Part, error) {
	rc, err := e.storage.LoadTemp(ctx, frame.Path)
	if err != nil {
		return inference.Part{}, &EncodingError{Path: frame.Path, Err: err}
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return inference.Part{}, &EncodingError{Path: frame.Path, Err: err}
	}
	if len(data) == 0 {
		return inference.Part{}, &EncodingError{Path: frame.Path, Err: ErrEmptyArtifact}
	}

	mimeType := frame.MIMEType
	if mimeType == "" {
		mimeType = media.MIMEType(media.FormatJPG)
	}

	return inference.Part{MIMEType: mimeType, Data: data}, nil
}

// EncodeAll encodes frames in request order, stopping at the first failure.
func (e *Encoder) EncodeAll(ctx context.Context, frames []media.Frame) ([]inference.Part, error) {
	ordered := slices.Clone(frames)
	slices.SortStableFunc(ordered, func(a, b media.Frame) int {
		return a.Index - b.Index
	})

	parts := make([]inference.Part, 0, len(ordered))
	for _, f := range ordered {
		p, err := e.Encode(ctx, f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}
