package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request field names as they appear on the wire.
const (
	FieldVideoURL   = "videoUrl"
	FieldTimestamps = "timestamps"
	FieldPrompt     = "prompt"
)

// Request is a single analysis request.
type Request struct {
	// VideoSource is a local path, an http(s) URL, or an s3://bucket/key URI.
	VideoSource string `validate:"required"`
	// Timestamps are offsets in seconds. Order and duplicates are preserved.
	Timestamps []float64 `validate:"required,min=1,dive,gte=0"`
	// Prompt is the user's question about the frames.
	Prompt string `validate:"required"`
}

// ValidationError identifies the request field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsPrompt reports whether the prompt is the offending field.
func (e *ValidationError) IsPrompt() bool {
	return e.Field == FieldPrompt
}

var validate = validator.New()

var structFields = map[string]string{
	"VideoSource": FieldVideoURL,
	"Timestamps":  FieldTimestamps,
	"Prompt":      FieldPrompt,
}

// Validate checks the request without touching any external resource.
// Errors on the video source or timestamps take precedence over the prompt.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Field: FieldVideoURL, Err: err}
	}

	var promptErr *ValidationError
	for _, fe := range verrs {
		verr := &ValidationError{Field: wireField(fe.StructField()), Err: fe}
		if verr.Field != FieldPrompt {
			return verr
		}
		promptErr = verr
	}
	return promptErr
}

// wireField maps a validator struct field, which carries an index suffix
// for element errors such as "Timestamps[1]", to its wire name.
func wireField(structField string) string {
	name, _, _ := strings.Cut(structField, "[")
	if field, ok := structFields[name]; ok {
		return field
	}
	return FieldTimestamps
}
