// Package server provides the HTTP server for the Framecast API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"encoding/json"

	"github.com/maauso/framecast-api/internal/analysis"
)

// AnalyzeVideoRequest is the HTTP request body for analyzing a video.
// Fields are kept raw so that wrongly typed values are reported as invalid
// input rather than as malformed JSON.
type AnalyzeVideoRequest struct {
	// VideoURL is the video to analyze: an http(s) URL, a path, or s3://bucket/key.
	VideoURL json.RawMessage `json:"videoUrl"`
	// Timestamps are the offsets, in seconds, of the frames to capture.
	Timestamps json.RawMessage `json:"timestamps"`
	// Prompt is the question to ask about the frames.
	Prompt json.RawMessage `json:"prompt"`
}

// toDomain converts the DTO into an analysis.Request. A field with the wrong
// JSON type is left empty so that request validation rejects it.
func (r AnalyzeVideoRequest) toDomain() (analysis.Request, []string) {
	var (
		req        analysis.Request
		mismatched []string
	)

	if !decodeField(r.VideoURL, &req.VideoSource) {
		mismatched = append(mismatched, analysis.FieldVideoURL)
	}
	if ts, ok := decodeTimestamps(r.Timestamps); ok {
		req.Timestamps = ts
	} else {
		mismatched = append(mismatched, analysis.FieldTimestamps)
	}
	if !decodeField(r.Prompt, &req.Prompt) {
		mismatched = append(mismatched, analysis.FieldPrompt)
	}

	return req, mismatched
}

// decodeField unmarshals raw into dst. Absent and null values are accepted
// and leave dst at its zero value.
func decodeField(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return true
	}
	return json.Unmarshal(raw, dst) == nil
}

// decodeTimestamps decodes a JSON array of numbers. A null element makes the
// whole array invalid.
func decodeTimestamps(raw json.RawMessage) ([]float64, bool) {
	var values []*float64
	if !decodeField(raw, &values) {
		return nil, false
	}
	if values == nil {
		return nil, true
	}

	timestamps := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			return nil, false
		}
		timestamps[i] = *v
	}
	return timestamps, true
}

// AnalyzeVideoResponse is the HTTP response for a successful analysis.
type AnalyzeVideoResponse struct {
	// Text is the model's answer, or its raw response when it gave no text.
	Text any `json:"text"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
