// Package inference sends captured frames and a prompt to a multimodal model.
package inference

import "context"

// Part is one image handed to the model, tagged with its media type.
type Part struct {
	MIMEType string
	Data     []byte
}

// Result is the outcome of a single model call.
type Result struct {
	// Text is the model's textual answer.
	Text string
	// Raw holds the structured response when the model produced no text.
	Raw any
}

// Analyzer defines the interface for multimodal analysis backends.
type Analyzer interface {
	// Analyze sends prompt and parts, in order, as a single request.
	Analyze(ctx context.Context, prompt string, parts []Part) (Result, error)
}
