package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// Static errors for inference operations.
var (
	// ErrAPIKeyRequired is returned when no Gemini API key is configured.
	ErrAPIKeyRequired = errors.New("inference: API key is required")
	// ErrNoParts is returned when Analyze is called without any image.
	ErrNoParts = errors.New("inference: no image parts provided")
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-1.5-flash"

// DefaultFraming is prepended to every user prompt.
const DefaultFraming = "Analyse the gameplay and give Statcast metrics (e.g., pitch speed, exit velocity) " +
	"which can be confirmed. Give accurate rough values and keep it short: "

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 120 * time.Second

const roleUser = "user"

// InferenceError wraps a failed model call.
type InferenceError struct {
	Model string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference with model %s failed: %v", e.Model, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Compile-time check that GeminiClient implements Analyzer.
var _ Analyzer = (*GeminiClient)(nil)

// GeminiClient implements Analyzer on the Gemini API.
// It is safe for concurrent use.
type GeminiClient struct {
	client     *genai.Client
	model      string
	framing    string
	timeout    time.Duration
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption is a function that configures a GeminiClient.
type ClientOption func(*GeminiClient)

// WithModel sets the model name.
func WithModel(model string) ClientOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithFraming replaces the instruction prepended to every prompt.
func WithFraming(framing string) ClientOption {
	return func(c *GeminiClient) {
		if framing != "" {
			c.framing = framing
		}
	}
}

// WithTimeout bounds each call. Zero keeps the default.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *GeminiClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBaseURL sets a custom base URL for the Gemini API.
func WithBaseURL(url string) ClientOption {
	return func(c *GeminiClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *GeminiClient) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *GeminiClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewGeminiClient creates a Gemini client authenticated with apiKey.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...ClientOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &GeminiClient{
		model:   DefaultModel,
		framing: DefaultFraming,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.client = client

	return c, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// Analyze sends the framed prompt followed by every image as one user turn.
// A response without text is not an error: the raw response is returned in
// Result.Raw instead.
func (c *GeminiClient) Analyze(ctx context.Context, prompt string, parts []Part) (Result, error) {
	if len(parts) == 0 {
		return Result{}, &InferenceError{Model: c.model, Err: ErrNoParts}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Role:  roleUser,
		Parts: c.buildParts(prompt, parts),
	}}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return Result{}, &InferenceError{Model: c.model, Err: err}
	}

	c.logger.Debug("model responded",
		slog.String("model", c.model),
		slog.Int("images", len(parts)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if text := resp.Text(); text != "" {
		return Result{Text: text}, nil
	}

	c.logger.Warn("model response has no text, returning raw response", slog.String("model", c.model))
	// Only the model's response body is returned, never the transport envelope.
	resp.SDKHTTPResponse = nil
	return Result{Raw: resp}, nil
}

func (c *GeminiClient) buildParts(prompt string, parts []Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts)+1)
	out = append(out, &genai.Part{Text: c.framing + prompt})
	for _, p := range parts {
		out = append(out, &genai.Part{
			InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data},
		})
	}
	return out
}
