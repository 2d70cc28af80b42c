package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maauso/framecast-api/internal/analysis"
)

// Client-facing error messages.
const (
	MsgInvalidInput     = "Invalid input parameters"
	MsgInvalidPrompt    = "Invalid prompt"
	MsgProcessingFailed = "An error occurred while processing the video"
	MsgInternalError    = "internal server error"
)

// maxBodyBytes bounds the size of an analysis request body.
const maxBodyBytes = 1 << 20

// Analyzer runs video analyses.
type Analyzer interface {
	Run(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service Analyzer
	logger  *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service Analyzer, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service: service,
		logger:  logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// AnalyzeVideo handles POST /analyze-video requests.
func (h *Handlers) AnalyzeVideo(w http.ResponseWriter, r *http.Request) {
	logger := h.logger
	if requestID, ok := analysis.RequestIDFromContext(r.Context()); ok {
		logger = logger.With(slog.String("request_id", requestID))
	}

	var body AnalyzeVideoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, MsgInvalidInput)
		return
	}

	req, mismatched := body.toDomain()
	if len(mismatched) > 0 {
		logger.Debug("request fields with unexpected types", slog.Any("fields", mismatched))
	}

	// Caller disconnects do not cancel the run.
	res, err := h.service.Run(context.WithoutCancel(r.Context()), req)
	if err != nil {
		if verr, ok := analysis.IsValidationError(err); ok {
			logger.Warn("request validation failed",
				slog.String("field", verr.Field),
				slog.String("error", err.Error()),
			)
			if verr.IsPrompt() {
				writeError(w, http.StatusBadRequest, MsgInvalidPrompt)
				return
			}
			writeError(w, http.StatusBadRequest, MsgInvalidInput)
			return
		}

		logger.Error("video analysis failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, MsgProcessingFailed)
		return
	}

	var text any = res.Text
	if res.Text == "" && res.Raw != nil {
		text = res.Raw
	}

	writeJSON(w, http.StatusOK, AnalyzeVideoResponse{Text: text})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
