package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-platform/services"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithPipelineError maps the typed pipeline errors to HTTP statuses.
// Client-side problems (bad input, unparseable PDF) map to 4xx; backend and
// index outages map to 5xx so callers can tell whose fault it was.
func RespondWithPipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		RespondWithError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, services.ErrConcurrentIngestion):
		RespondWithError(c, http.StatusConflict, "ingestion_in_progress", err.Error(), nil)
	case errors.Is(err, services.ErrExtraction):
		RespondWithError(c, http.StatusUnprocessableEntity, "extraction_failed", err.Error(), nil)
	case errors.Is(err, services.ErrConfig), errors.Is(err, services.ErrMaxWordsNotAllowed):
		RespondWithError(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, services.ErrEmbedding), errors.Is(err, services.ErrGeneration):
		RespondWithError(c, http.StatusBadGateway, "backend_failed", err.Error(), nil)
	case errors.Is(err, services.ErrRetrieval):
		RespondWithError(c, http.StatusServiceUnavailable, "index_unavailable", err.Error(), nil)
	default:
		RespondWithInternalError(c, "internal server error", nil)
	}
}
