package apihandlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"memcat/internal/models"
	"memcat/internal/store"
	"memcat/pkg/categorizer"
)

// APIError defines standard error response
// Example: { "error": { "code": "bad_request", "message": "Invalid ID" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.JSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

// Convenience wrappers
func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, "not_found", msg)
}

func Internal(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusInternalServerError, "internal_error", msg)
}

func Conflict(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusConflict, "conflict", msg)
}

func BadGateway(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadGateway, "upstream_error", msg)
}

// ServiceError maps a service error onto the matching HTTP error response.
func ServiceError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, store.ErrNotFound):
		NotFound(ctx, err.Error())
	case errors.Is(err, models.ErrValidation):
		BadRequest(ctx, err.Error())
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrDuplicate):
		Conflict(ctx, err.Error())
	case errors.Is(err, categorizer.ErrRetriesExhausted):
		BadGateway(ctx, err.Error())
	default:
		log.Errorf("%s: %v", op, err)
		Internal(ctx, op+": "+err.Error())
	}
}
