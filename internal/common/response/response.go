// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripjournal/service-trips/internal/common/domain"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// NoContent writes 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest writes 400 with message.
func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, ErrorBody{Code: "bad_request", Message: message})
}

// Unauthorized writes 401 with message.
func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, ErrorBody{Code: "unauthorized", Message: message})
}

// Error maps a domain error to its HTTP status. Unknown errors become a 500 whose
// message does not leak internals.
func Error(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		stateErr      *domain.InvalidStateError
	)
	switch {
	case errors.As(err, &validationErr):
		fail(c, http.StatusBadRequest, ErrorBody{Code: "validation_failed", Message: validationErr.Message, Field: validationErr.Field})
	case errors.Is(err, domain.ErrValidation):
		fail(c, http.StatusBadRequest, ErrorBody{Code: "validation_failed", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		fail(c, http.StatusNotFound, ErrorBody{Code: "not_found", Message: err.Error()})
	case errors.As(err, &stateErr):
		fail(c, http.StatusConflict, ErrorBody{Code: "invalid_state", Message: err.Error()})
	case errors.Is(err, domain.ErrOptimisticLock):
		fail(c, http.StatusConflict, ErrorBody{Code: "concurrent_update", Message: "resource was modified concurrently, retry"})
	case errors.Is(err, domain.ErrConflict):
		fail(c, http.StatusConflict, ErrorBody{Code: "conflict", Message: err.Error()})
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrorBody{Code: "internal", Message: "internal server error"})
	}
}

func fail(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: &body})
}
