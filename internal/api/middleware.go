package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yzy0806/saleor/internal/models"
)

// RequestIDMiddleware adds a unique request ID to each request.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// ResponseHelpers provides methods for ProblemDetails responses.
type ResponseHelpers struct{}

// Response is the shared helper instance used by all handlers.
var Response = &ResponseHelpers{}

// Success sends the resource directly with 200.
func (h *ResponseHelpers) Success(c *gin.Context, resource interface{}) {
	c.JSON(200, resource)
}

// Created sends a 201 response with the created resource.
func (h *ResponseHelpers) Created(c *gin.Context, resource interface{}) {
	c.JSON(201, resource)
}

// NoContent sends a 204 response.
func (h *ResponseHelpers) NoContent(c *gin.Context) {
	c.Status(204)
}

// ValidationError sends a 400 field problem.
func (h *ResponseHelpers) ValidationError(c *gin.Context, field, message string) {
	h.setRequestIDHeader(c)
	c.JSON(400, models.NewValidationProblem(field, message, models.ErrorCodeInvalidField))
}

// BindingError maps a gin binding failure to field problems.
func (h *ResponseHelpers) BindingError(c *gin.Context, err error) {
	h.setRequestIDHeader(c)

	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		first := validationErrors[0]
		c.JSON(400, models.NewValidationProblem(
			strings.ToLower(first.Field()),
			validationMessage(first),
			models.ErrorCodeInvalidField,
		))
		return
	}

	c.JSON(400, models.NewValidationProblem("request", "Invalid request format", models.ErrorCodeValidationError))
}

// InsufficientStock sends the 409 aggregated stock fault.
func (h *ResponseHelpers) InsufficientStock(c *gin.Context, err *models.InsufficientStockError) {
	h.setRequestIDHeader(c)
	c.JSON(409, models.NewInsufficientStockProblem(err))
}

// NotFound sends a 404 response.
func (h *ResponseHelpers) NotFound(c *gin.Context, resource string) {
	h.setRequestIDHeader(c)
	c.JSON(404, models.NewNotFoundProblem(resource))
}

// InternalError sends a 500 response without exposing internals.
func (h *ResponseHelpers) InternalError(c *gin.Context, err error) {
	h.setRequestIDHeader(c)

	log.Error().
		Str("request_id", getRequestID(c)).
		Err(err).
		Msg("Internal server error")

	c.JSON(500, models.NewInternalErrorProblem())
}

func (h *ResponseHelpers) setRequestIDHeader(c *gin.Context) {
	if requestID := getRequestID(c); requestID != "" {
		c.Header("X-Request-ID", requestID)
	}
}

func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		return requestID.(string)
	}
	return ""
}

func validationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too small"
	case "max":
		return "Value is too large"
	case "len":
		return "Value has the wrong length"
	default:
		return "Invalid value"
	}
}
