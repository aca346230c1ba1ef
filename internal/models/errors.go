package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrorCode represents standardized error codes for API responses.
type ErrorCode string

const (
	ErrorCodeInvalidField      ErrorCode = "INVALID_FIELD"
	ErrorCodeMissingField      ErrorCode = "MISSING_FIELD"
	ErrorCodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
	ErrorCodeVariantNotFound   ErrorCode = "VARIANT_NOT_FOUND"
	ErrorCodeProductNotFound   ErrorCode = "PRODUCT_NOT_FOUND"
	ErrorCodeValidationError   ErrorCode = "VALIDATION_ERROR"
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
)

const (
	ProblemTypeValidationError = "validation-error"
	ProblemTypeBusinessError   = "business-logic-error"
	ProblemTypeNotFound        = "not-found"
	ProblemTypeInternalError   = "internal-error"
)

// InsufficientStockData describes one unsatisfiable request line. The
// checkout line is nil for pure availability checks; AvailableQuantity is set
// only when the caller computed it along the way.
type InsufficientStockData struct {
	VariantID         int64      `json:"variant_id"`
	CheckoutLineID    *uuid.UUID `json:"checkout_line_id,omitempty"`
	AvailableQuantity *int       `json:"available_quantity,omitempty"`
}

// InsufficientStockError aggregates every failing line of a batch. Callers
// always receive the complete set, never just the first shortfall.
type InsufficientStockError struct {
	Items []InsufficientStockData
}

func (e *InsufficientStockError) Error() string {
	if len(e.Items) == 0 {
		return "insufficient stock"
	}
	variants := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		variants = append(variants, fmt.Sprintf("%d", item.VariantID))
	}
	return fmt.Sprintf("insufficient stock for variants: %s", strings.Join(variants, ", "))
}

// IsInsufficientStock reports whether err is (or wraps) an
// InsufficientStockError and returns it if so.
func IsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

// ErrVariantNotFound is returned when a referenced variant does not exist.
var ErrVariantNotFound = errors.New("variant not found")

// ErrProductNotFound is returned when a referenced product does not exist.
var ErrProductNotFound = errors.New("product not found")

// ProblemDetails is the RFC 7807 style error envelope returned by the API.
type ProblemDetails struct {
	Type   string      `json:"type"`
	Title  string      `json:"title"`
	Status int         `json:"status"`
	Detail string      `json:"detail,omitempty"`
	Field  string      `json:"field,omitempty"`
	Code   string      `json:"code,omitempty"`
	Errors interface{} `json:"errors,omitempty"`
}

// NewValidationProblem creates a validation error problem.
func NewValidationProblem(field, message string, code ErrorCode) *ProblemDetails {
	return &ProblemDetails{
		Type:   ProblemTypeValidationError,
		Title:  "Validation Failed",
		Status: 400,
		Detail: message,
		Field:  field,
		Code:   string(code),
	}
}

// NewInsufficientStockProblem creates the 409 problem carrying every failing
// line of an aggregated stock fault.
func NewInsufficientStockProblem(err *InsufficientStockError) *ProblemDetails {
	return &ProblemDetails{
		Type:   ProblemTypeBusinessError,
		Title:  "Insufficient Stock",
		Status: 409,
		Detail: err.Error(),
		Code:   string(ErrorCodeInsufficientStock),
		Errors: err.Items,
	}
}

// NewNotFoundProblem creates a not found error problem.
func NewNotFoundProblem(resource string) *ProblemDetails {
	return &ProblemDetails{
		Type:   ProblemTypeNotFound,
		Title:  "Resource Not Found",
		Status: 404,
		Detail: resource + " not found",
	}
}

// NewInternalErrorProblem creates an internal server error problem.
func NewInternalErrorProblem() *ProblemDetails {
	return &ProblemDetails{
		Type:   ProblemTypeInternalError,
		Title:  "Internal Server Error",
		Status: 500,
		Detail: "An unexpected error occurred",
	}
}
