package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/porbit/orbital-gateway/internal/chain"
	meteringdomain "github.com/porbit/orbital-gateway/internal/metering/domain"
	pricefeeddomain "github.com/porbit/orbital-gateway/internal/pricefeed/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrPaymentRequired = errors.New("payment_required")
	ErrUpstream        = errors.New("upstream_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// upstreamError tags failures coming back from the chain RPC so they map to
// 502 instead of a generic 500.
func upstreamError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// chainError keeps validation and configuration sentinels intact and tags
// everything else from the chain client as upstream.
func chainError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isValidationError(err),
		errors.Is(err, chain.ErrPoolNotConfigured),
		errors.Is(err, chain.ErrSessionNotConfigured):
		return err
	default:
		return upstreamError(err)
	}
}

// paymentRequiredError tags any metering denial on a metered route; both an
// unknown id and an empty balance surface as 402 there.
func paymentRequiredError(err error) error {
	return fmt.Errorf("%w: %v", ErrPaymentRequired, err)
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrPaymentRequired),
		errors.Is(err, meteringdomain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_required",
			Code:    "PAYMENT_REQUIRED",
			Message: "payment required or insufficient",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, chain.ErrPoolNotConfigured),
		errors.Is(err, chain.ErrSessionNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "contract not configured",
		}
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "upstream chain call failed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, meteringdomain.ErrInvalidMaxUnits),
		errors.Is(err, meteringdomain.ErrInvalidUnits),
		errors.Is(err, chain.ErrInvalidAddress),
		errors.Is(err, chain.ErrInvalidAmount),
		errors.Is(err, chain.ErrInvalidSessionID):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, meteringdomain.ErrUnknownPayment),
		errors.Is(err, pricefeeddomain.ErrUnknownAsset):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, meteringdomain.ErrInvalidMaxUnits):
		return "invalid_max_units"
	case errors.Is(err, meteringdomain.ErrInvalidUnits):
		return "invalid_units"
	case errors.Is(err, chain.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, chain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, chain.ErrInvalidSessionID):
		return "invalid_session_id"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	return strings.TrimPrefix(code, "invalid_")
}

// classifyErrorForLog feeds the request logger's error_type/error_code fields.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status == http.StatusPaymentRequired:
		return "payment_required", payload.Type
	default:
		return "client_error", payload.Type
	}
}
