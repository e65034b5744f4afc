package http

import (
	"errors"
	"time"

	"scheduler_server/pkg/calerr"
	"scheduler_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var ErrUnauthorized = errors.New("unauthorized")

// GetUserID extracts the authenticated user id placed in the context by
// the auth middleware.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	val := c.Locals("user_id")
	if val == nil {
		return uuid.Nil, ErrUnauthorized
	}
	userID, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUnauthorized
	}
	return userID, nil
}

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// APIError is the standard error payload.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse sends a standardized JSON error response.
func ErrorResponse(c *fiber.Ctx, status int, message string) error {
	return ErrorResponseWithCode(c, status, mapStatusToCode(status), message)
}

// ErrorResponseWithCode sends an error response with an explicit code.
func ErrorResponseWithCode(c *fiber.Ctx, status int, code, message string) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(status).JSON(APIResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		RequestID: requestID,
		Timestamp: timestampNow(),
	})
}

// ClassifiedErrorResponse maps a service error onto an HTTP status. When
// the error carries a classification the client gets its code and a
// user-safe message; anything else falls back to a generic 500.
func ClassifiedErrorResponse(c *fiber.Ctx, err error, operation string) error {
	if ce, ok := calerr.As(err); ok {
		return ErrorResponseWithCode(c, statusForCode(ce.Code), ce.Code, calerr.UserFriendlyMessage(ce))
	}
	return InternalErrorResponse(c, err, operation)
}

// DegradedResponse serves the operation's fallback payload when its
// backing read is transiently degraded. The client gets a usable (empty)
// answer with a degraded marker instead of a 5xx.
func DegradedResponse(c *fiber.Ctx, err error, operation string) error {
	logger.WithError(err).WithField("operation", operation).Warn("serving degraded fallback")
	return SuccessResponse(c, calerr.Fallback(operation))
}

// InternalErrorResponse logs the real error and returns a generic 500 so
// internals never leak to clients.
func InternalErrorResponse(c *fiber.Ctx, err error, operation string) error {
	logger.WithError(err).WithField("operation", operation).Error("internal error")
	return ErrorResponseWithCode(c, 500, calerr.CodeInternalError, operation+" failed")
}

// SuccessResponse sends a standardized JSON success response.
func SuccessResponse(c *fiber.Ctx, data any) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.JSON(APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: timestampNow(),
	})
}

func mapStatusToCode(status int) string {
	switch status {
	case 400:
		return calerr.CodeBadRequest
	case 401:
		return calerr.CodeUnauthorized
	case 403:
		return calerr.CodeForbidden
	case 404:
		return calerr.CodeNotFound
	case 409:
		return calerr.CodeConflict
	case 429:
		return calerr.CodeRateLimited
	case 500:
		return calerr.CodeInternalError
	default:
		return "UNKNOWN_ERROR"
	}
}

func statusForCode(code string) int {
	switch code {
	case calerr.CodeBadRequest:
		return 400
	case calerr.CodeUnauthorized, calerr.CodeAuthError:
		return 401
	case calerr.CodeForbidden:
		return 403
	case calerr.CodeNotFound, calerr.CodeStorageNotFound:
		return 404
	case calerr.CodeConflict:
		return 409
	case calerr.CodeRateLimited:
		return 429
	case calerr.CodeTimeout:
		return 504
	case calerr.CodeServerError, calerr.CodeNetworkError:
		return 502
	default:
		return 500
	}
}

func timestampNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// queryTime parses an RFC3339 query parameter; the zero time means absent
// or malformed.
func queryTime(c *fiber.Ctx, key string) time.Time {
	val := c.Query(key)
	if val == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}
	}
	return t
}
