// Package middleware holds the fiber middleware stack.
package middleware

import (
	"fmt"
	"runtime/debug"
	"time"

	"scheduler_server/pkg/calerr"
	"scheduler_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler is the centralized fiber error handler. Classified errors
// keep their code; everything else becomes an opaque 500.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals("request_id").(string)

		response := ErrorResponse{
			Success:   false,
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		var status int
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
			response.Error = ErrorDetail{
				Code:    codeForStatus(fe.Code),
				Message: fe.Message,
			}
		} else if ce, ok := calerr.As(err); ok {
			status = fiber.StatusInternalServerError
			if !ce.Retryable {
				status = fiber.StatusBadRequest
			}
			response.Error = ErrorDetail{
				Code:    ce.Code,
				Message: calerr.UserFriendlyMessage(ce),
			}
			logger.WithField("request_id", requestID).
				WithField("error_code", ce.Code).
				WithError(ce).
				Warn("request failed: %s", ce.Operation)
		} else {
			status = fiber.StatusInternalServerError
			response.Error = ErrorDetail{
				Code:    calerr.CodeInternalError,
				Message: "An unexpected error occurred",
			}
			logger.WithField("request_id", requestID).
				WithError(err).
				WithField("stack", string(debug.Stack())).
				Error("Unexpected error: %s", err.Error())
		}

		return c.Status(status).JSON(response)
	}
}

// RequestID adds a unique request id to each request.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	}
}

// RequestLogger logs incoming requests and their responses.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID, _ := c.Locals("request_id").(string)

		err := c.Next()

		duration := time.Since(start)

		userID := ""
		if uid, ok := c.Locals("user_id").(uuid.UUID); ok {
			userID = uid.String()
		}

		log := logger.WithFields(map[string]any{
			"request_id":  requestID,
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": float64(duration.Microseconds()) / 1000.0,
			"ip":          c.IP(),
		})
		if userID != "" {
			log = log.WithField("user_id", userID)
		}

		status := c.Response().StatusCode()
		switch {
		case status >= 500:
			log.Error("Request failed: %s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn("Request error: %s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Info("Request completed: %s %s -> %d", c.Method(), c.Path(), status)
		}

		return err
	}
}

// Recover converts panics into a 500 response instead of killing the
// process.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals("request_id").(string)

				logger.WithFields(map[string]any{
					"request_id": requestID,
					"panic":      fmt.Sprintf("%v", r),
					"path":       c.Path(),
					"method":     c.Method(),
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered")

				c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
					Success:   false,
					RequestID: requestID,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Error: ErrorDetail{
						Code:    calerr.CodeInternalError,
						Message: "An unexpected error occurred",
					},
				})
			}
		}()
		return c.Next()
	}
}

func codeForStatus(status int) string {
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
	default:
		return calerr.CodeInternalError
	}
}
