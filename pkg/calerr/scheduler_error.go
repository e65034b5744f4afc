// Package calerr classifies errors from the calendar provider and local
// storage into a retryability taxonomy consumed by the retry executor.
package calerr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// Error codes
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeServerError     = "SERVER_ERROR"
	CodeNetworkError    = "NETWORK_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeAuthError       = "AUTH_ERROR"
	CodeStorageError    = "STORAGE_ERROR"
	CodeStorageNotFound = "STORAGE_NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Default retry-after hints per class.
const (
	defaultRateLimitRetryAfter = 60 * time.Second
	defaultServerRetryAfter    = 10 * time.Second
	defaultNetworkRetryAfter   = 5 * time.Second
	defaultTimeoutRetryAfter   = 3 * time.Second
)

// ClassifiedError is the normalized form every provider/storage error is
// reduced to before retry decisions are made.
type ClassifiedError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Operation  string         `json:"operation"`
	Retryable  bool           `json:"retryable"`
	RetryAfter time.Duration  `json:"retry_after,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Operation, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Operation, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// As unwraps err into a *ClassifiedError when possible.
func As(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	ok := errors.As(err, &ce)
	return ce, ok
}

// Classify reduces any error to a ClassifiedError. Classification order:
// provider HTTP status, network errors, timeouts, auth grant failures by
// message, storage errors, then a conservative non-retryable default.
func Classify(err error, operation string) *ClassifiedError {
	if err == nil {
		return nil
	}

	// Already classified: keep the original verdict, update operation.
	if ce, ok := As(err); ok {
		if ce.Operation == "" {
			ce.Operation = operation
		}
		return ce
	}

	if ce := classifyProvider(err, operation); ce != nil {
		return ce
	}
	if ce := classifyNetwork(err, operation); ce != nil {
		return ce
	}
	if isTimeout(err) {
		return &ClassifiedError{
			Code:       CodeTimeout,
			Message:    "operation timed out",
			Operation:  operation,
			Retryable:  true,
			RetryAfter: defaultTimeoutRetryAfter,
			Err:        err,
		}
	}
	if isAuthMessage(err) {
		return &ClassifiedError{
			Code:      CodeAuthError,
			Message:   "authentication failed; re-connect the calendar account",
			Operation: operation,
			Retryable: false,
			Err:       err,
		}
	}
	if ce := classifyStorage(err, operation); ce != nil {
		return ce
	}

	return &ClassifiedError{
		Code:      CodeInternalError,
		Message:   "unclassified error",
		Operation: operation,
		Retryable: false,
		Details:   map[string]any{"status": 500},
		Err:       err,
	}
}

func classifyProvider(err error, operation string) *ClassifiedError {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return nil
	}

	ce := &ClassifiedError{
		Operation: operation,
		Details:   map[string]any{"status": gerr.Code},
		Err:       err,
	}

	switch {
	case gerr.Code == 400:
		ce.Code = CodeBadRequest
		ce.Message = "provider rejected the request"
	case gerr.Code == 401:
		// A token refresh upstream may fix this, so the call is worth
		// retrying once the refreshed token is in play.
		ce.Code = CodeUnauthorized
		ce.Message = "provider token rejected"
		ce.Retryable = true
	case gerr.Code == 403:
		if isQuotaMessage(gerr.Message) || isQuotaReason(gerr) {
			ce.Code = CodeRateLimited
			ce.Message = "provider quota exceeded"
			ce.Retryable = true
			ce.RetryAfter = retryAfterFromHeader(gerr, defaultRateLimitRetryAfter)
		} else {
			ce.Code = CodeForbidden
			ce.Message = "insufficient calendar permissions"
		}
	case gerr.Code == 404:
		ce.Code = CodeNotFound
		ce.Message = "calendar or event not found"
	case gerr.Code == 409:
		ce.Code = CodeConflict
		ce.Message = "provider resource conflict"
		ce.Retryable = true
	case gerr.Code == 429:
		ce.Code = CodeRateLimited
		ce.Message = "provider rate limit hit"
		ce.Retryable = true
		ce.RetryAfter = retryAfterFromHeader(gerr, defaultRateLimitRetryAfter)
	case gerr.Code >= 500:
		ce.Code = CodeServerError
		ce.Message = "provider server error"
		ce.Retryable = true
		ce.RetryAfter = defaultServerRetryAfter
	default:
		ce.Code = CodeInternalError
		ce.Message = fmt.Sprintf("unexpected provider status %d", gerr.Code)
	}

	return ce
}

func classifyNetwork(err error, operation string) *ClassifiedError {
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) ||
		strings.Contains(err.Error(), "connection refused") {
		return &ClassifiedError{
			Code:       CodeNetworkError,
			Message:    "network error reaching provider",
			Operation:  operation,
			Retryable:  true,
			RetryAfter: defaultNetworkRetryAfter,
			Err:        err,
		}
	}
	return nil
}

func classifyStorage(err error, operation string) *ClassifiedError {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "database") && !strings.Contains(msg, "sql") &&
		!errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || strings.Contains(msg, "no rows") ||
		strings.Contains(msg, "not found") {
		return &ClassifiedError{
			Code:      CodeStorageNotFound,
			Message:   "record not found",
			Operation: operation,
			Retryable: false,
			Err:       err,
		}
	}
	return &ClassifiedError{
		Code:      CodeStorageError,
		Message:   "storage error",
		Operation: operation,
		Retryable: true,
		Err:       err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func isAuthMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"invalid_grant", "invalid_client", "unauthorized_client", "token expired", "token has been expired or revoked"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func isQuotaMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "quota") || strings.Contains(m, "rate limit") ||
		strings.Contains(m, "usage limit")
}

func isQuotaReason(gerr *googleapi.Error) bool {
	for _, e := range gerr.Errors {
		switch e.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return false
}

func retryAfterFromHeader(gerr *googleapi.Error, fallback time.Duration) time.Duration {
	if gerr.Header != nil {
		if v := gerr.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return fallback
}

// =============================================================================
// Health / recovery / user-facing helpers
// =============================================================================

// IsConnectionHealthIssue reports whether the error indicates the calendar
// connection itself (auth, permission, quota, provider outage) rather than
// the specific request.
func IsConnectionHealthIssue(err error) bool {
	ce, ok := As(err)
	if !ok {
		return false
	}
	switch ce.Code {
	case CodeUnauthorized, CodeForbidden, CodeAuthError, CodeRateLimited, CodeServerError:
		return true
	}
	return false
}

// ShouldAutoRecover reports whether the system may retry on its own
// without user intervention: retryable, and not an auth/permission/missing
// resource problem.
func ShouldAutoRecover(err error) bool {
	ce, ok := As(err)
	if !ok {
		return false
	}
	switch ce.Code {
	case CodeUnauthorized, CodeForbidden, CodeNotFound, CodeAuthError:
		return false
	}
	return ce.Retryable
}

var friendlyMessages = map[string]string{
	CodeBadRequest:      "The calendar request was invalid. Please try again.",
	CodeUnauthorized:    "Your calendar connection needs to be refreshed.",
	CodeForbidden:       "You don't have permission to access this calendar.",
	CodeNotFound:        "The calendar or event could not be found.",
	CodeConflict:        "The calendar was modified by someone else. Please retry.",
	CodeRateLimited:     "Calendar service is busy. Please wait a moment and try again.",
	CodeServerError:     "The calendar service is temporarily unavailable.",
	CodeNetworkError:    "Couldn't reach the calendar service. Check your connection.",
	CodeTimeout:         "The calendar service took too long to respond.",
	CodeAuthError:       "Please reconnect your calendar account.",
	CodeStorageError:    "Something went wrong saving your data. Please try again.",
	CodeStorageNotFound: "The requested item no longer exists.",
}

// UserFriendlyMessage returns a fixed, non-technical message for the error.
// Raw provider error bodies are for logs only, never the UI.
func UserFriendlyMessage(err error) string {
	if ce, ok := As(err); ok {
		if msg, found := friendlyMessages[ce.Code]; found {
			return msg
		}
	}
	return "Something went wrong. Please try again."
}

// Fallback returns the safe default payload served in place of real data
// when an operation's backing read is degraded. A transient provider
// outage then reads as "nothing scheduled" rather than a hard failure.
// Every payload carries degraded=true so clients can tell it from a
// genuinely empty answer.
func Fallback(operation string) map[string]any {
	switch operation {
	case "list-calendars":
		return map[string]any{"calendars": []any{}, "degraded": true}
	case "list-events":
		return map[string]any{"events": []any{}, "degraded": true}
	case "free-busy":
		return map[string]any{"calendars": map[string]any{}, "degraded": true}
	case "check-availability":
		return map[string]any{"available": false, "status": "unavailable", "degraded": true}
	case "check-conflicts":
		return map[string]any{"has_conflicts": false, "conflicts": []any{}, "can_proceed": true, "degraded": true}
	default:
		return map[string]any{"success": false, "operation": operation, "degraded": true}
	}
}
