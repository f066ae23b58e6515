package notion

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shayan-nathan/airbyte/pkg/connector/base"
	"github.com/shayan-nathan/airbyte/pkg/errors"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
)

// invalidCursorPrefix starts the message of a 400 rejecting start_cursor.
const invalidCursorPrefix = "The start_cursor provided is invalid: "

// Backoff delays that do not follow the exponential schedule.
const (
	defaultRetryAfter  = 5 * time.Second
	invalidCursorDelay = 10 * time.Second
)

// Retry and abandon reasons, used as metric labels.
const (
	reasonRateLimit     = "rate_limit"
	reasonServerError   = "server_error"
	reasonConnection    = "connection"
	reasonInvalidCursor = "invalid_cursor"
	reasonNotFound      = "not_found"
	reasonClientError   = "client_error"
)

// APIError is a non-2xx response of the Notion API.
type APIError struct {
	Status     int           `json:"status"`
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api %d %s: %s", e.Status, e.Code, e.Message)
}

// InvalidCursor reports whether the API rejected the pagination cursor.
func (e *APIError) InvalidCursor() bool {
	return e.Status == http.StatusBadRequest && strings.HasPrefix(e.Message, invalidCursorPrefix)
}

// parseAPIError builds an APIError from a failed response and its body.
// Bodies that are not the documented error object keep the status only.
func parseAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{}
	if err := jsonpool.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	apiErr.Status = resp.StatusCode
	if apiErr.Code == "" {
		apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	}
	if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs >= 0 {
		apiErr.RetryAfter = time.Duration(secs * float64(time.Second))
	}
	return apiErr
}

// errorTypeFor maps an HTTP status to the error taxonomy.
func errorTypeFor(status int) errors.ErrorType {
	switch {
	case status == http.StatusTooManyRequests:
		return errors.ErrorTypeRateLimit
	case status >= 500:
		return errors.ErrorTypeConnection
	case status == http.StatusUnauthorized:
		return errors.ErrorTypeAuthentication
	case status == http.StatusForbidden:
		return errors.ErrorTypePermission
	case status == http.StatusNotFound:
		return errors.ErrorTypeNotFound
	case status == http.StatusConflict:
		return errors.ErrorTypeConflict
	default:
		return errors.ErrorTypeValidation
	}
}

// asAPIError finds the APIError in the chain of err.
func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// classify decides how a failed request is retried: 429 waits Retry-After
// (5s when absent), an invalid start cursor waits 10s, and every other
// response or transport failure backs off exponentially until the attempt
// budget runs out. Rejected credentials and vanished objects fail at once.
func classify(err error, _ int) base.Decision {
	if apiErr, ok := asAPIError(err); ok {
		switch {
		case apiErr.Status == http.StatusTooManyRequests:
			d := apiErr.RetryAfter
			if d <= 0 {
				d = defaultRetryAfter
			}
			return base.Decision{Retry: true, Delay: d, Reason: reasonRateLimit}
		case apiErr.Status >= 500:
			return base.Decision{Retry: true, Reason: reasonServerError}
		case apiErr.InvalidCursor():
			return base.Decision{Retry: true, Delay: invalidCursorDelay, Reason: reasonInvalidCursor}
		case apiErr.Status == http.StatusUnauthorized,
			apiErr.Status == http.StatusForbidden,
			apiErr.Status == http.StatusNotFound:
			return base.Decision{}
		}
		return base.Decision{Retry: true, Reason: reasonClientError}
	}
	if errors.IsType(err, errors.ErrorTypeConnection) {
		return base.Decision{Retry: true, Reason: reasonConnection}
	}
	return base.Decision{}
}

// branchReason returns the abandon reason when err only affects the branch
// being read (a vanished block or a rejected cursor). It is empty for errors
// that must fail the sync.
func branchReason(err error) string {
	apiErr, ok := asAPIError(err)
	if !ok {
		return ""
	}
	switch {
	case apiErr.Status == http.StatusNotFound:
		return reasonNotFound
	case apiErr.InvalidCursor():
		return reasonInvalidCursor
	}
	return ""
}
