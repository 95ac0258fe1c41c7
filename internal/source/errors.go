package source

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// APIError represents an HTTP-level error from a marketplace.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("source api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited returns true for the quota-exceeded status that puts
// the source's limiter into its penalty state.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable classifies any fetch error. Transport-level failures
// (timeouts, resets, DNS) are transient and HTTP errors follow the
// status-code taxonomy. Anything else, such as auth rejections or
// undecodable bodies, is fatal for the source this cycle.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsRateLimited reports whether err is a quota-exceeded response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRateLimited()
}

// RejectError reports a raw record that failed normalization. The
// record is dropped and logged; the rest of its page is unaffected.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string {
	return "record rejected: " + e.Reason
}

func reject(reason string) error {
	return &RejectError{Reason: reason}
}

// RejectReason extracts the rejection reason from a normalization
// error, if it is one.
func RejectReason(err error) (string, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
