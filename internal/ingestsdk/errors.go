package ingestsdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL   = errors.New("sdk: server url missing")
	ErrNoConnectorID = errors.New("sdk: connector id missing")
	ErrFileNotFound  = errors.New("sdk: file not found")
)

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeAccessDenied   = "E_ACCESS_DENIED"   // missing or invalid credentials
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeUnknownError   = "E_UNKNOWN_ERR"     // unknown error

	// Document errors
	CodeDuplicateChecksum = "E_DUPLICATE_CHECKSUM" // content already accepted with an identical checksum
	CodeDocumentNotFound  = "E_DOCUMENT_NOT_FOUND" // the specified document could not be found
	CodeDocumentTooLarge  = "E_DOCUMENT_TOO_LARGE" // the uploaded document exceeds the server limit
)

// APIError is the error envelope returned by the ingestion API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	// DocumentID carries the existing document on duplicate-checksum
	// responses.
	DocumentID string `json:"document_id,omitempty"`

	// StatusCode is the HTTP status, filled client-side.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// IsRetryable reports whether a delivery attempt that produced err is worth
// retrying: server-side 5xx and transport failures are, everything the server
// rejected deliberately (4xx) is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}

	// No structured response: connection refused, reset, timeout.
	return true
}

// handleAPIError folds the transport error and the API error envelope into a
// single error value.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Code != "" {
			apiErr.StatusCode = resp.StatusCode
			return fmt.Errorf("%s: %w", operation, apiErr)
		}

		// No parseable envelope; synthesize one so IsRetryable still works.
		return fmt.Errorf("%s: %w", operation, &APIError{
			Code:       CodeUnknownError,
			Message:    resp.String(),
			StatusCode: resp.StatusCode,
		})
	}

	return nil
}
