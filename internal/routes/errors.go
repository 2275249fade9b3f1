package routes

import (
	"errors"
	"net/http"

	"attendance-sync/internal/gate"
	"attendance-sync/internal/nonce"
)

// HTTPError represents an error with an associated HTTP status code and
// user message.
type HTTPError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(statusCode int, err error, message string) *HTTPError {
	return &HTTPError{
		Err:        err,
		StatusCode: statusCode,
		Message:    message,
	}
}

// Routes-specific errors
var (
	ErrInvalidBody      = errors.New("invalid request body")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrInternalServer   = errors.New("internal server error")
)

// errorStatusMap maps pipeline errors to HTTP status codes.
//
// Unknown-device, disabled-device and bad-secret all collapse into 401 so
// responses leak no enumeration data. Replay is 409, distinct from auth
// failures, so monitoring can tell attack attempts from config errors.
var errorStatusMap = map[error]int{
	// 400 Bad Request
	ErrInvalidBody: http.StatusBadRequest,

	// 401 Unauthorized
	gate.ErrMissingCredentials: http.StatusUnauthorized,
	gate.ErrExpired:            http.StatusUnauthorized,
	gate.ErrInvalidTimestamp:   http.StatusUnauthorized,
	gate.ErrUnauthorized:       http.StatusUnauthorized,

	// 405 Method Not Allowed
	ErrMethodNotAllowed: http.StatusMethodNotAllowed,

	// 500 Internal Server Error
	ErrInternalServer: http.StatusInternalServerError,
}

// errorMessageMap maps errors to user-facing messages. Messages stay
// deliberately generic for the auth family.
var errorMessageMap = map[error]string{
	ErrInvalidBody:             "Invalid request body",
	gate.ErrMissingCredentials: "Missing device credentials",
	gate.ErrExpired:            "Request expired",
	gate.ErrInvalidTimestamp:   "Invalid request timestamp",
	gate.ErrUnauthorized:       "Device not found or unauthorized",
	ErrMethodNotAllowed:        "Method not allowed",
	ErrInternalServer:          "An internal error occurred",
}

// GetErrorStatus returns the HTTP status code for an error.
func GetErrorStatus(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	var replayErr *nonce.ReplayError
	if errors.As(err, &replayErr) {
		return http.StatusConflict
	}

	for knownErr, status := range errorStatusMap {
		if errors.Is(err, knownErr) {
			return status
		}
	}

	return http.StatusInternalServerError
}

// GetErrorMessage returns a user-facing message for an error.
func GetErrorMessage(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}

	var replayErr *nonce.ReplayError
	if errors.As(err, &replayErr) {
		return "Duplicate request (replay)"
	}

	for knownErr, message := range errorMessageMap {
		if errors.Is(err, knownErr) {
			return message
		}
	}

	if GetErrorStatus(err) >= 500 {
		return "An internal error occurred"
	}
	return err.Error()
}
