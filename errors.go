package secrets

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the verification and store contracts. Callers branch on
// these with errors.Is; the HTTP layer is responsible for collapsing
// ErrNotFound and ErrMismatch into one indistinguishable response.
var (
	// ErrNotFound means no record matched the presented identity.
	ErrNotFound = errors.New("identity not found")

	// ErrMismatch means the record exists but the credential did not verify.
	ErrMismatch = errors.New("credential mismatch")

	// ErrDuplicateIdentity means a registration collided with an existing
	// username or (provider, external id) pair.
	ErrDuplicateIdentity = errors.New("identity already registered")

	// ErrProviderFailure means a federation assertion was invalid, expired
	// or could not be completed.
	ErrProviderFailure = errors.New("provider assertion failed")

	// ErrStoreUnavailable means the persistence collaborator was unreachable.
	// Fatal to the request, never to the process.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Error codes attached to AuthError values returned by the HTTP handlers.
const (
	ErrCodeInvalidCreds    = "invalid_credentials"
	ErrCodeMissingField    = "missing_field"
	ErrCodeInvalidUsername = "invalid_username"
	ErrCodeUsernameTaken   = "username_taken"
	ErrCodeWeakPassword    = "weak_password"
	ErrCodeServerError     = "server_error"
)

// AuthError is a user-facing authentication error with a stable code and the
// form field it relates to (if any).
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AuthErrorHandler lets applications take over error responses (e.g. redirect
// back to a form with a flash message). Returning true means the error was
// handled and the default JSON response should be skipped.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool
