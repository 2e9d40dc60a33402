package mockapi

import (
	"net/http"

	auth "github.com/goliatone/go-auth-guard"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidLogin    = "INVALID_LOGIN"
	TextCodeTooManyAttempts = "TOO_MANY_ATTEMPTS"
	TextCodeInvalidToken    = "INVALID_TOKEN"
	TextCodeTokenExpired    = "TOKEN_EXPIRED"
	TextCodeInvalidFixture  = "INVALID_FIXTURE"
)

var ErrInvalidLogin = goerrors.New("Invalid username or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidLogin).
	WithCode(goerrors.CodeUnauthorized)

var ErrTooManyAttempts = goerrors.New("Too many login attempts, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

var ErrInvalidToken = goerrors.New("Invalid or missing token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenExpired = goerrors.New("Token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrInvalidFixture = goerrors.New("invalid user fixture", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidFixture).
	WithCode(goerrors.CodeBadRequest)

// statusOf maps service errors to the HTTP status the handlers answer with
func statusOf(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

// asBackendFailure makes in-process failures look like the ones the HTTP
// client produces, so callers can rely on auth.BackendStatus.
func asBackendFailure(err error, method, path string) error {
	status := statusOf(err)
	category := goerrors.CategoryInternal

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		category = richErr.Category
	}

	return goerrors.New(publicMessage(err), category).
		WithTextCode(auth.TextCodeBackendFailure).
		WithCode(status).
		WithMetadata(map[string]any{
			"status":  status,
			"payload": map[string]any{"error": publicMessage(err)},
			"method":  method,
			"path":    path,
		})
}

func publicMessage(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return http.StatusText(statusOf(err))
}
