package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenMalformed       = "TOKEN_MALFORMED"
	TextCodeTokenClaimMissing    = "TOKEN_CLAIM_MISSING"
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeInvalidLoginResponse = "INVALID_LOGIN_RESPONSE"
	TextCodeStorageFailure       = "STORAGE_FAILURE"
	TextCodeBackendFailure       = "BACKEND_FAILURE"
	TextCodeBackendUnreachable   = "BACKEND_UNREACHABLE"
	TextCodeInvalidRoute         = "INVALID_ROUTE"
)

// ErrTokenMalformed is returned when a bearer token cannot be split,
// decoded or parsed into claims
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenClaimMissing is returned when a required claim is absent or empty
var ErrTokenClaimMissing = goerrors.New("token is missing a required claim", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenClaimMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is returned when login credentials fail validation
var ErrInvalidCredentials = goerrors.New("invalid login credentials", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidLoginResponse is returned when the backend accepted a login
// but did not return a token and user
var ErrInvalidLoginResponse = goerrors.New("login response is missing token or user", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidLoginResponse)

// ErrStorageFailure wraps persisted storage errors
var ErrStorageFailure = goerrors.New("persisted storage failure", goerrors.CategoryInternal).
	WithTextCode(TextCodeStorageFailure).
	WithCode(goerrors.CodeInternal)

// ErrInvalidRoute is returned when a route descriptor is not usable
var ErrInvalidRoute = goerrors.New("invalid route descriptor", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRoute).
	WithCode(goerrors.CodeBadRequest)

// IsDecodeFailure reports whether err came out of DecodeToken
func IsDecodeFailure(err error) bool {
	return hasTextCode(err, TextCodeTokenMalformed, TextCodeTokenClaimMissing)
}

// IsBackendFailure reports whether err was produced by a backend call
func IsBackendFailure(err error) bool {
	return hasTextCode(err, TextCodeBackendFailure, TextCodeBackendUnreachable)
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}

// BackendStatus returns the HTTP status attached to a backend failure
func BackendStatus(err error) (int, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != TextCodeBackendFailure {
		return 0, false
	}
	return richErr.Code, richErr.Code != 0
}

func hasTextCode(err error, codes ...string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	for _, code := range codes {
		if richErr.TextCode == code {
			return true
		}
	}
	return false
}

func withDetails(sentinel *goerrors.Error, metadata map[string]any) *goerrors.Error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	clone.Source = sentinel
	return clone.WithMetadata(metadata)
}
