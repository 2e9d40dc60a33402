package backend

import (
	"fmt"
	"net/http"

	auth "github.com/goliatone/go-auth-guard"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultErrorMessage     = "An error occurred"
	MessageSessionExpired   = "Authentication required. Please log in again."
	MessageActionForbidden  = "You don't have permission to perform this action."
	MessageNoServerResponse = "No response from server. Please check your network connection."
)

// Description is the user facing summary of a failed API call
type Description struct {
	Message     string         `json:"message"`
	FieldErrors map[string]any `json:"field_errors,omitempty"`
}

// Describe turns err into a message suitable for a notification. Backend
// payloads may carry "error" or "message" and per field "errors".
func Describe(err error, fallback string) Description {
	if fallback == "" {
		fallback = DefaultErrorMessage
	}
	desc := Description{Message: fallback}

	var richErr *goerrors.Error
	if err == nil || !goerrors.As(err, &richErr) {
		return desc
	}

	switch richErr.TextCode {
	case auth.TextCodeBackendUnreachable:
		desc.Message = MessageNoServerResponse
		return desc
	case auth.TextCodeBackendFailure:
	default:
		return desc
	}

	payload, _ := richErr.Metadata["payload"].(map[string]any)
	if msg := payloadMessage(payload); msg != "" {
		desc.Message = msg
	}

	switch richErr.Code {
	case http.StatusUnauthorized:
		desc.Message = MessageSessionExpired
	case http.StatusForbidden:
		desc.Message = MessageActionForbidden
	case http.StatusNotFound:
		desc.Message = fmt.Sprintf("Resource not found: %s", desc.Message)
	case http.StatusUnprocessableEntity:
		desc.Message = fmt.Sprintf("Validation error: %s", desc.Message)
	}

	if fields, ok := payload["errors"].(map[string]any); ok && len(fields) > 0 {
		desc.FieldErrors = fields
	}

	return desc
}

// Report describes err and shows it as an error notification
func Report(notifier auth.Notifier, err error, fallback string) Description {
	desc := Describe(err, fallback)
	if notifier != nil {
		notifier.Error(desc.Message)
	}
	return desc
}
