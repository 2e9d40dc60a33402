package backend_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-guard"
	"github.com/goliatone/go-auth-guard/backend"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func failure(status int, payload map[string]any) error {
	return goerrors.New("failed", goerrors.CategoryInternal).
		WithTextCode(auth.TextCodeBackendFailure).
		WithCode(status).
		WithMetadata(map[string]any{"status": status, "payload": payload})
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		message  string
		fields   map[string]any
	}{
		{"nil error", nil, "", backend.DefaultErrorMessage, nil},
		{"plain error", errors.New("boom"), "Could not save", "Could not save", nil},
		{"payload error key", failure(http.StatusBadRequest, map[string]any{"error": "Name taken"}), "", "Name taken", nil},
		{"payload message key", failure(http.StatusInternalServerError, map[string]any{"message": "Try later"}), "", "Try later", nil},
		{"unauthorized", failure(http.StatusUnauthorized, map[string]any{"error": "expired"}), "", backend.MessageSessionExpired, nil},
		{"forbidden", failure(http.StatusForbidden, nil), "", backend.MessageActionForbidden, nil},
		{"not found", failure(http.StatusNotFound, map[string]any{"error": "item 4"}), "", "Resource not found: item 4", nil},
		{
			"validation with fields",
			failure(http.StatusUnprocessableEntity, map[string]any{
				"message": "bad item",
				"errors":  map[string]any{"quantity": "must be positive"},
			}),
			"",
			"Validation error: bad item",
			map[string]any{"quantity": "must be positive"},
		},
		{
			"unreachable",
			goerrors.New("no response", goerrors.CategoryOperation).WithTextCode(auth.TextCodeBackendUnreachable),
			"Could not load",
			backend.MessageNoServerResponse,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := backend.Describe(tt.err, tt.fallback)
			assert.Equal(t, tt.message, desc.Message)
			assert.Equal(t, tt.fields, desc.FieldErrors)
		})
	}
}

type errorRecorder struct {
	messages []string
}

func (r *errorRecorder) Info(string, ...time.Duration) uint64    { return 0 }
func (r *errorRecorder) Warning(string, ...time.Duration) uint64 { return 0 }
func (r *errorRecorder) Error(message string, _ ...time.Duration) uint64 {
	r.messages = append(r.messages, message)
	return uint64(len(r.messages))
}

func TestReportNotifies(t *testing.T) {
	rec := &errorRecorder{}

	desc := backend.Report(rec, failure(http.StatusForbidden, nil), "")

	assert.Equal(t, backend.MessageActionForbidden, desc.Message)
	assert.Equal(t, []string{backend.MessageActionForbidden}, rec.messages)
	assert.NotPanics(t, func() {
		backend.Report(nil, errors.New("x"), "")
	})
}
