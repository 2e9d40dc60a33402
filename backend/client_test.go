package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	auth "github.com/goliatone/go-auth-guard"
	"github.com/goliatone/go-auth-guard/backend"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientLogin(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, err := uuid.Parse(r.Header.Get(backend.HeaderRequestID))
		assert.NoError(t, err)

		var creds auth.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "jane", creds.Username)
		assert.Equal(t, "secret", creds.Password)

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "a.b.c",
			"user":         map[string]any{"id": 7, "username": "jane", "role": "staff"},
		})
	})

	client, err := backend.New(srv.URL + "/api/")
	require.NoError(t, err)

	result, err := client.Login(context.Background(), auth.Credentials{Username: "jane", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", result.AccessToken)
	assert.Equal(t, &auth.User{UserID: "7", Name: "jane", UserRole: "staff"}, result.User)
}

func TestClientFetchPermissionsSendsBearer(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/permissions", r.URL.Path)
		assert.Equal(t, "Bearer a.b.c", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"permissions": []string{"view_inventory"}})
	})

	client, err := backend.New(srv.URL + "/api")
	require.NoError(t, err)

	client.SetBearer("a.b.c")
	perms, err := client.FetchPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"view_inventory"}, perms)

	client.ClearBearer()
	assert.Empty(t, client.Bearer())
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     any
		category goerrors.Category
		message  string
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]any{"error": "bad token"}, goerrors.CategoryAuth, "bad token"},
		{"forbidden", http.StatusForbidden, map[string]any{"message": "nope"}, goerrors.CategoryAuthz, "nope"},
		{"not found", http.StatusNotFound, nil, goerrors.CategoryNotFound, "backend responded 404 Not Found"},
		{"validation", http.StatusUnprocessableEntity, map[string]any{"errors": map[string]any{"name": "required"}}, goerrors.CategoryValidation, "backend responded 422 Unprocessable Entity"},
		{"throttled", http.StatusTooManyRequests, map[string]any{"error": "slow down"}, goerrors.CategoryRateLimit, "slow down"},
		{"server", http.StatusInternalServerError, map[string]any{"error": "boom"}, goerrors.CategoryInternal, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.body == nil {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, tt.body)
			})

			client, err := backend.New(srv.URL)
			require.NoError(t, err)

			_, err = client.FetchPermissions(context.Background())
			require.Error(t, err)
			assert.True(t, auth.IsBackendFailure(err))

			status, ok := auth.BackendStatus(err)
			assert.True(t, ok)
			assert.Equal(t, tt.status, status)

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, tt.category, richErr.Category)
			assert.Equal(t, tt.message, richErr.Message)
			assert.Equal(t, tt.status, richErr.Metadata["status"])
		})
	}
}

func TestClientUnauthorizedHandler(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "expired"})
	})

	var calls atomic.Int32
	client, err := backend.New(srv.URL, backend.WithUnauthorizedHandler(func(context.Context) {
		calls.Add(1)
	}))
	require.NoError(t, err)

	_, err = client.Login(context.Background(), auth.Credentials{Username: "jane", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load(), "a rejected login is not a session expiry")

	_, err = client.FetchPermissions(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := backend.New(url)
	require.NoError(t, err)

	_, err = client.FetchPermissions(context.Background())
	require.Error(t, err)
	assert.True(t, auth.IsBackendFailure(err))
	_, ok := auth.BackendStatus(err)
	assert.False(t, ok)
	assert.Equal(t, backend.MessageNoServerResponse, backend.Describe(err, "").Message)
}

func TestClientRejectsInvalidBaseURL(t *testing.T) {
	_, err := backend.New("not a url")
	assert.Error(t, err)

	client, err := backend.New("")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestClientInvalidJSONResponse(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>"))
	})

	client, err := backend.New(srv.URL)
	require.NoError(t, err)

	_, err = client.FetchPermissions(context.Background())
	require.Error(t, err)
	assert.False(t, auth.IsBackendFailure(err))
}

func TestStoreWithClient(t *testing.T) {
	token := "eyJhbGciOiJIUzI1NiJ9." +
		"eyJzdWIiOiI3IiwidXNlcm5hbWUiOiJqYW5lIiwicm9sZSI6InN0YWZmIn0." +
		"sig"

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case backend.LoginPath:
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": token,
				"user":         map[string]any{"id": "7", "username": "jane", "role": "staff"},
			})
		case backend.PermissionsPath:
			if r.Header.Get("Authorization") != "Bearer "+token {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing token"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"permissions": []string{"view_inventory"}})
		default:
			http.NotFound(w, r)
		}
	})

	client, err := backend.New(srv.URL)
	require.NoError(t, err)

	store := auth.NewStore(client, nil)
	client.SetUnauthorizedHandler(store.HandleUnauthorized)

	_, err = store.Login(context.Background(), auth.Credentials{Username: "jane", Password: "secret"})
	require.NoError(t, err)

	session := store.Snapshot()
	assert.True(t, session.PermissionsLoaded)
	assert.True(t, session.HasPermission("view_inventory"))
	assert.Equal(t, token, client.Bearer())

	store.Logout(context.Background())
	assert.Empty(t, client.Bearer())
}
