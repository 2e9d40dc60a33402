package mockapi

import (
	"context"
	"net/http"
	"sync"

	auth "github.com/goliatone/go-auth-guard"
)

var (
	_ auth.Backend             = (*Backend)(nil)
	_ auth.AuthorizationHeader = (*Backend)(nil)
)

// Backend calls the service in process. Failures carry the same text code
// and status the HTTP client would report.
type Backend struct {
	svc            *Service
	onUnauthorized func(ctx context.Context)

	mu     sync.RWMutex
	bearer string
}

// Backend returns an in-process auth.Backend bound to the service
func (s *Service) Backend() *Backend {
	return &Backend{svc: s}
}

// SetUnauthorizedHandler is called when a permissions request is rejected
// with a 401
func (b *Backend) SetUnauthorizedHandler(fn func(ctx context.Context)) {
	b.mu.Lock()
	b.onUnauthorized = fn
	b.mu.Unlock()
}

func (b *Backend) SetBearer(token string) {
	b.mu.Lock()
	b.bearer = token
	b.mu.Unlock()
}

func (b *Backend) ClearBearer() {
	b.mu.Lock()
	b.bearer = ""
	b.mu.Unlock()
}

func (b *Backend) Bearer() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bearer
}

func (b *Backend) Login(ctx context.Context, credentials auth.Credentials) (*auth.LoginResult, error) {
	token, user, err := b.svc.Login(ctx, credentials.Username, credentials.Password)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, asBackendFailure(err, http.MethodPost, LoginPath)
	}
	return &auth.LoginResult{AccessToken: token, User: &user}, nil
}

func (b *Backend) FetchPermissions(ctx context.Context) ([]string, error) {
	perms, err := b.svc.Permissions(ctx, b.Bearer())
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		failure := asBackendFailure(err, http.MethodGet, PermissionsPath)
		if statusOf(err) == http.StatusUnauthorized {
			b.mu.RLock()
			handler := b.onUnauthorized
			b.mu.RUnlock()
			if handler != nil {
				handler(ctx)
			}
		}
		return nil, failure
	}
	return perms, nil
}
