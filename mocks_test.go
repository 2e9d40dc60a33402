package auth_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-guard"
	"github.com/goliatone/go-auth-guard/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBackend implements auth.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Login(ctx context.Context, credentials auth.Credentials) (*auth.LoginResult, error) {
	args := m.Called(ctx, credentials)
	result, _ := args.Get(0).(*auth.LoginResult)
	return result, args.Error(1)
}

func (m *MockBackend) FetchPermissions(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	perms, _ := args.Get(0).([]string)
	return perms, args.Error(1)
}

// MockHeader records the default authorization header
type MockHeader struct {
	mu     sync.Mutex
	bearer string
	sets   int
	clears int
}

func (m *MockHeader) SetBearer(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bearer = token
	m.sets++
}

func (m *MockHeader) ClearBearer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bearer = ""
	m.clears++
}

func (m *MockHeader) Bearer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bearer
}

// MockNotifier records notifications by severity
type MockNotifier struct {
	mu       sync.Mutex
	infos    []string
	warnings []string
	errors   []string
}

func (m *MockNotifier) Info(message string, _ ...time.Duration) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, message)
	return uint64(len(m.infos))
}

func (m *MockNotifier) Warning(message string, _ ...time.Duration) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, message)
	return uint64(len(m.warnings))
}

func (m *MockNotifier) Error(message string, _ ...time.Duration) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, message)
	return uint64(len(m.errors))
}

func (m *MockNotifier) Infos() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.infos...)
}

func (m *MockNotifier) Warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warnings...)
}

func (m *MockNotifier) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.infos) + len(m.warnings) + len(m.errors)
}

// CountingStorage wraps storage.Memory and counts reads
type CountingStorage struct {
	*storage.Memory
	gets atomic.Int32
}

func NewCountingStorage(seed ...map[string]string) *CountingStorage {
	return &CountingStorage{Memory: storage.NewMemory(seed...)}
}

func (c *CountingStorage) Get(ctx context.Context, key string) (string, bool, error) {
	c.gets.Add(1)
	return c.Memory.Get(ctx, key)
}

func (c *CountingStorage) Gets() int {
	return int(c.gets.Load())
}

// FailingStorage fails the configured operations
type FailingStorage struct {
	*storage.Memory
	FailGet    bool
	FailSet    bool
	FailRemove bool
}

var errStorageDown = errors.New("storage unavailable")

func (f *FailingStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if f.FailGet {
		return "", false, errStorageDown
	}
	return f.Memory.Get(ctx, key)
}

func (f *FailingStorage) Set(ctx context.Context, key, value string) error {
	if f.FailSet {
		return errStorageDown
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *FailingStorage) Remove(ctx context.Context, key string) error {
	if f.FailRemove {
		return errStorageDown
	}
	return f.Memory.Remove(ctx, key)
}

type testLogger struct {
	t *testing.T
}

func (l testLogger) Debug(format string, args ...any) { l.t.Logf("[DBG] "+format, args...) }
func (l testLogger) Info(format string, args ...any)  { l.t.Logf("[INF] "+format, args...) }
func (l testLogger) Warn(format string, args ...any)  { l.t.Logf("[WRN] "+format, args...) }
func (l testLogger) Error(format string, args ...any) { l.t.Logf("[ERR] "+format, args...) }

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func signToken(t *testing.T, id, username, role string) string {
	t.Helper()
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Username: username,
		UserRole: role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func loginResult(t *testing.T, id, username, role string) *auth.LoginResult {
	return &auth.LoginResult{
		AccessToken: signToken(t, id, username, role),
		User: &auth.User{
			UserID:   id,
			Name:     username,
			UserRole: role,
		},
	}
}

func goodbye(username string) string {
	return fmt.Sprintf("Goodbye, %s! You've been logged out.", username)
}
