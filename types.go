package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated subject
type Identity interface {
	ID() string
	Username() string
	Role() string
}

// Backend is the remote API consumed by the session store
type Backend interface {
	Login(ctx context.Context, credentials Credentials) (*LoginResult, error)
	FetchPermissions(ctx context.Context) ([]string, error)
}

// LoginResult is the payload returned by a successful backend login
type LoginResult struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// Storage persists values across application runs. Get reports whether
// the key was present.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// AuthorizationHeader manages the default bearer token attached to
// outgoing backend requests.
type AuthorizationHeader interface {
	SetBearer(token string)
	ClearBearer()
}

// Notifier surfaces auth related events to the user. Omitting timeout
// selects the severity default, an explicit zero never auto-dismisses.
type Notifier interface {
	Info(message string, timeout ...time.Duration) uint64
	Warning(message string, timeout ...time.Duration) uint64
	Error(message string, timeout ...time.Duration) uint64
}

// Config holds session and navigation options
type Config interface {
	GetLoginRoute() string
	GetFallbackRoute() string
	GetRedirectParam() string
	GetStorageKey() string
	GetElevatedRoles() []string
	GetRequestTimeout() time.Duration
}

const (
	DefaultLoginRoute     = "/login"
	DefaultFallbackRoute  = "/dashboard"
	DefaultRedirectParam  = "redirect"
	DefaultStorageKey     = "token"
	DefaultRequestTimeout = 30 * time.Second
)

type defConfig struct{}

func (defConfig) GetLoginRoute() string            { return DefaultLoginRoute }
func (defConfig) GetFallbackRoute() string         { return DefaultFallbackRoute }
func (defConfig) GetRedirectParam() string         { return DefaultRedirectParam }
func (defConfig) GetStorageKey() string            { return DefaultStorageKey }
func (defConfig) GetElevatedRoles() []string       { return []string{RoleAdmin} }
func (defConfig) GetRequestTimeout() time.Duration { return DefaultRequestTimeout }

// DefaultConfig returns the built in configuration
func DefaultConfig() Config {
	return defConfig{}
}

func normalizeConfig(cfg Config) Config {
	if cfg == nil {
		return defConfig{}
	}
	return cfg
}

type noopNotifier struct{}

func (noopNotifier) Info(string, ...time.Duration) uint64    { return 0 }
func (noopNotifier) Warning(string, ...time.Duration) uint64 { return 0 }
func (noopNotifier) Error(string, ...time.Duration) uint64   { return 0 }

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

type noopHeader struct{}

func (noopHeader) SetBearer(string) {}
func (noopHeader) ClearBearer()     {}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
