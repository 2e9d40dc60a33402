package mockapi

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	auth "github.com/goliatone/go-auth-guard"
	"github.com/goliatone/go-router"
)

const (
	LoginPath       = "/login"
	PermissionsPath = "/permissions"

	// Prefix is where the routes are mounted by NewServer
	Prefix = "/api"
)

// LoginResponse is the body of a successful login
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	User        auth.User `json:"user"`
}

// PermissionsResponse is the body of a successful permissions request
type PermissionsResponse struct {
	Permissions []string `json:"permissions"`
}

// Controller holds the HTTP handlers
type Controller struct {
	svc    *Service
	logger auth.Logger
}

func NewController(svc *Service) *Controller {
	return &Controller{svc: svc, logger: svc.logger}
}

// RegisterRoutes mounts the login and permissions endpoints on app
func RegisterRoutes[T any](app router.Router[T], svc *Service) *Controller {
	controller := NewController(svc)

	app.Post(LoginPath, controller.Login).SetName("api.login.post")
	app.Get(PermissionsPath, controller.Permissions).SetName("api.permissions.get")

	return controller
}

func (c *Controller) Login(ctx router.Context) error {
	payload := new(auth.Credentials)
	if err := ctx.Bind(payload); err != nil {
		c.logger.Error("login parse payload: %v", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "Invalid request body",
		})
	}

	credentials := payload.Normalize()
	if err := credentials.Validate(); err != nil {
		return ctx.JSON(http.StatusUnprocessableEntity, map[string]any{
			"error":  "Validation failed",
			"errors": fieldErrors(err),
		})
	}

	token, user, err := c.svc.Login(ctx.Context(), credentials.Username, credentials.Password)
	if err != nil {
		return ctx.JSON(statusOf(err), map[string]any{
			"error": publicMessage(err),
		})
	}

	return ctx.JSON(router.StatusOK, LoginResponse{
		AccessToken: token,
		User:        user,
	})
}

func (c *Controller) Permissions(ctx router.Context) error {
	token, ok := bearerToken(ctx.GetString("Authorization", ""))
	if !ok {
		return ctx.JSON(router.StatusUnauthorized, map[string]any{
			"error": ErrInvalidToken.Message,
		})
	}

	perms, err := c.svc.Permissions(ctx.Context(), token)
	if err != nil {
		return ctx.JSON(statusOf(err), map[string]any{
			"error": publicMessage(err),
		})
	}

	return ctx.JSON(router.StatusOK, PermissionsResponse{Permissions: perms})
}

func bearerToken(header string) (string, bool) {
	const scheme = "Bearer"
	header = strings.TrimSpace(header)
	if len(header) <= len(scheme)+1 || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(scheme):])
	return token, token != ""
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	verrs, ok := err.(validation.Errors)
	if !ok {
		out["form"] = err.Error()
		return out
	}
	for field, ferr := range verrs {
		if ferr != nil {
			out[field] = ferr.Error()
		}
	}
	return out
}
