package mockapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// NewServer builds a fiber backed server with the API mounted under Prefix
func NewServer(svc *Service) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               "inventory mock api",
			DisableStartupMessage: true,
			StrictRouting:         false,
			BodyLimit:             64 * 1024,
		}))
	})

	RegisterRoutes(srv.Router().Group(Prefix), svc)

	return srv
}
