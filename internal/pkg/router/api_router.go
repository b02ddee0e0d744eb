package router

import (
	"github.com/bountyhub-app/bountyhub/app/controllers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// Initialize controllers with repositories
	controllers.InitializeWebhookController()
	controllers.InitializeReleaseController()
	controllers.InitializeWalletController()
	controllers.InitializeNotificationController()
	controllers.InitializeRiskController()

	api := app.Group("/api", limiter.New(limiter.Config{
		// Webhook retries from the provider must never be rate limited into
		// a retry storm.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/v1/webhooks/stripe"
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	v1.Get("/ping", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
	})

	v1.Post("/webhooks/stripe", controllers.HandleStripeWebhook)

	v1.Post("/completions", controllers.HandleCreateCompletion)
	v1.Post("/completion-release", controllers.HandleCompletionRelease)
	v1.Get("/completion-release/:id/status", controllers.HandleCompletionReleaseStatus)

	v1.Get("/wallets/:user_id/transactions", controllers.HandleListWalletTransactions)

	v1.Post("/notifications", controllers.HandleCreateNotification)
	v1.Get("/notifications", controllers.HandleListNotifications)
	v1.Patch("/notifications/:id/read", controllers.HandleMarkNotificationRead)
	v1.Get("/notifications/unread-count", controllers.HandleUnreadNotificationCount)

	v1.Post("/risk/actions", controllers.HandleCreateRiskAction)
	v1.Get("/risk/actions", controllers.HandleListRiskActions)
	v1.Patch("/risk/actions/:uuid/resolve", controllers.HandleResolveRiskAction)

	v1.Get("/admin/analytics", controllers.HandleAdminAnalytics)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
