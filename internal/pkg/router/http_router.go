package router

import (
	"github.com/agenciohq/agencio/app/controllers"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Build the verify/normalize/reconcile/dispatch pipeline before any
	// route can fire.
	controllers.InitializeWebhookController()

	app.Get("/", controllers.HandleHealthCheck)
	app.Get("/health", controllers.HandleHealthCheck)

	webhooks := app.Group("/webhooks")
	webhooks.Get("/leadgen", controllers.HandleLeadgenVerify)
	webhooks.Post("/leadgen", controllers.HandleLeadgenWebhook)
	webhooks.Get("/messaging", controllers.HandleMessagingVerify)
	webhooks.Post("/messaging", controllers.HandleMessagingWebhook)
	webhooks.Post("/payments", controllers.HandlePaymentsWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
