package router

import (
	"github.com/agenciohq/agencio/app/controllers"
	"github.com/agenciohq/agencio/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Agencio API",
		})
	})

	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware())
	v1.Get("/leads", controllers.HandleListLeadsAPI)
	v1.Get("/leads/:provider/:external_id", controllers.HandleGetLeadAPI)
	v1.Get("/leads/:provider/:external_id/messages", controllers.HandleListLeadMessagesAPI)
	v1.Get("/subscriptions", controllers.HandleListSubscriptionsAPI)
	v1.Get("/subscriptions/:subscription_ref/invoices", controllers.HandleListInvoicesAPI)
	v1.Get("/templates", controllers.HandleListTemplatesAPI)
	v1.Post("/templates", controllers.HandleCreateTemplateAPI)
	v1.Get("/stats/webhooks", controllers.HandleWebhookStatsAPI)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
