package router

import (
	"github.com/academyhq/academy-server/app/controllers"
	"github.com/academyhq/academy-server/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	v1 := api.Group("/v1")

	wallet := v1.Group("/payments/wallet")
	wallet.Post("/validate", controllers.HandleWalletValidate)
	wallet.Post("/orders", controllers.HandleWalletCreateOrder)

	card := v1.Group("/payments/card")
	card.Post("/links", controllers.HandleCardCreateLink)
	card.Post("/tokens", controllers.HandleCardTokenize)

	v1.Get("/payments/unlinked", middleware.APIKeyAuthMiddleware(), controllers.HandleListUnlinkedPayments)

	staging := v1.Group("/enrollments/staging")
	staging.Post("/", controllers.HandleStageEnrollment)
	staging.Get("/", controllers.HandleConsumeEnrollment)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
