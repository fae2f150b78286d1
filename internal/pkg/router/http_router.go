package router

import (
	"github.com/academyhq/academy-server/app/controllers"
	"github.com/academyhq/academy-server/internal/pkg/constants"
	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

// InstallRouter registers the public endpoints the payment providers call
// back into. These stay outside the rate-limited API group: throttling a
// provider's confirmation delivery would only trigger its retry logic.
func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Post(constants.WalletCallbackPath, controllers.HandleWalletCallback)
	app.Get(constants.CardCallbackPath, controllers.HandleCardCallback)

	// Landing pages after the card provider redirects the payer back.
	app.Get(constants.PaymentSuccessPath, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "approved"})
	})
	app.Get(constants.PaymentFailurePath, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "failed"})
	})
	app.Get(constants.PaymentErrorPath, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "error"})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
