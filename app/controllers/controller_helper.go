package controllers

import (
	"errors"

	"github.com/academyhq/academy-server/internal/pkg/payments"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// respondPaymentError maps the payment error taxonomy onto HTTP responses.
// Client mistakes answer 400 with the concrete reason; upstream and
// deployment failures answer 500 with a generic message while the detail
// goes to the log. The isClientError flag tells callers whether retrying
// the same input can ever succeed.
func respondPaymentError(c *fiber.Ctx, err error) error {
	var ve *payments.ValidationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":         ve.Error(),
			"isClientError": true,
		})
	}

	var ce *payments.ConfigurationError
	if errors.As(err, &ce) {
		log.Errorf("[Payments] configuration error: %v", ce)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":         "payment provider is not configured",
			"isClientError": false,
		})
	}

	var pe *payments.ProviderError
	if errors.As(err, &pe) {
		log.Errorf("[Payments] provider error: %v", pe)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":         "payment provider request failed",
			"isClientError": false,
		})
	}

	log.Errorf("[Payments] unexpected error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":         "internal error",
		"isClientError": false,
	})
}
