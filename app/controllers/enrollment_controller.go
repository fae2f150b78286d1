package controllers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/academyhq/academy-server/internal/pkg/pending"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// HandleStageEnrollment stages enrollment form data ahead of a payment
// attempt and returns the one-time token the client presents after the
// payment flow returns.
func HandleStageEnrollment(c *fiber.Ctx) error {
	body := c.Body()
	if !json.Valid(body) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "body must be valid JSON"})
	}

	token, err := pending.GetStore().Stage(append(json.RawMessage(nil), body...))
	if err != nil {
		log.Errorf("[Enrollment] staging failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "staging failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"token":     token,
		"expiresIn": int(pending.TTL.Seconds()),
	})
}

// HandleConsumeEnrollment retrieves staged enrollment data exactly once.
// Expired tokens answer 410 so the client can distinguish "start over" from
// "never existed".
func HandleConsumeEnrollment(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token is required"})
	}

	payload, err := pending.GetStore().Consume(token)
	if err != nil {
		switch {
		case errors.Is(err, pending.ErrExpired):
			return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "token expired"})
		case errors.Is(err, pending.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "token not found"})
		default:
			log.Errorf("[Enrollment] consume failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": payload})
}
