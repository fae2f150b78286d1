package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/academyhq/academy-server/app/models"
	"github.com/academyhq/academy-server/internal/pkg/constants"
	"github.com/academyhq/academy-server/internal/pkg/database"
	"github.com/academyhq/academy-server/internal/pkg/env"
	"github.com/academyhq/academy-server/internal/pkg/notify"
	"github.com/academyhq/academy-server/internal/pkg/payments"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

const providerRequestTimeout = 20 * time.Second

// HandleWalletValidate performs the wallet provider's merchant handshake and
// returns the token/epoch pair the subsequent order creation needs.
func HandleWalletValidate(c *fiber.Ctx) error {
	broker := payments.NewBrokerFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), providerRequestTimeout)
	defer cancel()

	session, err := broker.Wallet().ValidateMerchant(ctx)
	if err != nil {
		var pe *payments.ProviderError
		if errors.As(err, &pe) && pe.StatusCode == fiber.StatusUnauthorized {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "merchant credentials rejected"})
		}
		return respondPaymentError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"token":      session.Token,
		"epochTime":  session.EpochTime,
		"merchantId": session.MerchantID,
		"cdnUrl":     session.CDNURL,
	})
}

// HandleWalletCreateOrder creates a wallet order from a previously obtained
// merchant session.
func HandleWalletCreateOrder(c *fiber.Ctx) error {
	var input payments.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "isClientError": true})
	}

	broker := payments.NewBrokerFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), providerRequestTimeout)
	defer cancel()

	result, err := broker.CreateOrder(ctx, models.PaymentProviderWallet, &input)
	if err != nil {
		return respondPaymentError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"orderData": result.OrderData})
}

// HandleCardCreateLink creates a hosted checkout link at the card provider.
func HandleCardCreateLink(c *fiber.Ctx) error {
	var input payments.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "isClientError": true})
	}

	broker := payments.NewBrokerFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), providerRequestTimeout)
	defer cancel()

	result, err := broker.CreateOrder(ctx, models.PaymentProviderCard, &input)
	if err != nil {
		return respondPaymentError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"paymentUrl": result.PaymentURL,
		"code":       result.Code,
	})
}

// HandleCardTokenize exchanges card details for a storable provider token.
func HandleCardTokenize(c *fiber.Ctx) error {
	var card payments.CardDetails
	if err := c.BodyParser(&card); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "isClientError": true})
	}

	broker := payments.NewBrokerFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), providerRequestTimeout)
	defer cancel()

	token, err := broker.TokenizeCard(ctx, &card)
	if err != nil {
		return respondPaymentError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"token":     token.Token,
		"cardToken": token.CardToken,
	})
}

// HandleWalletCallback receives the wallet provider's asynchronous
// confirmation. Duplicate deliveries are acknowledged without side effects;
// permanently-malformed payloads answer 400 so the provider stops retrying
// a request that can never succeed.
func HandleWalletCallback(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("X-Wallet-Signature"))
	secret := env.GetEnv("WALLET_WEBHOOK_SECRET", "")

	if secret == "" {
		// Known gap: unsigned callbacks are tolerated outside production
		// because sandbox deliveries of this provider are unsigned.
		if env.IsProduction() {
			log.Errorf("[Payments] WALLET_WEBHOOK_SECRET is not configured in production, rejecting callback")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "signature verification unavailable"})
		}
		log.Warnf("[Payments] WALLET_WEBHOOK_SECRET not set, accepting unsigned callback")
	} else if !payments.VerifyWalletCallbackSignature(rawBody, signature, secret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
	}

	reconciler := payments.NewReconcilerFromDB(database.GetDB(), notify.NewMailNotifier(database.GetDB()))
	ctx, cancel := context.WithTimeout(context.Background(), providerRequestTimeout)
	defer cancel()

	result, err := reconciler.HandleCallback(ctx, models.PaymentProviderWallet, rawBody)
	if err != nil {
		if payments.IsClientError(err) {
			log.Warnf("[Payments] malformed wallet callback: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed callback"})
		}
		log.Errorf("[Payments] wallet callback processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "callback processing failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":        true,
		"duplicate": result.Duplicate,
		"ignored":   result.Ignored,
	})
}

// HandleCardCallback receives the card provider's browser redirect
// confirmation as query parameters and forwards the payer to the matching
// result page. Processing failures land on a generic error page, never an
// exception response.
func HandleCardCallback(c *fiber.Ctx) error {
	rawQuery := append([]byte(nil), c.Request().URI().QueryString()...)

	reconciler := payments.NewReconcilerFromDB(database.GetDB(), notify.NewMailNotifier(database.GetDB()))
	ctx, cancel := context.WithTimeout(context.Background(), providerRequestTimeout)
	defer cancel()

	result, err := reconciler.HandleCallback(ctx, models.PaymentProviderCard, rawQuery)
	if err != nil {
		log.Errorf("[Payments] card callback processing failed: %v", err)
		return c.Redirect(constants.PaymentErrorPath, fiber.StatusSeeOther)
	}
	if result.Ignored || result.Payment == nil {
		return c.Redirect(constants.PaymentErrorPath, fiber.StatusSeeOther)
	}

	if result.Payment.Status == models.PaymentStatusApproved {
		return c.Redirect(constants.PaymentSuccessPath, fiber.StatusSeeOther)
	}
	return c.Redirect(constants.PaymentFailurePath, fiber.StatusSeeOther)
}

// HandleListUnlinkedPayments lists ledger entries flagged for manual review
// (no entity could be linked automatically). Admin API key protected.
func HandleListUnlinkedPayments(c *fiber.Ctx) error {
	repo := payments.NewRepository(database.GetDB())
	entries, err := repo.ListNeedsReview()
	if err != nil {
		log.Errorf("[Payments] listing unlinked payments failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"payments": entries})
}
