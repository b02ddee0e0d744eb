package controllers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/bountyhub-app/bountyhub/app/repository"
	"github.com/bountyhub-app/bountyhub/internal/pkg/database"
	"github.com/bountyhub-app/bountyhub/internal/pkg/env"
	"github.com/bountyhub-app/bountyhub/internal/pkg/payments"
	"github.com/bountyhub-app/bountyhub/internal/pkg/wallet"
	"github.com/gofiber/fiber/v2"
)

var webhookDispatcher *payments.Dispatcher

// InitializeWebhookController wires the event dispatcher against the global
// DB-backed collaborators.
func InitializeWebhookController() {
	repos := repository.GetGlobalRepositories()
	ledger := wallet.NewService(database.GetDB(), repos.Wallet)
	registry := payments.NewHandlerRegistry(ledger, repos.User)

	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	if secret == "" {
		log.Print("STRIPE_WEBHOOK_SECRET is not set; webhook processing will fail until configured")
	}
	webhookDispatcher = payments.NewDispatcher(repos.WebhookEvent, registry, secret, payments.DefaultSignatureTolerance)
}

// SetWebhookDispatcher overrides the dispatcher instance (used by tests).
func SetWebhookDispatcher(d *payments.Dispatcher) {
	webhookDispatcher = d
}

// HandleStripeWebhook ingests one provider webhook delivery. The raw body is
// copied before anything parses it because the signature covers the exact
// bytes as received.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := webhookDispatcher.Handle(ctx, rawBody, signature)
	switch outcome {
	case payments.OutcomeAccepted:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	case payments.OutcomeDuplicate:
		// Acknowledge duplicates so the provider stops retrying.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case payments.OutcomeBadSignature:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	case payments.OutcomeBadPayload:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	default:
		log.Printf("webhook processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}
}
