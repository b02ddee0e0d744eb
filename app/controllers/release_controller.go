package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bountyhub-app/bountyhub/app/models"
	"github.com/bountyhub-app/bountyhub/app/repository"
	"github.com/bountyhub-app/bountyhub/internal/pkg/database"
	"github.com/bountyhub-app/bountyhub/internal/pkg/idempotency"
	"github.com/bountyhub-app/bountyhub/internal/pkg/notifications"
	"github.com/bountyhub-app/bountyhub/internal/pkg/wallet"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// releaseLedger is the slice of the wallet service the release flow needs.
type releaseLedger interface {
	CreateTransfer(ctx context.Context, userID uint, amountCents int64, externalRef string) (string, error)
	GetTransactionByExternalRef(ctx context.Context, externalRef string) (*models.WalletTransaction, error)
}

// releaseNotifier is the slice of the notification service the release flow
// needs.
type releaseNotifier interface {
	Notify(ctx context.Context, userID uint, notificationType, content string, referenceID uint) (*models.Notification, error)
}

var (
	releaseGuard         *idempotency.Guard
	releaseWallet        releaseLedger
	releaseCompletions   repository.CompletionRepository
	releaseNotifications releaseNotifier
)

// InitializeReleaseController wires the completion release flow against the
// global DB-backed collaborators.
func InitializeReleaseController() {
	repos := repository.GetGlobalRepositories()
	releaseGuard = idempotency.NewGuard(repos.Idempotency)
	releaseWallet = wallet.NewService(database.GetDB(), repos.Wallet)
	releaseCompletions = repos.Completion
	releaseNotifications = notifications.NewService(repos.Notification)
}

// CompletionCreateRequest is the body for POST /completions.
type CompletionCreateRequest struct {
	BountyID     uint  `json:"bounty_id" validate:"required"`
	HunterUserID uint  `json:"hunter_user_id" validate:"required"`
	PosterUserID uint  `json:"poster_user_id" validate:"required"`
	AmountCents  int64 `json:"amount_cents" validate:"required,gt=0"`
}

// HandleCreateCompletion records an accepted bounty submission awaiting
// payout release.
func HandleCreateCompletion(c *fiber.Ctx) error {
	var req CompletionCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	completion := &models.Completion{
		BountyID:     req.BountyID,
		HunterUserID: req.HunterUserID,
		PosterUserID: req.PosterUserID,
		AmountCents:  req.AmountCents,
	}
	if err := releaseCompletions.Create(ctx, completion); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "completion_create_failed"})
	}
	return c.Status(fiber.StatusCreated).JSON(completion)
}

// CompletionReleaseRequest is the body for POST /completion-release. The
// idempotency key is client-supplied and optional; without it retries are
// not deduplicated.
type CompletionReleaseRequest struct {
	CompletionID   uint   `json:"completion_id" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,min=8,max=191"`
}

// HandleCompletionRelease pays out an accepted bounty completion to the
// hunter, minus the platform fee. The flow is safe under retries and
// concurrent requests through two layers: the transfer ref is derived from
// the completion id, so a retry after a partial failure hits the ledger's
// unique external_ref instead of creating a second transfer; and the
// released flag is claimed with a conditional update, so of two concurrent
// requests exactly one wins the claim.
func HandleCompletionRelease(c *fiber.Ctx) error {
	var req CompletionReleaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	guarded := req.IdempotencyKey != ""
	if guarded {
		if err := releaseGuard.Begin(ctx, req.IdempotencyKey); err != nil {
			if errors.Is(err, idempotency.ErrDuplicateRequest) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "duplicate_request"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "idempotency_check_failed"})
		}
	}
	// Any failure after Begin must release the key so the client can retry.
	fail := func(status int, body fiber.Map) error {
		if guarded {
			if err := releaseGuard.Release(ctx, req.IdempotencyKey); err != nil {
				log.Printf("failed to release idempotency key: %v", err)
			}
		}
		return c.Status(status).JSON(body)
	}

	completion, err := releaseCompletions.GetByID(ctx, req.CompletionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(fiber.StatusUnprocessableEntity, fiber.Map{"error": "completion_not_found"})
		}
		return fail(fiber.StatusInternalServerError, fiber.Map{"error": "completion_lookup_failed"})
	}
	if completion.Released {
		return fail(fiber.StatusUnprocessableEntity, fiber.Map{"error": "already_released"})
	}

	fee := computeReleaseFee(completion.AmountCents)
	net := completion.AmountCents - fee
	if net <= 0 {
		return fail(fiber.StatusUnprocessableEntity, fiber.Map{"error": "amount_below_fee"})
	}

	// One ref per completion, not per attempt: a retry that reaches the
	// ledger again collides with the committed transfer instead of paying
	// twice.
	releaseRef := completionReleaseRef(completion.ID)
	txnID, err := releaseWallet.CreateTransfer(ctx, completion.HunterUserID, net, releaseRef)
	if err != nil {
		if errors.Is(err, wallet.ErrDuplicateTransaction) {
			// A prior attempt created the transfer but failed before settling
			// the released flag. Recover the committed transaction and finish
			// the claim below.
			txn, lookErr := releaseWallet.GetTransactionByExternalRef(ctx, releaseRef)
			if lookErr != nil {
				return fail(fiber.StatusInternalServerError, fiber.Map{"error": "transfer_lookup_failed"})
			}
			txnID = wallet.FormatTransactionID(txn.ID)
		} else {
			log.Printf("completion %d: transfer create failed: %v", completion.ID, err)
			return fail(fiber.StatusInternalServerError, fiber.Map{"error": "transfer_failed"})
		}
	}

	claimed, err := releaseCompletions.MarkReleased(ctx, completion.ID, fee, releaseRef)
	if err != nil {
		log.Printf("completion %d: mark released failed: %v", completion.ID, err)
		return fail(fiber.StatusInternalServerError, fiber.Map{"error": "release_persist_failed"})
	}
	if !claimed {
		// A concurrent request won the claim; its transfer is the payout.
		return fail(fiber.StatusUnprocessableEntity, fiber.Map{"error": "already_released"})
	}

	// Best-effort notification; the payout itself already committed.
	if _, err := releaseNotifications.Notify(ctx, completion.HunterUserID, "completion",
		"Your bounty payout is on its way", completion.ID); err != nil {
		log.Printf("completion %d: notify failed: %v", completion.ID, err)
	}

	if guarded {
		_ = releaseGuard.Commit(ctx, req.IdempotencyKey)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":             true,
		"transfer_ref":   releaseRef,
		"transaction_id": txnID,
		"fee_cents":      fee,
		"net_cents":      net,
	})
}

// HandleCompletionReleaseStatus reports whether a completion has been paid
// out and summarizes the backing wallet transaction.
func HandleCompletionReleaseStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_id"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	completion, err := releaseCompletions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "completion_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "completion_lookup_failed"})
	}

	resp := fiber.Map{
		"completion_id": completion.ID,
		"released":      completion.Released,
		"fee_cents":     completion.FeeCents,
	}
	if completion.ReleaseRef != "" {
		if txn, err := releaseWallet.GetTransactionByExternalRef(ctx, completion.ReleaseRef); err == nil {
			resp["last_transaction"] = fiber.Map{
				"id":           txn.ID,
				"type":         txn.Type,
				"status":       txn.Status,
				"amount_cents": txn.AmountCents,
				"transfer_id":  txn.TransferID,
			}
		}
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// completionReleaseRef is deterministic per completion so every release
// attempt for the same completion targets the same ledger row.
func completionReleaseRef(completionID uint) string {
	return fmt.Sprintf("rel_%d", completionID)
}

// computeReleaseFee is the platform cut: 10% of the bounty amount with a
// 50 cent floor, never more than the amount itself.
func computeReleaseFee(amountCents int64) int64 {
	fee := amountCents / 10
	if fee < 50 {
		fee = 50
	}
	if fee > amountCents {
		fee = amountCents
	}
	return fee
}
