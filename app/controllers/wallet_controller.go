package controllers

import (
	"context"
	"time"

	"github.com/bountyhub-app/bountyhub/app/repository"
	"github.com/bountyhub-app/bountyhub/internal/pkg/database"
	"github.com/bountyhub-app/bountyhub/internal/pkg/wallet"
	"github.com/gofiber/fiber/v2"
)

var walletReadService *wallet.Service

// InitializeWalletController wires the wallet read endpoints.
func InitializeWalletController() {
	walletReadService = wallet.NewService(database.GetDB(), repository.GetGlobalRepositories().Wallet)
}

// HandleListWalletTransactions lists a user's ledger entries, newest first.
func HandleListWalletTransactions(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "user_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_user_id"})
	}
	offset := int(parseUintQuery(c, "offset", 0))
	limit := int(parseUintQuery(c, "limit", 50))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	txns, err := walletReadService.ListTransactions(ctx, userID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "transaction_list_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"user_id": userID, "transactions": txns})
}
