package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/bountyhub-app/bountyhub/app/repository"
	"github.com/bountyhub-app/bountyhub/internal/pkg/risk"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var riskService *risk.Service

// InitializeRiskController wires the risk service.
func InitializeRiskController() {
	repos := repository.GetGlobalRepositories()
	riskService = risk.NewService(repos.RiskAction, repos.User)
}

// RiskActionRequest is the body for POST /risk/actions.
type RiskActionRequest struct {
	UserID uint   `json:"user_id" validate:"required"`
	Action string `json:"action" validate:"required,oneof=flag_user hold_payouts clear"`
	Reason string `json:"reason" validate:"required,max=2000"`
}

// HandleCreateRiskAction records a compliance action against a user.
func HandleCreateRiskAction(c *fiber.Ctx) error {
	var req RiskActionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	action, err := riskService.TakeAction(ctx, req.UserID, req.Action, req.Reason)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "risk_action_failed"})
	}
	return c.Status(fiber.StatusCreated).JSON(action)
}

// HandleListRiskActions lists recorded actions, optionally filtered by user.
func HandleListRiskActions(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if userID := parseUintQuery(c, "user_id", 0); userID != 0 {
		actions, err := riskService.ListForUser(ctx, userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "risk_list_failed"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"actions": actions})
	}

	offset := int(parseUintQuery(c, "offset", 0))
	limit := int(parseUintQuery(c, "limit", 50))
	actions, err := riskService.List(ctx, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "risk_list_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"actions": actions})
}

// HandleResolveRiskAction closes an open action by its uuid.
func HandleResolveRiskAction(c *fiber.Ctx) error {
	actionUUID := c.Params("uuid")
	if actionUUID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_uuid"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := riskService.Resolve(ctx, actionUUID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "action_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "risk_resolve_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
