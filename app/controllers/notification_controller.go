package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/bountyhub-app/bountyhub/app/repository"
	"github.com/bountyhub-app/bountyhub/internal/pkg/notifications"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var notificationService *notifications.Service

// InitializeNotificationController wires the notification service.
func InitializeNotificationController() {
	notificationService = notifications.NewService(repository.GetGlobalRepositories().Notification)
}

// CreateNotificationRequest is the body for POST /notifications.
type CreateNotificationRequest struct {
	UserID      uint   `json:"user_id" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=payment payout bounty completion risk system"`
	Content     string `json:"content" validate:"required,max=2000"`
	ReferenceID uint   `json:"reference_id"`
}

// HandleCreateNotification creates a notification for a user.
func HandleCreateNotification(c *fiber.Ctx) error {
	var req CreateNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notification, err := notificationService.Notify(ctx, req.UserID, req.Type, req.Content, req.ReferenceID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "notification_create_failed"})
	}
	return c.Status(fiber.StatusCreated).JSON(notification)
}

// HandleListNotifications lists a user's notifications, newest first.
func HandleListNotifications(c *fiber.Ctx) error {
	userID := parseUintQuery(c, "user_id", 0)
	if userID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id_required"})
	}
	offset := int(parseUintQuery(c, "offset", 0))
	limit := int(parseUintQuery(c, "limit", 50))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := notificationService.ListForUser(ctx, userID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "notification_list_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"notifications": list})
}

// HandleMarkNotificationRead marks one notification as read.
func HandleMarkNotificationRead(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_id"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := notificationService.MarkRead(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "notification_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "notification_update_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleUnreadNotificationCount returns the unread badge count for a user.
func HandleUnreadNotificationCount(c *fiber.Ctx) error {
	userID := parseUintQuery(c, "user_id", 0)
	if userID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id_required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := notificationService.UnreadCount(ctx, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "notification_count_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"user_id": userID, "unread": count})
}
