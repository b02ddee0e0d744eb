package notifications

import (
	"context"
	"log"
	"strconv"

	"github.com/bountyhub-app/bountyhub/app/models"
	"github.com/bountyhub-app/bountyhub/app/repository"
	"github.com/bountyhub-app/bountyhub/internal/pkg/cache"
)

const unreadCountersKey = "notifications:counters:unread"

// Service delivers user-facing notifications. Unread counts are tracked in a
// Redis hash alongside the DB rows; the DB count is the fallback when the
// cache is unavailable.
type Service struct {
	repo repository.NotificationRepository
}

// NewService creates a notification service from an injected repository.
func NewService(repo repository.NotificationRepository) *Service {
	return &Service{repo: repo}
}

// Notify creates a notification row and bumps the cached unread counter.
func (s *Service) Notify(ctx context.Context, userID uint, notificationType, content string, referenceID uint) (*models.Notification, error) {
	notification := &models.Notification{
		UserID:      userID,
		Type:        notificationType,
		Content:     content,
		ReferenceID: referenceID,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	field := strconv.FormatUint(uint64(userID), 10)
	if err := cache.GetClient().HIncrBy(ctx, unreadCountersKey, field, 1).Err(); err != nil {
		log.Printf("failed to bump unread counter for user %d: %v", userID, err)
	}
	return notification, nil
}

// ListForUser returns the newest notifications for a user.
func (s *Service) ListForUser(ctx context.Context, userID uint, offset, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, offset, limit)
}

// MarkRead flags a notification read and refreshes the cached counter from
// the DB so the two cannot drift apart.
func (s *Service) MarkRead(ctx context.Context, id uint) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return err
	}

	count, err := s.repo.CountUnread(ctx, notification.UserID)
	if err == nil {
		field := strconv.FormatUint(uint64(notification.UserID), 10)
		if err := cache.GetClient().HSet(ctx, unreadCountersKey, field, count).Err(); err != nil {
			log.Printf("failed to refresh unread counter for user %d: %v", notification.UserID, err)
		}
	}
	return nil
}

// UnreadCount prefers the cached counter and falls back to the DB.
func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	field := strconv.FormatUint(uint64(userID), 10)
	if cached, err := cache.GetClient().HGet(ctx, unreadCountersKey, field).Int64(); err == nil {
		return cached, nil
	}
	return s.repo.CountUnread(ctx, userID)
}
