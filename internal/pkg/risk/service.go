package risk

import (
	"context"
	"errors"
	"strings"

	"github.com/bountyhub-app/bountyhub/app/models"
	"github.com/bountyhub-app/bountyhub/app/repository"
	"github.com/google/uuid"
)

// Service records compliance actions against user accounts. A hold_payouts
// action also flips the user's payout flag; clear restores it.
type Service struct {
	actions repository.RiskActionRepository
	users   repository.UserRepository
}

// NewService creates a risk service from injected repositories.
func NewService(actions repository.RiskActionRepository, users repository.UserRepository) *Service {
	return &Service{actions: actions, users: users}
}

// TakeAction records a new compliance action and applies its account-level
// side effect.
func (s *Service) TakeAction(ctx context.Context, userID uint, action, reason string) (*models.RiskAction, error) {
	action = strings.TrimSpace(action)
	switch action {
	case models.RiskActionFlagUser, models.RiskActionHoldPayouts, models.RiskActionClear:
	default:
		return nil, errors.New("unknown risk action")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	record := &models.RiskAction{
		ActionUUID: uuid.NewString(),
		UserID:     userID,
		Action:     action,
		Reason:     reason,
		Status:     models.RiskActionStatusOpen,
	}
	if err := s.actions.Create(ctx, record); err != nil {
		return nil, err
	}

	switch action {
	case models.RiskActionHoldPayouts:
		user.PayoutsEnabled = false
		err = s.users.Update(ctx, user)
	case models.RiskActionClear:
		user.PayoutsEnabled = true
		err = s.users.Update(ctx, user)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Resolve closes an open action.
func (s *Service) Resolve(ctx context.Context, actionUUID string) error {
	if _, err := s.actions.GetByUUID(ctx, actionUUID); err != nil {
		return err
	}
	return s.actions.Resolve(ctx, actionUUID)
}

// ListForUser returns all actions recorded against a user.
func (s *Service) ListForUser(ctx context.Context, userID uint) ([]models.RiskAction, error) {
	return s.actions.ListByUser(ctx, userID)
}

// List returns actions across all users, newest first.
func (s *Service) List(ctx context.Context, offset, limit int) ([]models.RiskAction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.actions.List(ctx, offset, limit)
}
