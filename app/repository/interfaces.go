package repository

import (
	"context"

	"github.com/bountyhub-app/bountyhub/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByStripeAccountID(ctx context.Context, accountID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SetPayoutsEnabled(ctx context.Context, stripeAccountID string, enabled bool) error
	List(ctx context.Context, offset, limit int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}

// WebhookEventRepository defines the event store for inbound provider events.
// CreateIfNotExists is the atomic check-and-insert: the unique
// (provider, provider_event_id) index decides the race, not a prior read.
type WebhookEventRepository interface {
	CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint) error
	RecordFailure(ctx context.Context, id uint, processingError string) error
	GetByProviderEventID(ctx context.Context, provider, providerEventID string) (*models.WebhookEvent, error)
	ListUnprocessed(ctx context.Context, limit int) ([]models.WebhookEvent, error)
}

// WalletRepository defines balance and transaction persistence. Mutating
// operations take the surrounding transaction handle, which already carries
// the caller's context, and must run while the wallet row lock for the
// affected user is held.
type WalletRepository interface {
	GetOrCreateWalletForUpdate(tx *gorm.DB, userID uint) (*models.Wallet, error)
	SaveWallet(tx *gorm.DB, wallet *models.Wallet) error
	CreateTransaction(tx *gorm.DB, txn *models.WalletTransaction) error
	GetTransactionByExternalRef(ctx context.Context, externalRef string) (*models.WalletTransaction, error)
	GetTransactionByExternalRefForUpdate(tx *gorm.DB, externalRef string) (*models.WalletTransaction, error)
	GetTransactionByTransferID(ctx context.Context, transferID string) (*models.WalletTransaction, error)
	GetTransactionByTransferIDForUpdate(tx *gorm.DB, transferID string) (*models.WalletTransaction, error)
	UpdateTransactionStatus(tx *gorm.DB, id uint, status, failureReason string) error
	AttachTransferID(tx *gorm.DB, id uint, transferID string) error
	ListTransactionsByUser(ctx context.Context, userID uint, offset, limit int) ([]models.WalletTransaction, error)
}

// IdempotencyKeyRepository persists client-supplied request tokens.
type IdempotencyKeyRepository interface {
	CreateIfNotExists(ctx context.Context, key *models.IdempotencyKey) (bool, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CompletionRepository defines completion-release persistence. MarkReleased
// is a conditional claim: it only flips rows still unreleased and reports
// whether this caller won, so concurrent releases cannot both proceed.
type CompletionRepository interface {
	Create(ctx context.Context, completion *models.Completion) error
	GetByID(ctx context.Context, id uint) (*models.Completion, error)
	MarkReleased(ctx context.Context, id uint, feeCents int64, releaseRef string) (bool, error)
}

// NotificationRepository defines notification CRUD.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	ListByUser(ctx context.Context, userID uint, offset, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id uint) error
	CountUnread(ctx context.Context, userID uint) (int64, error)
}

// RiskActionRepository defines risk/compliance action CRUD.
type RiskActionRepository interface {
	Create(ctx context.Context, action *models.RiskAction) error
	GetByUUID(ctx context.Context, actionUUID string) (*models.RiskAction, error)
	ListByUser(ctx context.Context, userID uint) ([]models.RiskAction, error)
	List(ctx context.Context, offset, limit int) ([]models.RiskAction, error)
	Resolve(ctx context.Context, actionUUID string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	WebhookEvent WebhookEventRepository
	Wallet       WalletRepository
	Idempotency  IdempotencyKeyRepository
	Completion   CompletionRepository
	Notification NotificationRepository
	RiskAction   RiskActionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Wallet:       NewWalletRepository(db),
		Idempotency:  NewIdempotencyKeyRepository(db),
		Completion:   NewCompletionRepository(db),
		Notification: NewNotificationRepository(db),
		RiskAction:   NewRiskActionRepository(db),
	}
}
