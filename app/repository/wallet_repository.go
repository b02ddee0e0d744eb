package repository

import (
	"context"

	"github.com/bountyhub-app/bountyhub/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// walletRepository implements the WalletRepository interface
type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new wallet repository instance
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

// GetOrCreateWalletForUpdate loads the wallet row under SELECT ... FOR UPDATE.
// All balance mutations for a user serialize on this lock.
func (r *walletRepository) GetOrCreateWalletForUpdate(tx *gorm.DB, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	wallet = models.Wallet{UserID: userID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&wallet).Error; err != nil {
		return nil, err
	}
	// Re-read under lock: a concurrent creator may have won the insert.
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) SaveWallet(tx *gorm.DB, wallet *models.Wallet) error {
	return tx.Model(&models.Wallet{}).Where("id = ?", wallet.ID).
		Updates(map[string]interface{}{
			"balance_cents": wallet.BalanceCents,
			"pending_cents": wallet.PendingCents,
		}).Error
}

func (r *walletRepository) CreateTransaction(tx *gorm.DB, txn *models.WalletTransaction) error {
	return tx.Create(txn).Error
}

func (r *walletRepository) GetTransactionByExternalRef(ctx context.Context, externalRef string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.WithContext(ctx).Where("external_ref = ?", externalRef).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *walletRepository) GetTransactionByExternalRefForUpdate(tx *gorm.DB, externalRef string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_ref = ?", externalRef).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *walletRepository) GetTransactionByTransferID(ctx context.Context, transferID string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.WithContext(ctx).Where("transfer_id = ?", transferID).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *walletRepository) GetTransactionByTransferIDForUpdate(tx *gorm.DB, transferID string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transfer_id = ?", transferID).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *walletRepository) UpdateTransactionStatus(tx *gorm.DB, id uint, status, failureReason string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}
	return tx.Model(&models.WalletTransaction{}).Where("id = ?", id).Updates(updates).Error
}

func (r *walletRepository) AttachTransferID(tx *gorm.DB, id uint, transferID string) error {
	return tx.Model(&models.WalletTransaction{}).Where("id = ?", id).
		Update("transfer_id", transferID).Error
}

func (r *walletRepository) ListTransactionsByUser(ctx context.Context, userID uint, offset, limit int) ([]models.WalletTransaction, error) {
	var txns []models.WalletTransaction
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
