package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bountyhub-app/bountyhub/app/models"
	"github.com/bountyhub-app/bountyhub/app/repository"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrDuplicateTransaction = errors.New("transaction already recorded for external ref")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrInvalidTransition    = errors.New("invalid transfer status transition")
	ErrTransferRefMismatch  = errors.New("transaction already linked to a different transfer")
)

// Service is the system of record for user balance-affecting transactions.
// Every mutating call runs in a single DB transaction holding the wallet row
// lock for the affected user, so concurrent events on the same user serialize
// instead of losing updates. The unique external_ref on transactions is the
// second idempotency layer: event-store dedupe only suppresses duplicate
// deliveries, not duplicate effects referenced by different events.
type Service struct {
	db   *gorm.DB
	repo repository.WalletRepository
}

// NewService creates a wallet service from an injected repository.
func NewService(db *gorm.DB, repo repository.WalletRepository) *Service {
	return &Service{db: db, repo: repo}
}

// NewServiceFromDB creates a wallet service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(db, repository.NewWalletRepository(db))
}

// CreateDeposit credits the user balance for a settled payment, keyed by the
// payment reference. Re-applying the same reference returns
// ErrDuplicateTransaction without touching the balance.
func (s *Service) CreateDeposit(ctx context.Context, userID uint, amountCents int64, externalRef string) (string, error) {
	if userID == 0 || amountCents <= 0 || strings.TrimSpace(externalRef) == "" {
		return "", errors.New("user_id, positive amount and external_ref are required")
	}

	var txnID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetOrCreateWalletForUpdate(tx, userID)
		if err != nil {
			return err
		}
		if err := s.ensureRefUnused(tx, externalRef); err != nil {
			return err
		}

		txn := &models.WalletTransaction{
			UserID:      userID,
			Type:        models.TransactionTypeDeposit,
			AmountCents: amountCents,
			ExternalRef: externalRef,
			Status:      models.TransactionStatusCompleted,
		}
		if err := s.createTransaction(tx, txn); err != nil {
			return err
		}
		w.BalanceCents += amountCents
		if err := s.repo.SaveWallet(tx, w); err != nil {
			return err
		}
		txnID = FormatTransactionID(txn.ID)
		return nil
	})
	if err != nil {
		return "", err
	}
	return txnID, nil
}

// RecordPaymentFailure stores a failed payment attempt for audit. No balance
// mutation.
func (s *Service) RecordPaymentFailure(ctx context.Context, userID uint, externalRef, reason string) error {
	if userID == 0 || strings.TrimSpace(externalRef) == "" {
		return errors.New("user_id and external_ref are required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureRefUnused(tx, externalRef); err != nil {
			return err
		}
		txn := &models.WalletTransaction{
			UserID:        userID,
			Type:          models.TransactionTypeDeposit,
			AmountCents:   0,
			ExternalRef:   externalRef,
			Status:        models.TransactionStatusFailed,
			FailureReason: reason,
		}
		return s.createTransaction(tx, txn)
	})
}

// CreateRefund deducts a (possibly partial) refund from the user balance,
// keyed by the provider refund id so distinct partial refunds on the same
// charge each apply exactly once.
func (s *Service) CreateRefund(ctx context.Context, userID uint, amountCents int64, chargeRef, refundRef string) (string, error) {
	if userID == 0 || amountCents <= 0 || strings.TrimSpace(refundRef) == "" {
		return "", errors.New("user_id, positive amount and refund ref are required")
	}

	var txnID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetOrCreateWalletForUpdate(tx, userID)
		if err != nil {
			return err
		}
		if err := s.ensureRefUnused(tx, refundRef); err != nil {
			return err
		}

		txn := &models.WalletTransaction{
			UserID:      userID,
			Type:        models.TransactionTypeRefund,
			AmountCents: amountCents,
			ExternalRef: refundRef,
			Reason:      "refund of " + chargeRef,
			Status:      models.TransactionStatusCompleted,
		}
		if err := s.createTransaction(tx, txn); err != nil {
			return err
		}
		w.BalanceCents -= amountCents
		if w.BalanceCents < 0 {
			log.Printf("wallet for user %d went negative after refund %s", userID, refundRef)
		}
		if err := s.repo.SaveWallet(tx, w); err != nil {
			return err
		}
		txnID = FormatTransactionID(txn.ID)
		return nil
	})
	if err != nil {
		return "", err
	}
	return txnID, nil
}

// AdjustBalance applies a manual signed correction with a generated ref.
func (s *Service) AdjustBalance(ctx context.Context, userID uint, deltaCents int64, reason string) (string, error) {
	if userID == 0 || deltaCents == 0 {
		return "", errors.New("user_id and non-zero delta are required")
	}

	externalRef := "adj_" + uuid.NewString()
	var txnID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetOrCreateWalletForUpdate(tx, userID)
		if err != nil {
			return err
		}
		txn := &models.WalletTransaction{
			UserID:      userID,
			Type:        models.TransactionTypeAdjustment,
			AmountCents: deltaCents,
			ExternalRef: externalRef,
			Reason:      reason,
			Status:      models.TransactionStatusCompleted,
		}
		if err := s.createTransaction(tx, txn); err != nil {
			return err
		}
		w.BalanceCents += deltaCents
		if err := s.repo.SaveWallet(tx, w); err != nil {
			return err
		}
		txnID = FormatTransactionID(txn.ID)
		return nil
	})
	if err != nil {
		return "", err
	}
	return txnID, nil
}

// CreateTransfer records an outbound payout-in-flight for the user: the
// amount is held in pending until the provider confirms or fails the
// transfer. Used by the completion release flow.
func (s *Service) CreateTransfer(ctx context.Context, userID uint, amountCents int64, externalRef string) (string, error) {
	if userID == 0 || amountCents <= 0 || strings.TrimSpace(externalRef) == "" {
		return "", errors.New("user_id, positive amount and external_ref are required")
	}

	var txnID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetOrCreateWalletForUpdate(tx, userID)
		if err != nil {
			return err
		}
		if err := s.ensureRefUnused(tx, externalRef); err != nil {
			return err
		}

		txn := &models.WalletTransaction{
			UserID:      userID,
			Type:        models.TransactionTypeTransfer,
			AmountCents: amountCents,
			ExternalRef: externalRef,
			Status:      models.TransactionStatusPending,
		}
		if err := s.createTransaction(tx, txn); err != nil {
			return err
		}
		w.PendingCents += amountCents
		if err := s.repo.SaveWallet(tx, w); err != nil {
			return err
		}
		txnID = FormatTransactionID(txn.ID)
		return nil
	})
	if err != nil {
		return "", err
	}
	return txnID, nil
}

// AttachTransfer binds the provider transfer id to the ledger record created
// at release time. Re-attaching the same id is a no-op; attaching over an
// existing different id is refused with ErrTransferRefMismatch.
func (s *Service) AttachTransfer(ctx context.Context, transactionRef, transferID string) error {
	if strings.TrimSpace(transactionRef) == "" || strings.TrimSpace(transferID) == "" {
		return errors.New("transaction_ref and transfer_id are required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.repo.GetTransactionByExternalRefForUpdate(tx, transactionRef)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}
		if txn.TransferID == transferID {
			return nil
		}
		if txn.TransferID != "" {
			return ErrTransferRefMismatch
		}
		return s.repo.AttachTransferID(tx, txn.ID, transferID)
	})
}

// UpdateTransferStatus applies a provider transfer lifecycle update.
// pending → completed settles the held amount; pending → failed credits the
// held amount back to the balance. Re-delivering the current status is a
// no-op; anything else (e.g. failed after completed) is refused with
// ErrInvalidTransition so out-of-order deliveries never re-credit.
func (s *Service) UpdateTransferStatus(ctx context.Context, transferID, status string) error {
	if strings.TrimSpace(transferID) == "" {
		return errors.New("transfer_id is required")
	}
	if status != models.TransactionStatusCompleted && status != models.TransactionStatusFailed {
		return fmt.Errorf("unsupported transfer status %q", status)
	}

	// Resolve the owning user outside the lock, then lock wallet before
	// transaction row. Same lock order as the other mutations.
	peek, err := s.repo.GetTransactionByTransferID(ctx, transferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTransactionNotFound
		}
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetOrCreateWalletForUpdate(tx, peek.UserID)
		if err != nil {
			return err
		}
		txn, err := s.repo.GetTransactionByTransferIDForUpdate(tx, transferID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}

		apply, creditBack, err := transferTransition(txn.Status, status)
		if err != nil {
			return err
		}
		if !apply {
			return nil
		}

		failureReason := ""
		if status == models.TransactionStatusFailed {
			failureReason = "transfer failed at provider"
		}
		if err := s.repo.UpdateTransactionStatus(tx, txn.ID, status, failureReason); err != nil {
			return err
		}

		w.PendingCents -= txn.AmountCents
		if creditBack {
			w.BalanceCents += txn.AmountCents
		}
		return s.repo.SaveWallet(tx, w)
	})
}

// ListTransactions returns a user's ledger entries, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uint, offset, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListTransactionsByUser(ctx, userID, offset, limit)
}

// GetTransactionByExternalRef exposes a read for the status endpoints.
func (s *Service) GetTransactionByExternalRef(ctx context.Context, externalRef string) (*models.WalletTransaction, error) {
	txn, err := s.repo.GetTransactionByExternalRef(ctx, externalRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

// transferTransition decides what an incoming transfer status does to a
// transaction in its current status.
func transferTransition(current, incoming string) (apply bool, creditBack bool, err error) {
	switch {
	case current == incoming:
		// Idempotent redelivery.
		return false, false, nil
	case current == models.TransactionStatusPending && incoming == models.TransactionStatusCompleted:
		return true, false, nil
	case current == models.TransactionStatusPending && incoming == models.TransactionStatusFailed:
		return true, true, nil
	default:
		return false, false, ErrInvalidTransition
	}
}

func (s *Service) ensureRefUnused(tx *gorm.DB, externalRef string) error {
	_, err := s.repo.GetTransactionByExternalRefForUpdate(tx, externalRef)
	if err == nil {
		return ErrDuplicateTransaction
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// createTransaction inserts the row and translates a unique-index violation
// on external_ref into ErrDuplicateTransaction. ensureRefUnused catches most
// duplicates up front, but paths without a wallet-row lock can still race to
// the insert and the loser must see the sentinel, not a raw driver error.
func (s *Service) createTransaction(tx *gorm.DB, txn *models.WalletTransaction) error {
	err := s.repo.CreateTransaction(tx, txn)
	if err != nil && isDuplicateEntry(err) {
		return ErrDuplicateTransaction
	}
	return err
}

func isDuplicateEntry(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// FormatTransactionID renders the external form of a ledger row id.
func FormatTransactionID(id uint) string {
	return fmt.Sprintf("txn_%d", id)
}
