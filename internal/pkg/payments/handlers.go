package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/bountyhub-app/bountyhub/app/models"
	"github.com/bountyhub-app/bountyhub/internal/pkg/wallet"
)

// Provider event types with registered handlers. Anything else is
// acknowledged as a no-op by the dispatcher.
const (
	EventPaymentSucceeded      = "payment_intent.succeeded"
	EventPaymentFailed         = "payment_intent.payment_failed"
	EventPaymentRequiresAction = "payment_intent.requires_action"
	EventChargeRefunded        = "charge.refunded"
	EventTransferCreated       = "transfer.created"
	EventTransferPaid          = "transfer.paid"
	EventTransferFailed        = "transfer.failed"
	EventAccountUpdated        = "account.updated"
	EventPayoutPaid            = "payout.paid"
	EventPayoutFailed          = "payout.failed"
)

type paymentIntentPayload struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	AmountReceived   int64             `json:"amount_received"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type chargePayload struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountRefunded int64             `json:"amount_refunded"`
	Metadata       map[string]string `json:"metadata"`
	Refunds        struct {
		Data []refundPayload `json:"data"`
	} `json:"refunds"`
}

type refundPayload struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

type transferPayload struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Metadata map[string]string `json:"metadata"`
}

type accountPayload struct {
	ID             string `json:"id"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
	Requirements   struct {
		CurrentlyDue []string `json:"currently_due"`
	} `json:"requirements"`
}

type payoutPayload struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	Status         string `json:"status"`
	FailureMessage string `json:"failure_message"`
}

// handlerSet binds the routing table to its collaborators.
type handlerSet struct {
	ledger   Ledger
	accounts AccountDirectory
}

// NewHandlerRegistry builds the event type → handler routing table over the
// injected ledger and account directory.
func NewHandlerRegistry(ledger Ledger, accounts AccountDirectory) map[string]HandlerFunc {
	h := &handlerSet{ledger: ledger, accounts: accounts}
	return map[string]HandlerFunc{
		EventPaymentSucceeded:      h.handlePaymentSucceeded,
		EventPaymentFailed:         h.handlePaymentFailed,
		EventPaymentRequiresAction: h.handlePaymentRequiresAction,
		EventChargeRefunded:        h.handleChargeRefunded,
		EventTransferCreated:       h.handleTransferCreated,
		EventTransferPaid:          h.handleTransferPaid,
		EventTransferFailed:        h.handleTransferFailed,
		EventAccountUpdated:        h.handleAccountUpdated,
		EventPayoutPaid:            h.handlePayout,
		EventPayoutFailed:          h.handlePayout,
	}
}

func (h *handlerSet) handlePaymentSucceeded(ctx context.Context, event *Event) error {
	var pi paymentIntentPayload
	if err := json.Unmarshal(event.Object, &pi); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}
	userID, err := userIDFromMetadata(pi.Metadata)
	if err != nil {
		return fmt.Errorf("payment %s: %w", pi.ID, err)
	}

	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	if _, err := h.ledger.CreateDeposit(ctx, userID, amount, pi.ID); err != nil {
		if errors.Is(err, wallet.ErrDuplicateTransaction) {
			// Same payment referenced by another event; already applied.
			log.Printf("payment %s: deposit already recorded", pi.ID)
			return nil
		}
		return err
	}
	return nil
}

func (h *handlerSet) handlePaymentFailed(ctx context.Context, event *Event) error {
	var pi paymentIntentPayload
	if err := json.Unmarshal(event.Object, &pi); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}
	reason := "payment failed"
	if pi.LastPaymentError != nil && pi.LastPaymentError.Message != "" {
		reason = pi.LastPaymentError.Message
	}

	userID, err := userIDFromMetadata(pi.Metadata)
	if err != nil {
		// No local user to attribute the failure to; log and move on.
		log.Printf("payment %s failed without user metadata: %s", pi.ID, reason)
		return nil
	}
	if err := h.ledger.RecordPaymentFailure(ctx, userID, pi.ID, reason); err != nil {
		if errors.Is(err, wallet.ErrDuplicateTransaction) {
			return nil
		}
		return err
	}
	return nil
}

func (h *handlerSet) handlePaymentRequiresAction(ctx context.Context, event *Event) error {
	var pi paymentIntentPayload
	if err := json.Unmarshal(event.Object, &pi); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}
	log.Printf("payment %s requires customer action", pi.ID)
	return nil
}

// handleChargeRefunded applies each refund on the charge by its own refund
// id. Repeated partial refunds on one charge each apply once; redelivering
// the same refund id is a no-op at the ledger level.
func (h *handlerSet) handleChargeRefunded(ctx context.Context, event *Event) error {
	var charge chargePayload
	if err := json.Unmarshal(event.Object, &charge); err != nil {
		return fmt.Errorf("decode charge: %w", err)
	}
	userID, err := userIDFromMetadata(charge.Metadata)
	if err != nil {
		return fmt.Errorf("charge %s: %w", charge.ID, err)
	}

	for _, refund := range charge.Refunds.Data {
		if refund.ID == "" || refund.Amount <= 0 {
			continue
		}
		if _, err := h.ledger.CreateRefund(ctx, userID, refund.Amount, charge.ID, refund.ID); err != nil {
			if errors.Is(err, wallet.ErrDuplicateTransaction) {
				continue
			}
			return fmt.Errorf("apply refund %s on charge %s: %w", refund.ID, charge.ID, err)
		}
	}
	return nil
}

func (h *handlerSet) handleTransferCreated(ctx context.Context, event *Event) error {
	var transfer transferPayload
	if err := json.Unmarshal(event.Object, &transfer); err != nil {
		return fmt.Errorf("decode transfer: %w", err)
	}
	transactionRef := transfer.Metadata["transaction_ref"]
	if transactionRef == "" {
		log.Printf("transfer %s has no transaction_ref metadata, ignoring", transfer.ID)
		return nil
	}

	if err := h.ledger.AttachTransfer(ctx, transactionRef, transfer.ID); err != nil {
		if errors.Is(err, wallet.ErrTransferRefMismatch) {
			// Anomalous: the ledger record is already bound to a different
			// provider transfer. Keep the original binding.
			log.Printf("transfer %s: transaction %s already linked to another transfer", transfer.ID, transactionRef)
			return nil
		}
		return err
	}
	return nil
}

func (h *handlerSet) handleTransferPaid(ctx context.Context, event *Event) error {
	return h.applyTransferStatus(ctx, event, models.TransactionStatusCompleted)
}

func (h *handlerSet) handleTransferFailed(ctx context.Context, event *Event) error {
	return h.applyTransferStatus(ctx, event, models.TransactionStatusFailed)
}

func (h *handlerSet) applyTransferStatus(ctx context.Context, event *Event, status string) error {
	var transfer transferPayload
	if err := json.Unmarshal(event.Object, &transfer); err != nil {
		return fmt.Errorf("decode transfer: %w", err)
	}
	if err := h.ledger.UpdateTransferStatus(ctx, transfer.ID, status); err != nil {
		if errors.Is(err, wallet.ErrInvalidTransition) {
			// Out-of-order delivery (e.g. failed after completed). The
			// transition is refused, never silently applied; a credit-back
			// must not happen twice.
			log.Printf("transfer %s: refused out-of-order transition to %s", transfer.ID, status)
			return nil
		}
		return err
	}
	return nil
}

func (h *handlerSet) handleAccountUpdated(ctx context.Context, event *Event) error {
	var account accountPayload
	if err := json.Unmarshal(event.Object, &account); err != nil {
		return fmt.Errorf("decode account: %w", err)
	}
	enabled := account.PayoutsEnabled && len(account.Requirements.CurrentlyDue) == 0
	return h.accounts.SetPayoutsEnabled(ctx, account.ID, enabled)
}

func (h *handlerSet) handlePayout(ctx context.Context, event *Event) error {
	var payout payoutPayload
	if err := json.Unmarshal(event.Object, &payout); err != nil {
		return fmt.Errorf("decode payout: %w", err)
	}
	if payout.FailureMessage != "" {
		log.Printf("payout %s (%s): %s", payout.ID, payout.Status, payout.FailureMessage)
	} else {
		log.Printf("payout %s: %s", payout.ID, payout.Status)
	}
	return nil
}

func userIDFromMetadata(metadata map[string]string) (uint, error) {
	raw := metadata["user_id"]
	if raw == "" {
		return 0, errors.New("missing user_id metadata")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user_id metadata %q", raw)
	}
	return uint(id), nil
}
