package payments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bountyhub-app/bountyhub/app/models"
	"github.com/bountyhub-app/bountyhub/internal/pkg/wallet"
)

func eventOf(t *testing.T, eventType, object string) *Event {
	t.Helper()
	return &Event{
		ID:     "evt_test",
		Type:   eventType,
		Object: json.RawMessage(object),
	}
}

func TestHandleChargeRefundedAppliesPartialRefundsOnce(t *testing.T) {
	ledger := newFakeLedger()
	registry := NewHandlerRegistry(ledger, newFakeAccounts())
	handler := registry[EventChargeRefunded]

	// 40% then the remaining 60% of a 10000 cent charge, each refund with
	// its own id, delivered in a single charge.refunded snapshot.
	object := `{
		"id": "ch_1",
		"amount": 10000,
		"amount_refunded": 10000,
		"metadata": { "user_id": "5" },
		"refunds": { "data": [
			{ "id": "re_1", "amount": 4000 },
			{ "id": "re_2", "amount": 6000 }
		] }
	}`

	if err := handler(context.Background(), eventOf(t, EventChargeRefunded, object)); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	// Redelivery must not double-deduct: same refund ids dedupe at the
	// ledger layer.
	if err := handler(context.Background(), eventOf(t, EventChargeRefunded, object)); err != nil {
		t.Fatalf("unexpected handler error on redelivery: %v", err)
	}

	if len(ledger.refunds) != 2 {
		t.Fatalf("expected 2 distinct refund deductions, got %d", len(ledger.refunds))
	}
	var total int64
	for _, amount := range ledger.refunds {
		total += amount
	}
	if total != 10000 {
		t.Fatalf("expected refunds to sum to the charge amount, got %d", total)
	}
}

func TestHandleTransferFailedOutOfOrderIsRefusedNotRetried(t *testing.T) {
	ledger := newFakeLedger()
	ledger.statusErr = wallet.ErrInvalidTransition
	registry := NewHandlerRegistry(ledger, newFakeAccounts())

	object := `{ "id": "tr_1", "amount": 900 }`
	// A completed → failed transition is anomalous; the handler logs it and
	// reports success so the event is not retried forever.
	if err := registry[EventTransferFailed](context.Background(), eventOf(t, EventTransferFailed, object)); err != nil {
		t.Fatalf("out-of-order transition must not surface as handler failure: %v", err)
	}
	if len(ledger.transitions) != 0 {
		t.Fatalf("refused transition must not be applied")
	}
}

func TestHandleTransferLifecycle(t *testing.T) {
	ledger := newFakeLedger()
	registry := NewHandlerRegistry(ledger, newFakeAccounts())

	created := `{ "id": "tr_2", "amount": 900, "metadata": { "transaction_ref": "rel_abc" } }`
	if err := registry[EventTransferCreated](context.Background(), eventOf(t, EventTransferCreated, created)); err != nil {
		t.Fatalf("transfer.created: %v", err)
	}
	// Re-attaching the same id is a no-op.
	if err := registry[EventTransferCreated](context.Background(), eventOf(t, EventTransferCreated, created)); err != nil {
		t.Fatalf("transfer.created redelivery: %v", err)
	}
	if ledger.attached["rel_abc"] != "tr_2" {
		t.Fatalf("expected transfer id attached to release ref")
	}

	paid := `{ "id": "tr_2", "amount": 900 }`
	if err := registry[EventTransferPaid](context.Background(), eventOf(t, EventTransferPaid, paid)); err != nil {
		t.Fatalf("transfer.paid: %v", err)
	}
	if ledger.transitions["tr_2"] != models.TransactionStatusCompleted {
		t.Fatalf("expected transfer marked completed, got %q", ledger.transitions["tr_2"])
	}
}

func TestHandleTransferCreatedMismatchedAttachIsLoggedNotApplied(t *testing.T) {
	ledger := newFakeLedger()
	ledger.attached["rel_abc"] = "tr_other"
	registry := NewHandlerRegistry(ledger, newFakeAccounts())

	object := `{ "id": "tr_3", "metadata": { "transaction_ref": "rel_abc" } }`
	if err := registry[EventTransferCreated](context.Background(), eventOf(t, EventTransferCreated, object)); err != nil {
		t.Fatalf("mismatched attach must not surface as handler failure: %v", err)
	}
	if ledger.attached["rel_abc"] != "tr_other" {
		t.Fatalf("original transfer binding must be kept")
	}
}

func TestHandleAccountUpdated(t *testing.T) {
	accounts := newFakeAccounts()
	registry := NewHandlerRegistry(newFakeLedger(), accounts)

	satisfied := `{ "id": "acct_1", "payouts_enabled": true, "requirements": { "currently_due": [] } }`
	if err := registry[EventAccountUpdated](context.Background(), eventOf(t, EventAccountUpdated, satisfied)); err != nil {
		t.Fatalf("account.updated: %v", err)
	}
	if !accounts.enabled["acct_1"] {
		t.Fatalf("expected payouts enabled for satisfied requirements")
	}

	pending := `{ "id": "acct_2", "payouts_enabled": true, "requirements": { "currently_due": ["individual.id_number"] } }`
	if err := registry[EventAccountUpdated](context.Background(), eventOf(t, EventAccountUpdated, pending)); err != nil {
		t.Fatalf("account.updated: %v", err)
	}
	if accounts.enabled["acct_2"] {
		t.Fatalf("outstanding requirements must keep payouts disabled")
	}
}

func TestHandlePaymentSucceededRequiresUserMetadata(t *testing.T) {
	ledger := newFakeLedger()
	registry := NewHandlerRegistry(ledger, newFakeAccounts())

	object := `{ "id": "pi_x", "amount": 100, "metadata": {} }`
	if err := registry[EventPaymentSucceeded](context.Background(), eventOf(t, EventPaymentSucceeded, object)); err == nil {
		t.Fatalf("expected missing user metadata to fail (retryable)")
	}
	if ledger.deposits != 0 {
		t.Fatalf("expected no deposit without user attribution")
	}
}

func TestHandlePaymentFailedRecordsReason(t *testing.T) {
	ledger := newFakeLedger()
	registry := NewHandlerRegistry(ledger, newFakeAccounts())

	object := `{ "id": "pi_y", "amount": 100, "metadata": { "user_id": "3" }, "last_payment_error": { "message": "card declined" } }`
	if err := registry[EventPaymentFailed](context.Background(), eventOf(t, EventPaymentFailed, object)); err != nil {
		t.Fatalf("payment failed handler: %v", err)
	}
	if ledger.failures != 1 {
		t.Fatalf("expected one recorded failure, got %d", ledger.failures)
	}
	if ledger.deposits != 0 {
		t.Fatalf("payment failure must not mutate balances")
	}
}
