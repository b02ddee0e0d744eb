package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bountyhub-app/bountyhub/app/models"
)

var (
	ErrMissingSecret    = errors.New("webhook secret is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidEnvelope  = errors.New("event envelope is missing id or type")
)

// Outcome classifies the result of dispatching one inbound provider event.
// The HTTP layer maps outcomes to status codes instead of catching errors.
type Outcome int

const (
	// OutcomeAccepted: the event was applied (or acknowledged as a no-op).
	OutcomeAccepted Outcome = iota
	// OutcomeDuplicate: the event was already processed; acknowledge so the
	// provider stops retrying.
	OutcomeDuplicate
	// OutcomeBadSignature: signature verification failed; the provider will
	// not retry a 4xx.
	OutcomeBadSignature
	// OutcomeBadPayload: the body was signed correctly but is not a usable
	// event envelope.
	OutcomeBadPayload
	// OutcomeFailed: a transient failure; the provider should retry.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeBadSignature:
		return "bad_signature"
	case OutcomeBadPayload:
		return "bad_payload"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is a verified provider event with the minimum structure the
// dispatcher needs. Object is the raw data.object JSON for the type-specific
// handler to decode.
type Event struct {
	ID     string
	Type   string
	Object json.RawMessage
	Raw    []byte
}

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent extracts the provider envelope from an already verified body.
func ParseEvent(rawBody []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, fmt.Errorf("parse event envelope: %w", err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, ErrInvalidEnvelope
	}
	return &Event{
		ID:     env.ID,
		Type:   env.Type,
		Object: env.Data.Object,
		Raw:    rawBody,
	}, nil
}

// HandlerFunc applies the side effects for one event type. Errors are caught
// by the dispatcher and surface as OutcomeFailed; the event stays retryable.
type HandlerFunc func(ctx context.Context, event *Event) error

// EventStore is the durable dedupe table for inbound events.
type EventStore interface {
	CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint) error
	RecordFailure(ctx context.Context, id uint, processingError string) error
}

// Ledger applies atomic balance-affecting operations. Implemented by the
// wallet service; injected so tests can use doubles.
type Ledger interface {
	CreateDeposit(ctx context.Context, userID uint, amountCents int64, externalRef string) (string, error)
	RecordPaymentFailure(ctx context.Context, userID uint, externalRef, reason string) error
	CreateRefund(ctx context.Context, userID uint, amountCents int64, chargeRef, refundRef string) (string, error)
	AdjustBalance(ctx context.Context, userID uint, deltaCents int64, reason string) (string, error)
	AttachTransfer(ctx context.Context, transactionRef, transferID string) error
	UpdateTransferStatus(ctx context.Context, transferID, status string) error
}

// AccountDirectory resolves provider connected accounts to local users.
type AccountDirectory interface {
	SetPayoutsEnabled(ctx context.Context, stripeAccountID string, enabled bool) error
}
