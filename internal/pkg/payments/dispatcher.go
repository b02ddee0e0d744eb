package payments

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bountyhub-app/bountyhub/app/models"
)

// Dispatcher orchestrates the verify → dedupe → apply → acknowledge pipeline
// for a single inbound provider event. Collaborators are injected so tests
// can run against doubles.
type Dispatcher struct {
	store     EventStore
	handlers  map[string]HandlerFunc
	secret    string
	tolerance time.Duration
}

// NewDispatcher creates a dispatcher over the given event store and routing
// table. An empty tolerance falls back to DefaultSignatureTolerance.
func NewDispatcher(store EventStore, handlers map[string]HandlerFunc, webhookSecret string, tolerance time.Duration) *Dispatcher {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	return &Dispatcher{
		store:     store,
		handlers:  handlers,
		secret:    webhookSecret,
		tolerance: tolerance,
	}
}

// Handle processes one raw webhook delivery. The returned error carries
// detail for logging; the Outcome alone decides the HTTP response.
func (d *Dispatcher) Handle(ctx context.Context, rawBody []byte, signatureHeader string) (Outcome, error) {
	if strings.TrimSpace(d.secret) == "" {
		// Operator misconfiguration, not a client error. Surfacing a 5xx
		// keeps the provider retrying until the secret is fixed.
		return OutcomeFailed, ErrMissingSecret
	}

	if err := VerifyStripeWebhookSignature(rawBody, signatureHeader, d.secret, d.tolerance); err != nil {
		return OutcomeBadSignature, err
	}

	event, err := ParseEvent(rawBody)
	if err != nil {
		return OutcomeBadPayload, err
	}

	created, stored, err := d.store.CreateIfNotExists(ctx, &models.WebhookEvent{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(rawBody),
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("persist webhook event: %w", err)
	}
	if !created {
		if stored.Processed() {
			return OutcomeDuplicate, nil
		}
		// Row exists but processed_at is NULL: a prior attempt failed.
		// The retry must re-run the handler, not be swallowed as a dupe.
		log.Printf("webhook event %s (%s): re-attempting after failed delivery", event.ID, event.Type)
	}

	handler, ok := d.handlers[event.Type]
	if !ok {
		// Unknown types are acknowledged so new provider events never wedge
		// ingestion.
		log.Printf("webhook event %s: no handler for type %s, acknowledged", event.ID, event.Type)
		if err := d.store.MarkProcessed(ctx, stored.ID); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeAccepted, nil
	}

	if err := d.invoke(ctx, handler, event); err != nil {
		log.Printf("webhook event %s (%s): handler failed: %v", event.ID, event.Type, err)
		if recErr := d.store.RecordFailure(ctx, stored.ID, err.Error()); recErr != nil {
			log.Printf("webhook event %s: could not record failure: %v", event.ID, recErr)
		}
		return OutcomeFailed, err
	}

	if err := d.store.MarkProcessed(ctx, stored.ID); err != nil {
		// Side effects are committed but the row still reads unprocessed.
		// The retry re-runs the handler, which dedupes at the ledger level.
		log.Printf("webhook event %s (%s): mark processed failed: %v", event.ID, event.Type, err)
		return OutcomeFailed, err
	}
	return OutcomeAccepted, nil
}

// invoke runs one handler inside a failure boundary so a panicking handler
// cannot corrupt the dispatch path.
func (d *Dispatcher) invoke(ctx context.Context, handler HandlerFunc, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}
