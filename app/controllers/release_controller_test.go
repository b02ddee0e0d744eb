package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bountyhub-app/bountyhub/app/models"
	"github.com/bountyhub-app/bountyhub/internal/pkg/idempotency"
	"github.com/bountyhub-app/bountyhub/internal/pkg/wallet"
)

func TestComputeReleaseFee(t *testing.T) {
	// 10% of the amount once that exceeds the 50 cent floor.
	assert.Equal(t, int64(100), computeReleaseFee(1000))
	assert.Equal(t, int64(2500), computeReleaseFee(25000))

	// Small bounties hit the floor.
	assert.Equal(t, int64(50), computeReleaseFee(400))
	assert.Equal(t, int64(50), computeReleaseFee(500))
	assert.Equal(t, int64(51), computeReleaseFee(510))

	// The fee never exceeds the amount itself; callers refuse the release
	// when nothing would be left to pay out.
	assert.Equal(t, int64(30), computeReleaseFee(30))
	assert.Equal(t, int64(0), computeReleaseFee(0))
}

func TestCompletionReleaseRef(t *testing.T) {
	// One ref per completion: retries of the same completion must target the
	// same ledger row.
	assert.Equal(t, "rel_7", completionReleaseRef(7))
	assert.Equal(t, completionReleaseRef(7), completionReleaseRef(7))
}

// fakeReleaseKeyRepo backs the idempotency guard in endpoint tests.
type fakeReleaseKeyRepo struct {
	keys map[string]bool
}

func newFakeReleaseKeyRepo() *fakeReleaseKeyRepo {
	return &fakeReleaseKeyRepo{keys: make(map[string]bool)}
}

func (r *fakeReleaseKeyRepo) CreateIfNotExists(ctx context.Context, key *models.IdempotencyKey) (bool, error) {
	if r.keys[key.Key] {
		return false, nil
	}
	r.keys[key.Key] = true
	return true, nil
}

func (r *fakeReleaseKeyRepo) Delete(ctx context.Context, key string) error {
	delete(r.keys, key)
	return nil
}

func (r *fakeReleaseKeyRepo) Exists(ctx context.Context, key string) (bool, error) {
	return r.keys[key], nil
}

// fakeCompletionRepo holds completions in memory with the same conditional
// claim semantics as the DB implementation.
type fakeCompletionRepo struct {
	completions map[uint]*models.Completion
	claimErrs   int
	staleReads  bool
}

func newFakeCompletionRepo(completions ...*models.Completion) *fakeCompletionRepo {
	repo := &fakeCompletionRepo{completions: make(map[uint]*models.Completion)}
	for _, completion := range completions {
		repo.completions[completion.ID] = completion
	}
	return repo
}

func (r *fakeCompletionRepo) Create(ctx context.Context, completion *models.Completion) error {
	completion.ID = uint(len(r.completions) + 1)
	r.completions[completion.ID] = completion
	return nil
}

func (r *fakeCompletionRepo) GetByID(ctx context.Context, id uint) (*models.Completion, error) {
	completion, ok := r.completions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *completion
	if r.staleReads {
		copied.Released = false
	}
	return &copied, nil
}

func (r *fakeCompletionRepo) MarkReleased(ctx context.Context, id uint, feeCents int64, releaseRef string) (bool, error) {
	if r.claimErrs > 0 {
		r.claimErrs--
		return false, errors.New("persist unavailable")
	}
	completion, ok := r.completions[id]
	if !ok || completion.Released {
		return false, nil
	}
	completion.Released = true
	completion.FeeCents = feeCents
	completion.ReleaseRef = releaseRef
	return true, nil
}

// fakeReleaseLedger dedupes transfers by external ref like the wallet
// service does.
type fakeReleaseLedger struct {
	refs        map[string]*models.WalletTransaction
	nextID      uint
	createCalls int
}

func newFakeReleaseLedger() *fakeReleaseLedger {
	return &fakeReleaseLedger{refs: make(map[string]*models.WalletTransaction)}
}

func (l *fakeReleaseLedger) CreateTransfer(ctx context.Context, userID uint, amountCents int64, externalRef string) (string, error) {
	l.createCalls++
	if _, ok := l.refs[externalRef]; ok {
		return "", wallet.ErrDuplicateTransaction
	}
	l.nextID++
	l.refs[externalRef] = &models.WalletTransaction{
		ID:          l.nextID,
		UserID:      userID,
		Type:        models.TransactionTypeTransfer,
		AmountCents: amountCents,
		ExternalRef: externalRef,
		Status:      models.TransactionStatusPending,
	}
	return wallet.FormatTransactionID(l.nextID), nil
}

func (l *fakeReleaseLedger) GetTransactionByExternalRef(ctx context.Context, externalRef string) (*models.WalletTransaction, error) {
	txn, ok := l.refs[externalRef]
	if !ok {
		return nil, wallet.ErrTransactionNotFound
	}
	return txn, nil
}

type fakeReleaseNotifier struct {
	sent int
}

func (n *fakeReleaseNotifier) Notify(ctx context.Context, userID uint, notificationType, content string, referenceID uint) (*models.Notification, error) {
	n.sent++
	return &models.Notification{UserID: userID, Type: notificationType, Content: content, ReferenceID: referenceID}, nil
}

func newReleaseTestApp(completions *fakeCompletionRepo, ledger *fakeReleaseLedger, notifier *fakeReleaseNotifier) *fiber.App {
	releaseGuard = idempotency.NewGuard(newFakeReleaseKeyRepo())
	releaseWallet = ledger
	releaseCompletions = completions
	releaseNotifications = notifier

	app := fiber.New()
	app.Post("/completion-release", HandleCompletionRelease)
	return app
}

func newReleaseRequest(t *testing.T, completionID uint, idempotencyKey string) *http.Request {
	t.Helper()
	body, err := json.Marshal(fiber.Map{
		"completion_id":   completionID,
		"idempotency_key": idempotencyKey,
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/completion-release", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeReleaseResponse(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestHandleCompletionReleaseSuccess(t *testing.T) {
	completions := newFakeCompletionRepo(&models.Completion{ID: 1, HunterUserID: 9, AmountCents: 10000})
	ledger := newFakeReleaseLedger()
	notifier := &fakeReleaseNotifier{}
	app := newReleaseTestApp(completions, ledger, notifier)

	resp, err := app.Test(newReleaseRequest(t, 1, "key-release-1"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decodeReleaseResponse(t, resp)
	assert.Equal(t, "rel_1", payload["transfer_ref"])
	assert.Equal(t, float64(1000), payload["fee_cents"])
	assert.Equal(t, float64(9000), payload["net_cents"])

	assert.True(t, completions.completions[1].Released)
	assert.Equal(t, int64(9000), ledger.refs["rel_1"].AmountCents)
	assert.Equal(t, 1, notifier.sent)
}

func TestHandleCompletionReleaseDuplicateKeyDoesNotReExecute(t *testing.T) {
	completions := newFakeCompletionRepo(&models.Completion{ID: 1, HunterUserID: 9, AmountCents: 10000})
	ledger := newFakeReleaseLedger()
	app := newReleaseTestApp(completions, ledger, &fakeReleaseNotifier{})

	resp, err := app.Test(newReleaseRequest(t, 1, "key-dup"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The surviving key row blocks the replay before any side effect runs.
	resp, err = app.Test(newReleaseRequest(t, 1, "key-dup"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, 1, ledger.createCalls)
	assert.Len(t, ledger.refs, 1)
}

func TestHandleCompletionReleaseRetryAfterPersistFailureDoesNotDoublePay(t *testing.T) {
	completions := newFakeCompletionRepo(&models.Completion{ID: 1, HunterUserID: 9, AmountCents: 10000})
	completions.claimErrs = 1
	ledger := newFakeReleaseLedger()
	app := newReleaseTestApp(completions, ledger, &fakeReleaseNotifier{})

	// First attempt: transfer commits, the released-flag persist fails, the
	// idempotency key is released so the client may retry.
	resp, err := app.Test(newReleaseRequest(t, 1, "key-retry"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Len(t, ledger.refs, 1)
	require.False(t, completions.completions[1].Released)

	// Retry with the same key: accepted, and the ledger dedupe on the
	// completion-derived ref recovers the committed transfer instead of
	// paying a second time.
	resp, err = app.Test(newReleaseRequest(t, 1, "key-retry"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decodeReleaseResponse(t, resp)
	assert.Equal(t, "rel_1", payload["transfer_ref"])
	assert.Equal(t, "txn_1", payload["transaction_id"])

	assert.Len(t, ledger.refs, 1)
	assert.Equal(t, int64(9000), ledger.refs["rel_1"].AmountCents)
	assert.True(t, completions.completions[1].Released)
}

func TestHandleCompletionReleaseConcurrentLoserGetsAlreadyReleased(t *testing.T) {
	completions := newFakeCompletionRepo(&models.Completion{ID: 1, HunterUserID: 9, AmountCents: 10000})
	ledger := newFakeReleaseLedger()
	app := newReleaseTestApp(completions, ledger, &fakeReleaseNotifier{})

	// Distinct keys do not collide at the guard, so the winner and the loser
	// are told apart by the conditional released-flag claim.
	resp, err := app.Test(newReleaseRequest(t, 1, "key-racer-a"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The loser read the completion before the winner's claim landed, so the
	// fast already-released check does not save it; the conditional claim must.
	completions.staleReads = true
	resp, err = app.Test(newReleaseRequest(t, 1, "key-racer-b"), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	payload := decodeReleaseResponse(t, resp)
	assert.Equal(t, "already_released", payload["error"])
	assert.Len(t, ledger.refs, 1)
}

func TestHandleCompletionReleaseValidation(t *testing.T) {
	app := newReleaseTestApp(newFakeCompletionRepo(), newFakeReleaseLedger(), &fakeReleaseNotifier{})

	resp, err := app.Test(newReleaseRequest(t, 404, "key-missing-1"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	// A short key fails validation before the guard runs.
	resp, err = app.Test(newReleaseRequest(t, 1, "tiny"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/completion-release", bytes.NewReader([]byte(fmt.Sprintf(`{"completion_id":%d}`, 0))))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
