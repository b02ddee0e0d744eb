package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"
)

func signTestPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	secret := "whsec_test"
	now := time.Now()

	header := signTestPayload(payload, secret, now)
	if err := verifyStripeSignatureAt(payload, header, secret, DefaultSignatureTolerance, now); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	// Tampering with a single payload byte must fail verification.
	tampered := append([]byte(nil), payload...)
	tampered[0] = '['
	if err := verifyStripeSignatureAt(tampered, header, secret, DefaultSignatureTolerance, now); err == nil {
		t.Fatalf("expected tampered payload to fail")
	}

	if err := verifyStripeSignatureAt(payload, header, "other-secret", DefaultSignatureTolerance, now); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}
}

func TestVerifyStripeWebhookSignature_FailsClosed(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()

	if err := verifyStripeSignatureAt(payload, "", "whsec_test", DefaultSignatureTolerance, now); err == nil {
		t.Fatalf("expected missing header to fail")
	}
	if err := verifyStripeSignatureAt(payload, "t=123,v1=deadbeef", "", DefaultSignatureTolerance, now); err != ErrMissingSecret {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if err := verifyStripeSignatureAt(payload, "v1=deadbeef", "whsec_test", DefaultSignatureTolerance, now); err == nil {
		t.Fatalf("expected header without timestamp to fail")
	}
	if err := verifyStripeSignatureAt(payload, "t=abc,v1=deadbeef", "whsec_test", DefaultSignatureTolerance, now); err == nil {
		t.Fatalf("expected malformed timestamp to fail")
	}
	if err := verifyStripeSignatureAt(payload, "t=123,v1=zzzz", "whsec_test", DefaultSignatureTolerance, now); err == nil {
		t.Fatalf("expected malformed hex to fail")
	}
}

func TestVerifyStripeWebhookSignature_StaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_2"}`)
	secret := "whsec_test"
	now := time.Now()

	stale := signTestPayload(payload, secret, now.Add(-10*time.Minute))
	if err := verifyStripeSignatureAt(payload, stale, secret, 5*time.Minute, now); err == nil {
		t.Fatalf("expected stale timestamp to fail")
	}

	// Within tolerance passes.
	recent := signTestPayload(payload, secret, now.Add(-time.Minute))
	if err := verifyStripeSignatureAt(payload, recent, secret, 5*time.Minute, now); err != nil {
		t.Fatalf("expected recent timestamp to pass, got %v", err)
	}
}

func TestVerifyStripeWebhookSignature_MultipleCandidates(t *testing.T) {
	payload := []byte(`{"id":"evt_3"}`)
	secret := "whsec_test"
	now := time.Now()

	valid := signTestPayload(payload, secret, now)
	validMac := strings.TrimPrefix(valid, fmt.Sprintf("t=%d,", now.Unix()))
	// Header with a bogus v1 before the valid one still verifies.
	header := fmt.Sprintf("t=%d,v1=%s,%s", now.Unix(), hex.EncodeToString([]byte("not a mac")), validMac)
	if err := verifyStripeSignatureAt(payload, header, secret, DefaultSignatureTolerance, now); err != nil {
		t.Fatalf("expected one valid candidate to verify, got %v", err)
	}
}
