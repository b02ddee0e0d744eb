package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how old a signed timestamp may be before
// the payload is treated as a replay.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifyStripeWebhookSignature validates the Stripe-Signature header against
// the exact raw body as received. The header carries comma-separated
// `t=<unix>,v1=<hex>` pairs and the signed material is "<t>.<body>"
// (HMAC-SHA256). Fails closed: missing header or secret, malformed pairs,
// stale timestamps and mismatched MACs are all hard rejections.
func VerifyStripeWebhookSignature(payload []byte, signatureHeader, webhookSecret string, tolerance time.Duration) error {
	return verifyStripeSignatureAt(payload, signatureHeader, webhookSecret, tolerance, time.Now())
}

func verifyStripeSignatureAt(payload []byte, signatureHeader, webhookSecret string, tolerance time.Duration, now time.Time) error {
	header := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return ErrMissingSecret
	}
	if header == "" {
		return ErrInvalidSignature
	}

	var timestamp int64
	var candidates [][]byte
	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			ts, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(parts[1]))
			if err != nil {
				return ErrInvalidSignature
			}
			candidates = append(candidates, sig)
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return ErrInvalidSignature
	}

	if tolerance > 0 {
		signedAt := time.Unix(timestamp, 0)
		if now.Sub(signedAt) > tolerance || signedAt.Sub(now) > tolerance {
			return ErrInvalidSignature
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		if hmac.Equal(expected, candidate) {
			return nil
		}
	}
	return ErrInvalidSignature
}
