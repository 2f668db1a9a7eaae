package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// EventCheckoutCompleted is sent when a customer finished paying.
const EventCheckoutCompleted = "checkout.session.completed"

// DefaultTolerance is the maximum accepted age of a signed webhook.
const DefaultTolerance = 5 * time.Minute

// Webhook verification errors.
var (
	ErrMissingSignature = errors.New("no signatures found matching the expected signature for payload")
	ErrInvalidHeader    = errors.New("unable to extract timestamp and signatures from header")
	ErrTooOld           = errors.New("timestamp outside the tolerance zone")
)

// Event is a webhook notification.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

// WebhookVerifier checks webhook signatures: header "t=<unix>,v1=<hex>"
// where v1 is HMAC-SHA256 over "<t>.<payload>".
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier creates a verifier. A zero tolerance uses DefaultTolerance.
func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &WebhookVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// ConstructEvent verifies header against payload and decodes the event.
func (v *WebhookVerifier) ConstructEvent(payload []byte, header string) (*Event, error) {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return nil, err
	}

	expected := computeSignature(v.secret, ts, payload)
	matched := false
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrMissingSignature
	}
	if age := v.now().Sub(ts); age > v.tolerance || age < -v.tolerance {
		return nil, ErrTooOld
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &event, nil
}

// Sign returns the signature header for payload signed at ts.
func Sign(secret string, ts time.Time, payload []byte) string {
	sig := computeSignature([]byte(secret), ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func computeSignature(secret []byte, ts time.Time, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (time.Time, [][]byte, error) {
	var (
		ts   time.Time
		sigs [][]byte
	)
	if header == "" {
		return ts, nil, ErrInvalidHeader
	}
	for _, pair := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return ts, nil, ErrInvalidHeader
		}
		switch k {
		case "t":
			unix, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return ts, nil, ErrInvalidHeader
			}
			ts = time.Unix(unix, 0)
		case "v1":
			sig, err := hex.DecodeString(val)
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}
	if ts.IsZero() {
		return ts, nil, ErrInvalidHeader
	}
	if len(sigs) == 0 {
		return ts, nil, ErrMissingSignature
	}
	return ts, sigs, nil
}
