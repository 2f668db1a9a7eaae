// Package payment talks to the hosted checkout gateway.
package payment

import "context"

// CheckoutParams describes a single-item checkout for one tour.
type CheckoutParams struct {
	ClientReferenceID string // tour id
	CustomerEmail     string
	ProductName       string
	Description       string
	ImageURL          string
	AmountCents       int64
	Currency          string
	SuccessURL        string
	CancelURL         string
}

// CheckoutSession is a gateway-hosted payment page.
type CheckoutSession struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	ClientReferenceID string `json:"client_reference_id"`
	CustomerEmail     string `json:"customer_email"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
}

// Gateway creates checkout sessions.
type Gateway interface {
	// Name returns the gateway name (e.g., "mock", "stripe").
	Name() string

	// CreateCheckoutSession opens a hosted checkout page.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
}
