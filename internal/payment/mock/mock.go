package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/utafrali/natours/internal/payment"
)

// Gateway is a mock checkout gateway that always succeeds without any
// network traffic. It is intended for development and testing purposes.
type Gateway struct {
	baseURL string
}

// NewGateway creates a mock gateway whose session URLs point at baseURL.
func NewGateway(baseURL string) *Gateway {
	return &Gateway{baseURL: baseURL}
}

// Name returns the gateway name.
func (g *Gateway) Name() string {
	return "mock"
}

// CreateCheckoutSession returns an open session mirroring params.
func (g *Gateway) CreateCheckoutSession(_ context.Context, p payment.CheckoutParams) (*payment.CheckoutSession, error) {
	id := "cs_mock_" + uuid.NewString()
	return &payment.CheckoutSession{
		ID:                id,
		URL:               g.baseURL + "/checkout/" + id,
		ClientReferenceID: p.ClientReferenceID,
		CustomerEmail:     p.CustomerEmail,
		AmountTotal:       p.AmountCents,
		Currency:          p.Currency,
		Status:            "open",
		PaymentStatus:     "unpaid",
	}, nil
}
