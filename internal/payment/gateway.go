package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/utafrali/natours/pkg/httpclient"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Doer sends HTTP requests. *httpclient.Client and
// *httpclient.CircuitBreakerClient both satisfy it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPGateway speaks the Stripe checkout API: form-encoded requests, JSON
// responses, bearer secret key.
type HTTPGateway struct {
	client    Doer
	baseURL   string
	secretKey string
}

// NewHTTPGateway creates a gateway client rooted at baseURL
// (e.g. https://api.stripe.com).
func NewHTTPGateway(client Doer, baseURL, secretKey string) *HTTPGateway {
	return &HTTPGateway{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
	}
}

// Name returns the gateway name.
func (g *HTTPGateway) Name() string {
	return "stripe"
}

// CreateCheckoutSession posts to /v1/checkout/sessions.
func (g *HTTPGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	form := checkoutForm(p)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpclient.ParseResponseError(resp, "payment gateway")
	}
	defer func() { _ = resp.Body.Close() }()

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &session, nil
}

func checkoutForm(p CheckoutParams) url.Values {
	currency := p.Currency
	if currency == "" {
		currency = "usd"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("customer_email", p.CustomerEmail)
	form.Set("client_reference_id", p.ClientReferenceID)

	const item = "line_items[0]"
	form.Set(item+"[quantity]", "1")
	form.Set(item+"[price_data][currency]", currency)
	form.Set(item+"[price_data][unit_amount]", strconv.FormatInt(p.AmountCents, 10))
	form.Set(item+"[price_data][product_data][name]", p.ProductName)
	if p.Description != "" {
		form.Set(item+"[price_data][product_data][description]", p.Description)
	}
	if p.ImageURL != "" {
		form.Set(item+"[price_data][product_data][images][0]", p.ImageURL)
	}
	return form
}
