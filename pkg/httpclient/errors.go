package httpclient

import (
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/utafrali/natours/pkg/errors"
)

// UpstreamError is the error body shape used by Stripe-style JSON APIs.
type UpstreamError struct {
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response body and turns it
// into an AppError. Upstream 401/403 mean our credentials are wrong, which is
// a server-side problem and is reported as unavailable rather than forwarded.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned %d (read body: %w)", upstream, resp.StatusCode, err)
	}

	msg := string(raw)
	var body UpstreamError
	if jsoniter.ConfigFastest.Unmarshal(raw, &body) == nil && body.Error != nil {
		msg = body.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return apperrors.InvalidInput(fmt.Sprintf("%s: %s", upstream, msg))
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		return apperrors.PaymentFailed(msg)
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(upstream+" resource", msg)
	case resp.StatusCode == http.StatusConflict:
		return apperrors.Conflict(fmt.Sprintf("%s: %s", upstream, msg))
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.TooManyRequests(upstream + " is rate limiting requests")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.ServiceUnavailable(upstream + " rejected our credentials")
	default:
		return apperrors.ServiceUnavailable(fmt.Sprintf("%s returned %d", upstream, resp.StatusCode))
	}
}
