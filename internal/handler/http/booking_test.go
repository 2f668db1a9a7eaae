package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/natours/internal/domain"
	"github.com/utafrali/natours/internal/payment"
	"github.com/utafrali/natours/internal/repository"
	apperrors "github.com/utafrali/natours/pkg/errors"
)

func webhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook-checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(payment.SignatureHeader, signature)
	return req
}

func completedCheckout() string {
	return `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{` +
		`"id":"cs_1","client_reference_id":"` + tourUUID + `","customer_email":"leo@example.com","amount_total":39700}}}`
}

// ============================================================================
// GET /api/v1/bookings/checkout-session/{tourId}
// ============================================================================

func TestGetCheckoutSession_Success(t *testing.T) {
	a := newTestApp()
	token := a.login(t, newUser(userUUID, domain.RoleUser))
	a.tours.On("GetByID", mock.Anything, tourUUID).Return(sampleTour(), nil)

	rec := a.do(http.MethodGet, "/api/v1/bookings/checkout-session/"+tourUUID, nil, token)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	session, ok := data["session"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, tourUUID, session["client_reference_id"])
	assert.Equal(t, "leo@example.com", session["customer_email"])
	assert.EqualValues(t, 39700, session["amount_total"])
}

func TestGetCheckoutSession_RequiresLogin(t *testing.T) {
	a := newTestApp()

	rec := a.do(http.MethodGet, "/api/v1/bookings/checkout-session/"+tourUUID, nil, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetCheckoutSession_UnknownTour(t *testing.T) {
	a := newTestApp()
	token := a.login(t, newUser(userUUID, domain.RoleUser))
	a.tours.On("GetByID", mock.Anything, tourUUID).Return(nil, apperrors.NotFound("tour", tourUUID))

	rec := a.do(http.MethodGet, "/api/v1/bookings/checkout-session/"+tourUUID, nil, token)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// POST /webhook-checkout
// ============================================================================

func TestWebhookCheckout_CreatesBooking(t *testing.T) {
	a := newTestApp()
	user := newUser(userUUID, domain.RoleUser)
	a.users.On("GetByEmail", mock.Anything, "leo@example.com").Return(user, nil)
	a.users.On("GetByID", mock.Anything, userUUID).Return(user, nil)
	a.tours.On("GetByID", mock.Anything, tourUUID).Return(sampleTour(), nil)
	a.bookings.On("Create", mock.Anything, mock.MatchedBy(func(b *domain.Booking) bool {
		return b.TourID == tourUUID && b.UserID == userUUID && b.Price == 397 && b.Paid
	})).Return(nil)
	a.notifier.On("SendBookingConfirmation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	body := completedCheckout()
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, webhookRequest(body, payment.Sign(testWebhookSecret, time.Now(), []byte(body))))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	a.bookings.AssertExpectations(t)
}

func TestWebhookCheckout_BadSignature(t *testing.T) {
	a := newTestApp()

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, webhookRequest(completedCheckout(), "t=1,v1=00"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.True(t, strings.HasPrefix(resp.Error.Message, "Webhook error: "))
	a.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// ============================================================================
// /api/v1/bookings CRUD
// ============================================================================

func TestListBookings_StaffOnly(t *testing.T) {
	a := newTestApp()
	token := a.login(t, newUser(userUUID, domain.RoleUser))

	rec := a.do(http.MethodGet, "/api/v1/bookings", nil, token)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListBookings_NestedUnderTour(t *testing.T) {
	a := newTestApp()
	token := a.login(t, newUser(adminID, domain.RoleLeadGuide))
	a.bookings.On("List", mock.Anything, repository.BookingScope{TourID: tourUUID}, mock.Anything).Return(sampleResult(), nil)

	rec := a.do(http.MethodGet, "/api/v1/tours/"+tourUUID+"/bookings", nil, token)

	assert.Equal(t, http.StatusOK, rec.Code)
	a.bookings.AssertExpectations(t)
}

func TestCreateBooking_DefaultsToTourPrice(t *testing.T) {
	a := newTestApp()
	token := a.login(t, newUser(adminID, domain.RoleAdmin))
	a.tours.On("GetByID", mock.Anything, tourUUID).Return(sampleTour(), nil)
	a.users.On("GetByID", mock.Anything, userUUID).Return(newUser(userUUID, domain.RoleUser), nil)
	a.bookings.On("Create", mock.Anything, mock.MatchedBy(func(b *domain.Booking) bool {
		return b.Price == 397 && b.Paid
	})).Return(nil)
	a.notifier.On("SendBookingConfirmation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	rec := a.do(http.MethodPost, "/api/v1/bookings", map[string]any{"tour": tourUUID, "user": userUUID}, token)

	assert.Equal(t, http.StatusCreated, rec.Code)
	a.bookings.AssertExpectations(t)
}

func TestUpdateBooking_RejectsZeroPrice(t *testing.T) {
	a := newTestApp()
	token := a.login(t, newUser(adminID, domain.RoleAdmin))

	rec := a.do(http.MethodPatch, "/api/v1/bookings/"+bookID, map[string]any{"price": 0}, token)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	a.bookings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteBooking(t *testing.T) {
	a := newTestApp()
	token := a.login(t, newUser(adminID, domain.RoleAdmin))
	a.bookings.On("Delete", mock.Anything, bookID).Return(nil)

	rec := a.do(http.MethodDelete, "/api/v1/bookings/"+bookID, nil, token)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMyTours(t *testing.T) {
	a := newTestApp()
	token := a.login(t, newUser(userUUID, domain.RoleUser))
	a.tours.On("BookedBy", mock.Anything, userUUID).Return([]domain.Tour{*sampleTour()}, nil)

	rec := a.do(http.MethodGet, "/api/v1/users/me/tours", nil, token)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeList(t, rec).Results)
}
