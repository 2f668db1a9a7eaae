package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Name            string `json:"name" validate:"required,max=60"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type tourPrice struct {
	Price         float64 `json:"price" validate:"gt=0"`
	PriceDiscount float64 `json:"priceDiscount" validate:"omitempty,ltfield=Price"`
	Difficulty    string  `json:"difficulty" validate:"oneof=easy medium difficult"`
}

func TestValidate_OK(t *testing.T) {
	err := Validate(signup{Name: "Jonas", Email: "jonas@example.com", Password: "pass1234", PasswordConfirm: "pass1234"})
	assert.NoError(t, err)
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	err := Validate(signup{Name: "Jonas", Email: "nope", Password: "pass1234", PasswordConfirm: "other"})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	fields := ve.Fields()
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must match Password", fields["passwordConfirm"])
	assert.NotContains(t, fields, "name")
}

func TestValidate_LengthMessages(t *testing.T) {
	err := Validate(signup{Name: "Jonas", Email: "jonas@example.com", Password: "short", PasswordConfirm: "short"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "must have at least 8 characters", ve.Fields()["password"])
}

func TestValidate_PriceDiscount(t *testing.T) {
	err := Validate(tourPrice{Price: 397, PriceDiscount: 400, Difficulty: "easy"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "must be below Price", ve.Fields()["priceDiscount"])

	assert.NoError(t, Validate(tourPrice{Price: 397, Difficulty: "medium"}))
}

func TestValidate_OneOf(t *testing.T) {
	err := Validate(tourPrice{Price: 10, Difficulty: "extreme"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "must be one of: easy medium difficult", ve.Fields()["difficulty"])
	assert.Contains(t, ve.Error(), "invalid input data.")
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"name":"Jonas","email":"jonas@example.com","password":"pass1234","passwordConfirm":"pass1234"}`
	r := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body))
	w := httptest.NewRecorder()

	var dst signup
	require.NoError(t, DecodeAndValidate(w, r, &dst))
	assert.Equal(t, "Jonas", dst.Name)
}

func TestDecodeAndValidate_RejectsUnknownFields(t *testing.T) {
	body := `{"price":10,"difficulty":"easy","ratingsAverage":5}`
	r := httptest.NewRequest(http.MethodPost, "/tours", strings.NewReader(body))
	w := httptest.NewRecorder()

	var dst tourPrice
	err := DecodeAndValidate(w, r, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ratingsAverage")
}

func TestDecodeAndValidate_EmptyBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/tours", strings.NewReader(""))
	w := httptest.NewRecorder()

	var dst tourPrice
	err := DecodeAndValidate(w, r, &dst)
	require.Error(t, err)
	assert.Equal(t, "request body is empty", err.Error())
}
