package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-service/internal/logger"
	"github.com/iliyamo/account-service/internal/service"
)

func TestStrongPassword(t *testing.T) {
	tests := map[string]bool{
		"Str0ngP@ss1": true,
		"Sh0rt!a":     false,
		"alllower1!":  false,
		"ALLUPPER1!":  false,
		"NoDigits!!":  false,
		"NoSymbol11":  false,
		"Ünïcode1#x":  true,
	}
	for pw, want := range tests {
		assert.Equal(t, want, StrongPassword(pw), pw)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrSessionNotFound, http.StatusUnauthorized},
		{service.ErrEmailExists, http.StatusConflict},
		{service.ErrRolesNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: no", service.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: bad", service.ErrValidation), http.StatusBadRequest},
		{echo.NewHTTPError(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
		{errors.New("db exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, _ := statusFor(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	ErrorHandler(logger.Nop())(errors.New("dsn user:secret@db"), c)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.IsSuccess)
	assert.Equal(t, http.StatusInternalServerError, env.Code)
	assert.Equal(t, "internal server error", env.Message)
}

func TestBindReportsFieldErrors(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(logger.Nop())
	e.POST("/", func(c echo.Context) error {
		var req loginReq
		if err := bind(c, &req); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := send(`{"email":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Errors, 2)
	assert.Equal(t, "email", env.Errors[0].Field)
	assert.Equal(t, "password", env.Errors[1].Field)

	assert.Equal(t, http.StatusBadRequest, send(`{not json`).Code)
	assert.Equal(t, http.StatusNoContent, send(`{"email":"a@example.com","password":"x"}`).Code)

	rec = send(`{"email":"a@example.com","password":"x","isAdmin":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env = Envelope{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Contains(t, env.Message, `unknown field "isAdmin"`)
}

func TestBindNormalizesBeforeValidating(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()

	ctx := func(body string) echo.Context {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return e.NewContext(req, httptest.NewRecorder())
	}

	var req registerReq
	err := bind(ctx(`{"firstName":"  a ","lastName":"Liddell","email":"alice@example.com","password":"Str0ngP@ss1"}`), &req)
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "firstName", verrs[0].Field())

	req = registerReq{}
	require.NoError(t, bind(ctx(`{"firstName":" Alice ","lastName":"Liddell","email":" Alice@Example.COM ","password":"Str0ngP@ss1"}`), &req))
	assert.Equal(t, "Alice", req.FirstName)
	assert.Equal(t, "alice@example.com", req.Email)
	assert.Equal(t, "Str0ngP@ss1", req.Password)

	// an empty body is an empty object and fails on required fields
	var login loginReq
	require.ErrorAs(t, bind(ctx(``), &login), &verrs)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	healthy := func(context.Context) error { return nil }
	broken := func(context.Context) error { return errors.New("connection refused") }

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
	require.NoError(t, Health(map[string]Check{"mysql": healthy})(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
	require.NoError(t, Health(map[string]Check{"mysql": healthy, "redis": broken})(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
