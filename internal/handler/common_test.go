package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/service"
)

func TestRequestValidatorUsesJSONNames(t *testing.T) {
	v := NewRequestValidator()
	err := v.Validate(&registerReq{Username: "al", Email: "nope"})
	require.Error(t, err)
	assert.Equal(t, service.KindValidation, service.KindOf(err))
	assert.Contains(t, err.Error(), "username failed min=3")
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "phone is required")

	assert.NoError(t, v.Validate(&registerReq{Username: "alice", Email: "a@b.co", Phone: "09120000000", Password: "secret1"}))
}

func TestFailMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
		kind string
	}{
		{&service.Error{Kind: service.KindValidation, Message: "bad"}, http.StatusBadRequest, "validation"},
		{&service.Error{Kind: service.KindUnknownReference, Message: "gone"}, http.StatusBadRequest, "unknown_reference"},
		{&service.Error{Kind: service.KindNotFound, Message: "missing"}, http.StatusNotFound, "not_found"},
		{&service.Error{Kind: service.KindConflict, Message: "taken"}, http.StatusConflict, "conflict"},
		{&service.Error{Kind: service.KindForbidden, Message: "no"}, http.StatusForbidden, "forbidden"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, fail(c, tc.err))
		assert.Equal(t, tc.code, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error":"`+tc.kind+`"`)
	}
}

func TestPathID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("42")
	id, err := pathID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	c.SetParamValues("0")
	_, err = pathID(c, "id")
	assert.Equal(t, service.KindValidation, service.KindOf(err))
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("start_date", "2026-12-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDate("start_date", "2026-12-01T10:30:00+03:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 1, 7, 0, 0, 0, time.UTC), d)

	_, err = parseDate("start_date", "01/12/2026")
	assert.Equal(t, service.KindValidation, service.KindOf(err))

	d, err = optionalDate("date", "")
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}
