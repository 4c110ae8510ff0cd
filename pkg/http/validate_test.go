package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quoteRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=50"`
	Stat   string `query:"stat" json:"stat" validate:"omitempty,oneof=mean median"`
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?ticker=BRK.B", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	var q quoteRequest
	require.Nil(t, ReadAndValidateRequest(c, &q))
	assert.Equal(t, "BRK.B", q.Ticker)
	assert.Equal(t, 20, q.Limit)
}

func TestReadAndValidateRequestReportsQueryNames(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?ticker=$$$&limit=99&stat=mode", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	var q quoteRequest
	v := ReadAndValidateRequest(c, &q)
	errs, ok := v.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 3)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_TICKER", byField["ticker"].Code)
	assert.Equal(t, "ERR_LTE", byField["limit"].Code)
	assert.Equal(t, "50", byField["limit"].Params["max"])
	assert.Equal(t, []string{"mean", "median"}, byField["stat"].Params["options"])
}

func TestValidateStructAndValidationErrors(t *testing.T) {
	err := ValidationErrors(ValidateStruct(context.Background(), &quoteRequest{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticker is required")

	assert.NoError(t, ValidationErrors(ValidateStruct(context.Background(), &quoteRequest{Ticker: "MSFT"})))
	assert.NoError(t, ValidationErrors("not a list"))
}
