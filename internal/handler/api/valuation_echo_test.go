package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinValue/internal/domain/models"
	"FinValue/internal/services/report"
	"FinValue/internal/usecase"
	"FinValue/pkg/cache"
	xlogger "FinValue/pkg/logger"
)

type stubProvider struct{}

var stubMetrics = map[string]*models.MetricRecord{
	"AAPL": {Ticker: "AAPL", Name: "Apple", Price: models.Float(100), PERatio: models.Float(20)},
	"MSFT": {Ticker: "MSFT", PERatio: models.Float(25)},
	"GOOG": {Ticker: "GOOG", PERatio: models.Float(30)},
}

func (stubProvider) FetchMetrics(_ context.Context, t string) (*models.MetricRecord, error) {
	r, ok := stubMetrics[t]
	if !ok {
		return nil, fmt.Errorf("%s: %w", t, models.ErrProviderUnavailable)
	}
	cp := *r
	return &cp, nil
}

func (stubProvider) FetchCashFlowHistory(_ context.Context, t string) (models.FCFSeries, error) {
	if t != "AAPL" {
		return nil, &models.MissingDataError{Ticker: t, Field: "free cash flow"}
	}
	return models.SeriesFromValues(2023, 100, 110, 121), nil
}

func (stubProvider) FetchBalanceSheet(context.Context, string) (models.BalanceSheet, error) {
	return models.BalanceSheet{Cash: models.Float(10), Debt: models.Float(5)}, nil
}

func (stubProvider) FetchSharesOutstanding(context.Context, string) (float64, error) {
	return 10, nil
}

type recordingPublisher struct{ topic string }

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ []byte, _ interface{}) error {
	p.topic = topic
	return nil
}

func newTestServer(t *testing.T, opts ...ValuationHandlerOption) *echo.Echo {
	t.Helper()
	var p stubProvider
	h := NewValuationEchoHandler(
		xlogger.Nop(),
		usecase.NewCompsAnalysis(p),
		usecase.NewDCFAnalysis(p),
		report.NewTextRenderer(),
		report.NewExcelExporter(),
		opts...,
	)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestCompsEndpoint(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/comps?ticker=AAPL&peers=MSFT,GOOG,NOPE", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rep models.CompsReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rep))
	assert.Len(t, rep.Peers, 2)
	assert.Len(t, rep.Warnings, 1)
	assert.InDelta(t, 137.5, rep.Valuations[models.RulePE].Implied, 1e-9)
}

func TestCompsEndpointErrors(t *testing.T) {
	e := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/comps?peers=MSFT", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/comps?ticker=AAPL&peers=MSFT&stat=mode", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodGet, "/api/comps?ticker=AAPL&peers=AAPL", "").Code)
	assert.Equal(t, http.StatusBadGateway, do(e, http.MethodGet, "/api/comps?ticker=NOPE&peers=MSFT", "").Code)
}

func TestDCFEndpoints(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodGet, "/api/dcf?ticker=AAPL&horizon=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rep models.DCFReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rep))
	assert.Equal(t, 3, rep.Result.Horizon)
	assert.InDelta(t, 0.10, rep.Result.GrowthRate, 1e-9)

	rec = do(e, http.MethodGet, "/api/dcf/report?ticker=AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/plain")
	assert.NotEmpty(t, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/dcf/export?ticker=AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeXLSX, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "dcf_aapl_")

	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodGet, "/api/dcf?ticker=AAPL&wacc=0.02&terminal_growth=0.03", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/dcf?ticker=MSFT", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/dcf?ticker=AAPL&horizon=31", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodGet, "/api/dcf?ticker=AAPL&growth=NaN", "").Code)

	rec = do(e, http.MethodGet, "/api/dcf?ticker=AAPL&terminal_growth=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rep = models.DCFReport{}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rep))
	assert.Equal(t, 0.0, rep.Result.TerminalGrowth)
	assert.Equal(t, 0.10, rep.Result.WACC)
}

func TestDCFHistoryDisabled(t *testing.T) {
	e := newTestServer(t, WithHistory(usecase.NewHistory(nil)))
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/api/dcf/history?ticker=AAPL", "").Code)
}

func TestJobsEndpoints(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	tracker := usecase.NewJobTracker(mc, 0, 0)
	pub := &recordingPublisher{}
	e := newTestServer(t, WithJobs(usecase.NewJobSubmitter(pub, "finvalue.requests", tracker, nil), tracker))

	rec := do(e, http.MethodPost, "/api/jobs", `{"type":"dcf","dcf":{"ticker":"AAPL"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var st models.JobStatus
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &st))
	assert.Equal(t, models.JobQueued, st.State)
	assert.Equal(t, "finvalue.requests", pub.topic)

	rec = do(e, http.MethodGet, "/api/jobs/"+st.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/jobs/missing", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/api/jobs", `{"type":"dcf"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/api/jobs", `{"type":"dcf","dcf":{"ticker":"AAPL","horizon":99}}`).Code)
}

func TestJobsDisabled(t *testing.T) {
	e := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodPost, "/api/jobs", `{"type":"dcf","dcf":{"ticker":"AAPL"}}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/api/jobs/x", "").Code)
}

func TestHealth(t *testing.T) {
	e := newTestServer(t,
		WithHealthCheck("clickhouse", func(context.Context) error { return nil }),
		WithHealthCheck("redis", func(context.Context) error { return errors.New("refused") }),
	)
	rec := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, "ok", body["clickhouse"])
	assert.Equal(t, "refused", body["redis"])
}
