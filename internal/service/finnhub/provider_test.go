package finnhub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinValue/internal/domain/models"
	"FinValue/internal/service/ratelimit"
)

const financialsJSON = `{"data":[
 {"year":2024,"endDate":"2024-09-28 00:00:00","report":{
   "cf":[{"concept":"us-gaap_NetCashProvidedByUsedInOperatingActivities","value":120000000},
         {"concept":"us-gaap_PaymentsToAcquirePropertyPlantAndEquipment","value":20000000}],
   "bs":[{"concept":"us-gaap_CashAndCashEquivalentsAtCarryingValue","value":50000000},
         {"concept":"us-gaap_LongTermDebtNoncurrent","value":15000000},
         {"concept":"us-gaap_LongTermDebtCurrent","value":5000000},
         {"concept":"us-gaap_CommercialPaper","value":"N/A"}]}},
 {"year":2023,"endDate":"2023-09-30 00:00:00","report":{
   "cf":[{"concept":"us-gaap_NetCashProvidedByUsedInOperatingActivities","value":100000000},
         {"concept":"us-gaap_PaymentsToAcquirePropertyPlantAndEquipment","value":10000000}],
   "bs":[]}},
 {"year":2022,"endDate":"2022-09-24 00:00:00","report":{"cf":[{"concept":"us-gaap_FreeCashFlow","value":80000000}],"bs":[]}},
 {"year":2021,"endDate":"2021-09-25 00:00:00","report":{"cf":[{"concept":"us-gaap_Revenues","value":1}],"bs":[]}}
]}`

func newFakeFinnhub(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/stock/profile2", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		assert.Equal(t, "test-key", r.Header.Get("X-Finnhub-Token"))
		switch r.URL.Query().Get("symbol") {
		case "AAPL":
			_, _ = w.Write([]byte(`{"name":"Apple Inc","ticker":"AAPL","finnhubIndustry":"Technology","marketCapitalization":3000000,"shareOutstanding":15000}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "AAPL" {
			_, _ = w.Write([]byte(`{"c":200.5,"pc":199}`))
			return
		}
		_, _ = w.Write([]byte(`{"c":0}`))
	})
	mux.HandleFunc("/stock/metric", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("metric"))
		_, _ = w.Write([]byte(`{"metric":{"peTTM":30.5,"pbQuarterly":45.1,"psTTM":7.9,"evEbitdaTTM":22.3,
			"enterpriseValue":3100000,"roeTTM":150,"netProfitMarginTTM":25,"currentRatioQuarterly":0.9,"pegTTM":null}}`))
	})
	mux.HandleFunc("/stock/financials-reported", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "annual", r.URL.Query().Get("freq"))
		if r.URL.Query().Get("symbol") == "EMPTY" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(financialsJSON))
	})
	mux.HandleFunc("/down/stock/profile2", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMetrics(t *testing.T) {
	var hits int64
	srv := newFakeFinnhub(t, &hits)
	p := NewProvider(srv.URL, "test-key")

	rec, err := p.FetchMetrics(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", rec.Ticker)
	assert.Equal(t, "Apple Inc", rec.Name)
	assert.Equal(t, "Technology", rec.Sector)
	assert.Equal(t, 200.5, *rec.Price)
	assert.Equal(t, 3e12, *rec.MarketCap)
	assert.Equal(t, 3.1e12, *rec.EnterpriseValue)
	assert.Equal(t, 30.5, *rec.PERatio)
	assert.Equal(t, 22.3, *rec.EVToEBITDA)
	assert.InDelta(t, 1.5, *rec.ROE, 1e-12)
	assert.InDelta(t, 0.25, *rec.ProfitMargin, 1e-12)
	assert.Nil(t, rec.PEGRatio)
	assert.Nil(t, rec.ForwardPE)
}

func TestFetchMetricsUnknownTicker(t *testing.T) {
	var hits int64
	srv := newFakeFinnhub(t, &hits)

	_, err := NewProvider(srv.URL, "test-key").FetchMetrics(context.Background(), "NOPE")
	var md *models.MissingDataError
	require.True(t, errors.As(err, &md))
	assert.True(t, IsNotFound(err))
}

func TestFetchUpstreamFailure(t *testing.T) {
	var hits int64
	srv := newFakeFinnhub(t, &hits)

	_, err := NewProvider(srv.URL+"/down", "test-key").FetchMetrics(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestFetchCashFlowHistory(t *testing.T) {
	var hits int64
	srv := newFakeFinnhub(t, &hits)

	s, err := NewProvider(srv.URL, "test-key").FetchCashFlowHistory(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, []float64{80e6, 90e6, 100e6}, s.Values())
	assert.Equal(t, 2022, s[0].PeriodEnd.Year())
	last, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 9, 28, 0, 0, 0, 0, time.UTC), last.PeriodEnd)
}

func TestFetchCashFlowHistoryEmpty(t *testing.T) {
	var hits int64
	srv := newFakeFinnhub(t, &hits)

	_, err := NewProvider(srv.URL, "test-key").FetchCashFlowHistory(context.Background(), "EMPTY")
	var md *models.MissingDataError
	require.True(t, errors.As(err, &md))
	assert.Equal(t, "cash flow", md.Field)
}

func TestFetchBalanceSheet(t *testing.T) {
	var hits int64
	srv := newFakeFinnhub(t, &hits)

	bs, err := NewProvider(srv.URL, "test-key").FetchBalanceSheet(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, bs.Cash)
	require.NotNil(t, bs.Debt)
	assert.Equal(t, 50e6, *bs.Cash)
	assert.Equal(t, 20e6, *bs.Debt)
}

func TestFetchSharesOutstanding(t *testing.T) {
	var hits int64
	srv := newFakeFinnhub(t, &hits)
	p := NewProvider(srv.URL, "test-key")

	shares, err := p.FetchSharesOutstanding(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 15e9, shares)

	_, err = p.FetchSharesOutstanding(context.Background(), "NOPE")
	assert.True(t, IsNotFound(err))
}

func TestConcurrentIdenticalRequestsStayCorrect(t *testing.T) {
	var hits int64
	srv := newFakeFinnhub(t, &hits)
	p := NewProvider(srv.URL, "test-key")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shares, err := p.FetchSharesOutstanding(context.Background(), "AAPL")
			assert.NoError(t, err)
			assert.Equal(t, 15e9, shares)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&hits), int64(8))
}

func TestRateLimitedProvider(t *testing.T) {
	var hits int64
	srv := newFakeFinnhub(t, &hits)
	p := NewProvider(srv.URL, "test-key", WithLimiter(ratelimit.New(1, 0), 20*time.Millisecond))

	_, err := p.FetchSharesOutstanding(context.Background(), "AAPL")
	require.NoError(t, err)

	_, err = p.FetchSharesOutstanding(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, ratelimit.ErrLimited)
}
