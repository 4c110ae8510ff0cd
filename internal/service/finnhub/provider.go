package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"FinValue/internal/domain/models"
	drepo "FinValue/internal/domain/repository"
	pmetrics "FinValue/internal/service/metrics"
	"FinValue/internal/service/ratelimit"
	xhttp "FinValue/pkg/http"
	"FinValue/pkg/logger"
	"FinValue/pkg/util"
)

var _ drepo.DataProvider = (*Provider)(nil)

const (
	million      = 1e6
	limiterKey   = "finnhub"
	unknownLabel = "Unknown"
)

// Provider implements DataProvider over the Finnhub REST API.
type Provider struct {
	baseURL string
	apiKey  string
	client  *xhttp.Client
	limiter drepo.RateLimiter
	maxWait time.Duration
	group   singleflight.Group
	log     *logger.Logger
	now     func() time.Time
}

type Option func(*Provider)

func WithLimiter(l drepo.RateLimiter, maxWait time.Duration) Option {
	return func(p *Provider) {
		p.limiter = l
		p.maxWait = maxWait
	}
}

func WithHTTPClient(c *xhttp.Client) Option {
	return func(p *Provider) { p.client = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(p *Provider) { p.log = l }
}

func NewProvider(baseURL, apiKey string, opts ...Option) *Provider {
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  xhttp.NewClient(xhttp.WithTimeout(10 * time.Second)),
		maxWait: 5 * time.Second,
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// get fetches path once per identical in-flight request and decodes into dest.
func (p *Provider) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	key := path + "?" + query.Encode()

	v, err, shared := p.group.Do(key, func() (interface{}, error) {
		if err := ratelimit.Wait(ctx, p.limiter, limiterKey, p.maxWait); err != nil {
			return nil, err
		}
		start := time.Now()
		var raw []byte
		err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         p.baseURL + path,
			Headers:     map[string]string{"X-Finnhub-Token": p.apiKey},
			QueryParams: query,
		}, &raw)
		pmetrics.ObserveCall(path, time.Since(start), err)
		p.log.Debug("finnhub request",
			logger.String("path", path),
			logger.Duration("took_ms", time.Since(start)),
			logger.Bool("ok", err == nil),
		)
		return raw, err
	})
	if shared {
		pmetrics.ProviderDeduped.WithLabelValues(path).Inc()
	}
	if err != nil {
		return fmt.Errorf("finnhub %s: %w: %w", path, models.ErrProviderUnavailable, err)
	}
	if err := json.Unmarshal(v.([]byte), dest); err != nil {
		return fmt.Errorf("finnhub %s: decode: %w", path, err)
	}
	return nil
}

type quote struct {
	Current       float64 `json:"c"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

type profile struct {
	Name             string  `json:"name"`
	Ticker           string  `json:"ticker"`
	Industry         string  `json:"finnhubIndustry"`
	MarketCap        float64 `json:"marketCapitalization"` // millions
	ShareOutstanding float64 `json:"shareOutstanding"`     // millions
	Currency         string  `json:"currency"`
}

type basicFinancials struct {
	Metric map[string]interface{} `json:"metric"`
}

func symbolQuery(ticker string) url.Values {
	return url.Values{"symbol": []string{ticker}}
}

func (p *Provider) fetchProfile(ctx context.Context, ticker string) (*profile, error) {
	var pr profile
	if err := p.get(ctx, "/stock/profile2", symbolQuery(ticker), &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

func (p *Provider) FetchMetrics(ctx context.Context, ticker string) (*models.MetricRecord, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	pr, err := p.fetchProfile(ctx, ticker)
	if err != nil {
		return nil, err
	}
	var q quote
	if err := p.get(ctx, "/quote", symbolQuery(ticker), &q); err != nil {
		return nil, err
	}
	if pr.Name == "" && q.Current == 0 {
		return nil, &models.MissingDataError{Ticker: ticker, Field: "profile"}
	}

	mq := symbolQuery(ticker)
	mq.Set("metric", "all")
	var bf basicFinancials
	if err := p.get(ctx, "/stock/metric", mq, &bf); err != nil {
		return nil, err
	}
	m := metricSet(bf.Metric)

	rec := &models.MetricRecord{
		Ticker:    ticker,
		Name:      orLabel(pr.Name, ticker),
		Sector:    orLabel(pr.Industry, unknownLabel),
		Industry:  orLabel(pr.Industry, unknownLabel),
		FetchedAt: p.now().UTC(),

		PERatio:      m.first("peTTM", "peBasicExclExtraTTM", "peAnnual"),
		ForwardPE:    m.first("forwardPE", "peForward"),
		PEGRatio:     m.first("pegTTM", "pegRatio"),
		PriceToBook:  m.first("pbQuarterly", "pbAnnual", "ptbvQuarterly"),
		PriceToSales: m.first("psTTM", "psAnnual"),
		EVToRevenue:  m.first("evRevenueTTM", "currentEv/revenueTTM"),
		EVToEBITDA:   m.first("evEbitdaTTM", "currentEv/ebitdaTTM"),

		RevenueGrowth: percent(m.first("revenueGrowthTTMYoy", "revenueGrowthQuarterlyYoy")),
		ProfitMargin:  percent(m.first("netProfitMarginTTM", "netProfitMarginAnnual")),
		ROE:           percent(m.first("roeTTM", "roeRfy")),
		DebtToEquity:  m.first("totalDebt/totalEquityQuarterly", "totalDebt/totalEquityAnnual"),
		CurrentRatio:  m.first("currentRatioQuarterly", "currentRatioAnnual"),
	}
	if q.Current > 0 {
		rec.Price = models.Float(q.Current)
	}
	if pr.MarketCap > 0 {
		rec.MarketCap = models.Float(pr.MarketCap * million)
	}
	if ev := m.first("enterpriseValue"); ev != nil {
		rec.EnterpriseValue = models.Float(*ev * million)
	}
	return rec, nil
}

func (p *Provider) FetchSharesOutstanding(ctx context.Context, ticker string) (float64, error) {
	pr, err := p.fetchProfile(ctx, strings.ToUpper(ticker))
	if err != nil {
		return 0, err
	}
	if pr.ShareOutstanding <= 0 {
		return 0, &models.MissingDataError{Ticker: ticker, Field: "shares outstanding"}
	}
	return pr.ShareOutstanding * million, nil
}

type reportItem struct {
	Concept string      `json:"concept"`
	Value   interface{} `json:"value"`
}

type filing struct {
	Year    int    `json:"year"`
	Quarter int    `json:"quarter"`
	Form    string `json:"form"`
	EndDate string `json:"endDate"`
	Report  struct {
		BS []reportItem `json:"bs"`
		CF []reportItem `json:"cf"`
	} `json:"report"`
}

type financialsReported struct {
	Data []filing `json:"data"`
}

func (p *Provider) fetchAnnualFilings(ctx context.Context, ticker string) ([]filing, error) {
	q := symbolQuery(strings.ToUpper(ticker))
	q.Set("freq", "annual")
	var fr financialsReported
	if err := p.get(ctx, "/stock/financials-reported", q, &fr); err != nil {
		return nil, err
	}
	return fr.Data, nil
}

// FetchCashFlowHistory returns annual free cash flow, oldest first.
// FCF is the reported concept when present, otherwise operating cash flow
// less capital expenditure payments.
func (p *Provider) FetchCashFlowHistory(ctx context.Context, ticker string) (models.FCFSeries, error) {
	filings, err := p.fetchAnnualFilings(ctx, ticker)
	if err != nil {
		return nil, err
	}

	points := make([]models.FCFPoint, 0, len(filings))
	seen := make(map[int]bool, len(filings))
	for _, f := range filings {
		if seen[f.Year] {
			continue
		}
		cf := concepts(f.Report.CF)

		var fcf float64
		if v, ok := cf.value("FreeCashFlow"); ok {
			fcf = v
		} else if ocf, ok := cf.value("NetCashProvidedByUsedInOperatingActivities", "NetCashProvidedByOperatingActivities"); ok {
			capex, _ := cf.value("PaymentsToAcquirePropertyPlantAndEquipment", "PaymentsToAcquireProductiveAssets")
			fcf = ocf - capex
		} else {
			continue
		}

		seen[f.Year] = true
		points = append(points, models.FCFPoint{PeriodEnd: periodEnd(f), Value: fcf})
	}
	if len(points) == 0 {
		return nil, &models.MissingDataError{Ticker: ticker, Field: "cash flow"}
	}
	return models.NewFCFSeries(points...), nil
}

// FetchBalanceSheet reads cash and total debt from the latest annual filing.
func (p *Provider) FetchBalanceSheet(ctx context.Context, ticker string) (models.BalanceSheet, error) {
	filings, err := p.fetchAnnualFilings(ctx, ticker)
	if err != nil {
		return models.BalanceSheet{}, err
	}
	if len(filings) == 0 {
		return models.BalanceSheet{}, &models.MissingDataError{Ticker: ticker, Field: "balance sheet"}
	}
	sort.SliceStable(filings, func(i, j int) bool { return filings[i].Year > filings[j].Year })
	bs := concepts(filings[0].Report.BS)

	var out models.BalanceSheet
	if v, ok := bs.value(
		"CashAndCashEquivalentsAtCarryingValue",
		"CashCashEquivalentsRestrictedCashAndRestrictedCashEquivalents",
		"Cash",
	); ok {
		out.Cash = models.Float(v)
	}

	var debt float64
	var found bool
	add := func(names ...string) {
		if v, ok := bs.value(names...); ok {
			debt += v
			found = true
		}
	}
	if _, ok := bs.value("LongTermDebt"); ok {
		add("LongTermDebt")
	} else {
		add("LongTermDebtNoncurrent")
		add("LongTermDebtCurrent")
	}
	add("ShortTermBorrowings")
	add("CommercialPaper")
	if found {
		out.Debt = models.Float(debt)
	}
	return out, nil
}

func periodEnd(f filing) time.Time {
	return util.ParseDateDefault(f.EndDate, util.YearEnd(f.Year))
}

// conceptMap indexes report items by concept name without taxonomy prefix.
type conceptMap map[string]float64

func concepts(items []reportItem) conceptMap {
	m := make(conceptMap, len(items))
	for _, it := range items {
		name := it.Concept
		if i := strings.IndexAny(name, "_:"); i >= 0 {
			name = name[i+1:]
		}
		if v, ok := toFloat(it.Value); ok {
			if _, dup := m[name]; !dup {
				m[name] = v
			}
		}
	}
	return m
}

func (m conceptMap) value(names ...string) (float64, bool) {
	for _, n := range names {
		if v, ok := m[n]; ok {
			return v, true
		}
	}
	return 0, false
}

type metricSet map[string]interface{}

func (m metricSet) first(keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := toFloat(m[k]); ok {
			return models.Float(v)
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func percent(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return models.Float(*p / 100)
}

func orLabel(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// IsNotFound reports whether err means the ticker has no data upstream.
func IsNotFound(err error) bool {
	var md *models.MissingDataError
	if errors.As(err, &md) {
		return true
	}
	var se *xhttp.StatusError
	return errors.As(err, &se) && se.Code == 404
}
