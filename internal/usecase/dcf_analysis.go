package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"FinValue/internal/domain/models"
	drepo "FinValue/internal/domain/repository"
	"FinValue/internal/services/dcf"
	"FinValue/pkg/logger"
	"FinValue/pkg/metrics"
	"FinValue/pkg/util"
)

// DCFDefaults fill request fields left at zero.
type DCFDefaults struct {
	Horizon        int
	WACC           float64
	TerminalGrowth float64
}

// DCFAnalysis gathers cash flow history and balance sheet data for a ticker
// and runs the DCF engine over it.
type DCFAnalysis struct {
	provider drepo.DataProvider
	feed     drepo.PriceFeed
	engine   *dcf.Engine
	sinks    []drepo.ResultSink
	metrics  drepo.Metrics
	log      *logger.Logger
	defaults DCFDefaults

	now   func() time.Time
	newID func() string
}

type DCFOption func(*DCFAnalysis)

func WithDCFEngine(e *dcf.Engine) DCFOption {
	return func(a *DCFAnalysis) { a.engine = e }
}

func WithDCFPriceFeed(f drepo.PriceFeed) DCFOption {
	return func(a *DCFAnalysis) { a.feed = f }
}

func WithDCFSinks(sinks ...drepo.ResultSink) DCFOption {
	return func(a *DCFAnalysis) { a.sinks = append(a.sinks, sinks...) }
}

func WithDCFMetrics(m drepo.Metrics) DCFOption {
	return func(a *DCFAnalysis) { a.metrics = m }
}

func WithDCFLogger(l *logger.Logger) DCFOption {
	return func(a *DCFAnalysis) { a.log = l }
}

func WithDCFDefaults(d DCFDefaults) DCFOption {
	return func(a *DCFAnalysis) { a.defaults = d }
}

func NewDCFAnalysis(provider drepo.DataProvider, opts ...DCFOption) *DCFAnalysis {
	a := &DCFAnalysis{
		provider: provider,
		engine:   dcf.NewEngine(nil),
		metrics:  metrics.Nop{},
		log:      logger.Nop(),
		defaults: DCFDefaults{Horizon: 5, WACC: 0.10, TerminalGrowth: 0.025},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// dcfData is everything fetched for one run.
type dcfData struct {
	history  models.FCFSeries
	metrics  *models.MetricRecord
	balance  models.BalanceSheet
	shares   float64
	warnings []models.PeerWarning
}

// Run performs one discounted cash flow valuation.
func (a *DCFAnalysis) Run(ctx context.Context, req models.DCFRequest) (rep *models.DCFReport, err error) {
	start := time.Now()
	defer func() {
		a.metrics.RecordLatency("dcf", time.Since(start).Seconds())
		a.metrics.RecordValuation("dcf", resultLabel(err))
	}()

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	override, err := util.ParseOptionalFloat(req.Growth)
	if err != nil || (override != nil && (math.IsNaN(*override) || math.IsInf(*override, 0))) {
		return nil, models.NewDomainError("dcf", "growth override %q is not a finite number", req.Growth)
	}
	in := a.inputs(req)
	in.GrowthOverride = override

	data, err := a.fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if data.shares <= 0 && req.RequirePerShare {
		return nil, models.NewDomainError("dcf", "shares outstanding unavailable for %s", ticker)
	}

	in.Cash = value(data.balance.Cash)
	in.Debt = value(data.balance.Debt)
	in.SharesOutstanding = data.shares
	name := ticker
	if data.metrics != nil {
		in.CurrentPrice = value(data.metrics.Price)
		if data.metrics.Name != "" {
			name = data.metrics.Name
		}
	}
	if w := a.applyLivePrice(ctx, ticker, &in); w != nil {
		data.warnings = append(data.warnings, *w)
	}

	res, err := a.engine.Valuate(data.history, in)
	if err != nil {
		return nil, err
	}

	rep = &models.DCFReport{
		ID:          a.newID(),
		Ticker:      ticker,
		Name:        name,
		History:     data.history,
		Result:      *res,
		Warnings:    data.warnings,
		GeneratedAt: a.now().UTC(),
	}
	if res.UpsidePct != nil {
		a.metrics.RecordUpside("dcf", ticker, *res.UpsidePct)
	}

	a.log.Info("dcf analysis done",
		logger.String("report_id", rep.ID),
		logger.String("ticker", ticker),
		logger.Float64("growth_rate", res.GrowthRate),
		logger.Float64("enterprise_value", res.EnterpriseVal),
		logger.Float64("terminal_share", res.TerminalShare()),
		logger.Duration("took_ms", time.Since(start)),
	)
	saveAll(ctx, a.log, a.metrics, a.sinks, func(ctx context.Context, s drepo.ResultSink) error {
		return s.SaveDCF(ctx, rep)
	})
	return rep, nil
}

func (a *DCFAnalysis) inputs(req models.DCFRequest) models.DCFInputs {
	in := models.DCFInputs{
		Horizon:        req.Horizon,
		WACC:           a.defaults.WACC,
		TerminalGrowth: a.defaults.TerminalGrowth,
	}
	if in.Horizon == 0 {
		in.Horizon = a.defaults.Horizon
	}
	if req.WACC != nil {
		in.WACC = *req.WACC
	}
	if req.TerminalGrowth != nil {
		in.TerminalGrowth = *req.TerminalGrowth
	}
	return in
}

// fetch loads the four datasets concurrently. The quote and the cash flow
// history are required; balance sheet and shares degrade to zero with a warning.
func (a *DCFAnalysis) fetch(ctx context.Context, ticker string) (*dcfData, error) {
	var (
		d                     dcfData
		balanceErr, sharesErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := a.provider.FetchCashFlowHistory(gctx, ticker)
		if err != nil {
			return fmt.Errorf("fetch cash flow history %s: %w", ticker, err)
		}
		if len(h) == 0 {
			return &models.MissingDataError{Ticker: ticker, Field: "free cash flow"}
		}
		d.history = h
		return nil
	})
	g.Go(func() error {
		m, err := a.provider.FetchMetrics(gctx, ticker)
		if err != nil {
			return fmt.Errorf("fetch metrics %s: %w", ticker, err)
		}
		d.metrics = m
		return nil
	})
	g.Go(func() error {
		d.balance, balanceErr = a.provider.FetchBalanceSheet(gctx, ticker)
		return nil
	})
	g.Go(func() error {
		d.shares, sharesErr = a.provider.FetchSharesOutstanding(gctx, ticker)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	warn := func(what string, err error) {
		a.log.Warn(what+" unavailable", logger.String("ticker", ticker), logger.Error(err))
		d.warnings = append(d.warnings, models.PeerWarning{Ticker: ticker, Message: fmt.Sprintf("%s unavailable: %v", what, err)})
	}
	if balanceErr != nil {
		d.balance = models.BalanceSheet{}
		warn("balance sheet", balanceErr)
	}
	if sharesErr != nil {
		d.shares = 0
		warn("shares outstanding", sharesErr)
	}
	return &d, nil
}

func (a *DCFAnalysis) applyLivePrice(ctx context.Context, ticker string, in *models.DCFInputs) *models.PeerWarning {
	if a.feed == nil {
		return nil
	}
	price, err := a.feed.LastPrice(ctx, ticker)
	if err != nil || price <= 0 {
		a.log.Warn("live price unavailable, using quote", logger.String("ticker", ticker), logger.Error(err))
		return &models.PeerWarning{Ticker: ticker, Message: "live price unavailable, using last quote"}
	}
	in.CurrentPrice = price
	return nil
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
