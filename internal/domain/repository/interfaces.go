package repository

import (
	"context"

	"FinValue/internal/domain/models"
)

// DataProvider fetches public financial data for a ticker.
type DataProvider interface {
	FetchMetrics(ctx context.Context, ticker string) (*models.MetricRecord, error)
	FetchCashFlowHistory(ctx context.Context, ticker string) (models.FCFSeries, error)
	FetchBalanceSheet(ctx context.Context, ticker string) (models.BalanceSheet, error)
	FetchSharesOutstanding(ctx context.Context, ticker string) (float64, error)
}

// PriceFeed returns a live last-trade price.
type PriceFeed interface {
	LastPrice(ctx context.Context, ticker string) (float64, error)
}

// ResultSink receives finished valuation reports.
type ResultSink interface {
	SaveComps(ctx context.Context, r *models.CompsReport) error
	SaveDCF(ctx context.Context, r *models.DCFReport) error
}

// ResultStore is a ResultSink that can also be queried.
type ResultStore interface {
	ResultSink
	Init(ctx context.Context) error
	ListDCF(ctx context.Context, ticker string, limit int) ([]models.DCFSummary, error)
	Health(ctx context.Context) error
	Close() error
}

// RateLimiter decides whether a call identified by key may proceed now.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Metrics interface {
	RecordValuation(kind, result string)
	RecordError(kind string)
	RecordPeerSkipped(ticker string)
	RecordLatency(op string, seconds float64)
	RecordUpside(kind, ticker string, pct float64)
}
