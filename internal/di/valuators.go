package di

import (
	"FinValue/internal/services/report"
	"FinValue/internal/usecase"
	"FinValue/pkg/config"
	"FinValue/pkg/logger"
	"FinValue/pkg/metrics"
)

// Valuators is the dependency set for one-shot command line runs: no
// servers, no archive, no job intake.
type Valuators struct {
	Log      *logger.Logger
	Comps    *usecase.CompsAnalysis
	DCF      *usecase.DCFAnalysis
	Renderer *report.TextRenderer
	Exporter *report.ExcelExporter
}

// InitializeValuators builds the use cases against the Finnhub provider with
// an in-process rate limiter.
func InitializeValuators(cfg *config.Config) (*Valuators, error) {
	l, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	provider := ProvideDataProvider(cfg, ProvideRateLimiter(cfg, nil), l)
	feed := ProvidePriceFeed(cfg, l)
	m := metrics.Nop{}
	return &Valuators{
		Log:      l,
		Comps:    ProvideCompsAnalysis(cfg, provider, feed, nil, m, l),
		DCF:      ProvideDCFAnalysis(cfg, provider, feed, nil, m, l),
		Renderer: report.NewTextRenderer(),
		Exporter: report.NewExcelExporter(),
	}, nil
}
