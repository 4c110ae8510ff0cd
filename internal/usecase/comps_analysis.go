package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"FinValue/internal/domain/models"
	drepo "FinValue/internal/domain/repository"
	"FinValue/internal/services/comps"
	"FinValue/pkg/logger"
	"FinValue/pkg/metrics"
	"FinValue/pkg/util"
)

// CompsAnalysis fetches a target and its peers, summarises peer multiples and
// maps them back onto the target.
type CompsAnalysis struct {
	provider drepo.DataProvider
	feed     drepo.PriceFeed
	stats    *comps.Statistics
	engine   *comps.Engine
	sinks    []drepo.ResultSink
	metrics  drepo.Metrics
	log      *logger.Logger

	maxConcurrency int
	defaultStat    models.StatKind
	defaultFields  []models.Multiple

	now   func() time.Time
	newID func() string
}

type CompsOption func(*CompsAnalysis)

// WithCompsPriceFeed replaces the target's quoted price with a live trade price when available.
func WithCompsPriceFeed(f drepo.PriceFeed) CompsOption {
	return func(a *CompsAnalysis) { a.feed = f }
}

func WithCompsSinks(sinks ...drepo.ResultSink) CompsOption {
	return func(a *CompsAnalysis) { a.sinks = append(a.sinks, sinks...) }
}

func WithCompsMetrics(m drepo.Metrics) CompsOption {
	return func(a *CompsAnalysis) { a.metrics = m }
}

func WithCompsLogger(l *logger.Logger) CompsOption {
	return func(a *CompsAnalysis) { a.log = l }
}

// WithCompsConcurrency bounds the number of peers fetched at once.
func WithCompsConcurrency(n int) CompsOption {
	return func(a *CompsAnalysis) {
		if n > 0 {
			a.maxConcurrency = n
		}
	}
}

// WithCompsDefaults sets the statistic and multiples used when a request leaves them empty.
func WithCompsDefaults(stat models.StatKind, fields []models.Multiple) CompsOption {
	return func(a *CompsAnalysis) {
		if stat.IsValid() {
			a.defaultStat = stat
		}
		a.defaultFields = fields
	}
}

func NewCompsAnalysis(provider drepo.DataProvider, opts ...CompsOption) *CompsAnalysis {
	a := &CompsAnalysis{
		provider:       provider,
		stats:          comps.NewStatistics(),
		engine:         comps.NewEngine(),
		metrics:        metrics.Nop{},
		log:            logger.Nop(),
		maxConcurrency: 4,
		defaultStat:    models.DefaultStatKind(),
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run performs one comparable company analysis.
func (a *CompsAnalysis) Run(ctx context.Context, req models.CompsRequest) (rep *models.CompsReport, err error) {
	start := time.Now()
	defer func() {
		a.metrics.RecordLatency("comps", time.Since(start).Seconds())
		a.metrics.RecordValuation("comps", resultLabel(err))
	}()

	target := strings.ToUpper(strings.TrimSpace(req.Ticker))
	peers := make([]string, 0)
	for _, p := range util.SplitTickers(req.Peers) {
		if p != target {
			peers = append(peers, p)
		}
	}
	if len(peers) == 0 {
		return nil, models.NewDomainError("comps", "at least one peer other than %s is required", target)
	}

	kind := a.defaultStat
	if req.Stat != "" {
		kind = models.StatKind(strings.ToLower(req.Stat))
		if !kind.IsValid() {
			return nil, models.NewDomainError("comps", "unknown statistic %q", req.Stat)
		}
	}
	fields, err := a.parseMultiples(req.Multiples)
	if err != nil {
		return nil, err
	}

	targetRec, err := a.provider.FetchMetrics(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch target %s: %w", target, err)
	}

	var warnings []models.PeerWarning
	if w := a.applyLivePrice(ctx, targetRec); w != nil {
		warnings = append(warnings, *w)
	}

	peerRecs, peerWarnings := a.fetchPeers(ctx, peers)
	warnings = append(warnings, peerWarnings...)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	stats := a.stats.Compute(peerRecs, fields)
	if !comps.HasPeerData(stats) {
		return nil, models.NewDomainError("comps", "no peer provides any requested multiple (%d of %d peers fetched)", len(peerRecs), len(peers))
	}

	vals, err := a.engine.Value(*targetRec, stats, kind)
	if err != nil {
		return nil, err
	}

	rep = &models.CompsReport{
		ID:          a.newID(),
		Target:      *targetRec,
		Peers:       peerRecs,
		Stats:       stats,
		Stat:        kind,
		Valuations:  vals,
		Warnings:    warnings,
		GeneratedAt: a.now().UTC(),
	}
	if pe, ok := vals[models.RulePE]; ok {
		if up := pe.UpsidePct(); up != nil {
			a.metrics.RecordUpside("comps", target, *up)
		}
	}

	a.log.Info("comps analysis done",
		logger.String("report_id", rep.ID),
		logger.String("ticker", target),
		logger.Int("peers", len(peerRecs)),
		logger.Int("skipped", len(peers)-len(peerRecs)),
		logger.Int("valuations", len(vals)),
		logger.Duration("took_ms", time.Since(start)),
	)
	saveAll(ctx, a.log, a.metrics, a.sinks, func(ctx context.Context, s drepo.ResultSink) error {
		return s.SaveComps(ctx, rep)
	})
	return rep, nil
}

func (a *CompsAnalysis) parseMultiples(raw string) ([]models.Multiple, error) {
	names := util.SplitList(raw)
	if len(names) == 0 {
		return a.defaultFields, nil
	}
	out := make([]models.Multiple, 0, len(names))
	for _, n := range names {
		m := models.Multiple(strings.ToLower(n))
		if !m.IsValid() {
			return nil, models.NewDomainError("comps", "unknown multiple %q", n)
		}
		out = append(out, m)
	}
	return out, nil
}

// fetchPeers fetches peers concurrently. A failed peer becomes a warning and
// is left out; the order of the returned records follows peers.
func (a *CompsAnalysis) fetchPeers(ctx context.Context, peers []string) ([]models.MetricRecord, []models.PeerWarning) {
	recs := make([]*models.MetricRecord, len(peers))
	errs := make([]error, len(peers))

	var g errgroup.Group
	g.SetLimit(a.maxConcurrency)
	for i, p := range peers {
		i, p := i, p
		g.Go(func() error {
			rec, err := a.provider.FetchMetrics(ctx, p)
			if err != nil {
				errs[i] = &models.PeerFetchError{Ticker: p, Err: err}
				return nil
			}
			recs[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.MetricRecord, 0, len(peers))
	var warnings []models.PeerWarning
	for i, p := range peers {
		if errs[i] != nil {
			a.metrics.RecordPeerSkipped(p)
			a.log.Warn("peer skipped", logger.String("ticker", p), logger.Error(errs[i]))
			warnings = append(warnings, models.PeerWarning{Ticker: p, Message: errs[i].Error()})
			continue
		}
		out = append(out, *recs[i])
	}
	return out, warnings
}

func (a *CompsAnalysis) applyLivePrice(ctx context.Context, rec *models.MetricRecord) *models.PeerWarning {
	if a.feed == nil {
		return nil
	}
	price, err := a.feed.LastPrice(ctx, rec.Ticker)
	if err != nil || price <= 0 {
		a.log.Warn("live price unavailable, using quote", logger.String("ticker", rec.Ticker), logger.Error(err))
		return &models.PeerWarning{Ticker: rec.Ticker, Message: "live price unavailable, using last quote"}
	}
	rec.Price = models.Float(price)
	return nil
}
