package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"FinValue/internal/domain/models"
	drepo "FinValue/internal/domain/repository"
	pkgch "FinValue/pkg/clickhouse"
	applogger "FinValue/pkg/logger"
)

var _ drepo.ResultStore = (*CHResultStore)(nil)

// CHResultStore archives valuation reports in ClickHouse.
type CHResultStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHResultStore(ch *pkgch.Client, l *applogger.Logger) *CHResultStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHResultStore{db: ch.DB(), database: ch.Database(), l: l}
}

// Schema returns the idempotent DDL for the result tables in database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.comps_results (
            id           String,
            ticker       LowCardinality(String),
            generated_at DateTime64(3, 'UTC'),
            stat         LowCardinality(String),
            peers        Array(String),
            skipped      Array(String),
            valuations   String,
            payload      String
        ) ENGINE = MergeTree
        ORDER BY (ticker, generated_at)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.dcf_results (
            id               String,
            ticker           LowCardinality(String),
            generated_at     DateTime64(3, 'UTC'),
            horizon          UInt8,
            growth_rate      Float64,
            wacc             Float64,
            terminal_growth  Float64,
            base_fcf         Float64,
            enterprise_value Float64,
            equity_value     Float64,
            intrinsic_value  Nullable(Float64),
            current_price    Float64,
            upside_pct       Nullable(Float64),
            payload          String
        ) ENGINE = MergeTree
        ORDER BY (ticker, generated_at)`, database),
	}
}

func (s *CHResultStore) Init(ctx context.Context) error {
	for _, stmt := range Schema(s.database) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init result schema: %w", err)
		}
	}
	return nil
}

func (s *CHResultStore) table(name string) string {
	return s.database + "." + name
}

const compsColumns = "id, ticker, generated_at, stat, peers, skipped, valuations, payload"

func compsRow(r *models.CompsReport) ([]any, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode comps report: %w", err)
	}
	vals, err := json.Marshal(r.Valuations)
	if err != nil {
		return nil, fmt.Errorf("encode valuations: %w", err)
	}
	peers := make([]string, 0, len(r.Peers))
	for _, p := range r.Peers {
		peers = append(peers, p.Ticker)
	}
	skipped := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		skipped = append(skipped, w.Ticker)
	}
	return []any{
		r.ID, r.Target.Ticker, r.GeneratedAt.UTC(), string(r.Stat),
		peers, skipped, string(vals), string(payload),
	}, nil
}

const dcfColumns = "id, ticker, generated_at, horizon, growth_rate, wacc, terminal_growth, base_fcf, " +
	"enterprise_value, equity_value, intrinsic_value, current_price, upside_pct, payload"

func dcfRow(r *models.DCFReport) ([]any, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode dcf report: %w", err)
	}
	res := r.Result
	return []any{
		r.ID, r.Ticker, r.GeneratedAt.UTC(), uint8(res.Horizon), res.GrowthRate, res.WACC,
		res.TerminalGrowth, res.BaseFCF, res.EnterpriseVal, res.EquityValue,
		nullable(res.IntrinsicValue), res.CurrentPrice, nullable(res.UpsidePct), string(payload),
	}, nil
}

func nullable(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func insertSQL(table, columns string) string {
	n := strings.Count(columns, ",") + 1
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, columns, strings.TrimSuffix(strings.Repeat("?, ", n), ", "))
}

func (s *CHResultStore) SaveComps(ctx context.Context, r *models.CompsReport) error {
	args, err := compsRow(r)
	if err != nil {
		return err
	}
	return s.insert(ctx, "comps_results", compsColumns, r.Target.Ticker, args)
}

func (s *CHResultStore) SaveDCF(ctx context.Context, r *models.DCFReport) error {
	args, err := dcfRow(r)
	if err != nil {
		return err
	}
	return s.insert(ctx, "dcf_results", dcfColumns, r.Ticker, args)
}

func (s *CHResultStore) insert(ctx context.Context, name, columns, ticker string, args []any) error {
	start := time.Now()
	table := s.table(name)
	if _, err := s.db.ExecContext(ctx, insertSQL(table, columns), args...); err != nil {
		s.l.Error("clickhouse insert error",
			applogger.String("table", table),
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		return fmt.Errorf("insert %s: %w", name, err)
	}
	s.l.Debug("clickhouse insert ok",
		applogger.String("table", table),
		applogger.String("ticker", ticker),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// ListDCF returns the latest archived DCF valuations for ticker, newest first.
func (s *CHResultStore) ListDCF(ctx context.Context, ticker string, limit int) ([]models.DCFSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	q := fmt.Sprintf(`
        SELECT id, ticker, growth_rate, wacc, terminal_growth, enterprise_value,
               equity_value, intrinsic_value, current_price, upside_pct, generated_at
        FROM %s
        WHERE ticker = ?
        ORDER BY generated_at DESC
        LIMIT ?`, s.table("dcf_results"))

	rows, err := s.db.QueryContext(ctx, q, strings.ToUpper(ticker), limit)
	if err != nil {
		s.l.Error("clickhouse list_dcf query error", applogger.String("ticker", ticker), applogger.Error(err))
		return nil, fmt.Errorf("list dcf: %w", err)
	}
	defer rows.Close()

	out := make([]models.DCFSummary, 0, limit)
	for rows.Next() {
		var (
			sm            models.DCFSummary
			intrinsic, up sql.NullFloat64
		)
		if err := rows.Scan(&sm.ID, &sm.Ticker, &sm.GrowthRate, &sm.WACC, &sm.TerminalGrowth,
			&sm.EnterpriseVal, &sm.EquityValue, &intrinsic, &sm.CurrentPrice, &up, &sm.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan dcf summary: %w", err)
		}
		sm.IntrinsicValue = fromNullable(intrinsic)
		sm.UpsidePct = fromNullable(up)
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func fromNullable(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return models.Float(n.Float64)
}

func (s *CHResultStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHResultStore) Close() error { return nil }
