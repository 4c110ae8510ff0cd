package models

import (
	"sort"
	"time"
)

// Valuation rule labels.
const (
	RulePE        = "PE"
	RulePB        = "P/B"
	RuleEVEBITDA  = "EV/EBITDA"
	BasisPrice    = "price"
	BasisEnterVal = "enterprise_value"
)

// ImpliedValuation is the target value implied by one peer multiple.
type ImpliedValuation struct {
	Label        string   `json:"label"`
	Basis        string   `json:"basis"` // price or enterprise_value
	Implied      float64  `json:"implied"`
	PeerMultiple float64  `json:"peer_multiple"`
	Current      *float64 `json:"current,omitempty"`
}

// UpsidePct compares the implied value with the target's current value, in percent.
func (v ImpliedValuation) UpsidePct() *float64 {
	if !Known(v.Current) {
		return nil
	}
	return Float((v.Implied/(*v.Current) - 1) * 100)
}

// FCFPoint is one reported free cash flow.
type FCFPoint struct {
	PeriodEnd time.Time `json:"period_end"`
	Value     float64   `json:"value"`
}

// FCFSeries is a free cash flow history ordered oldest first.
type FCFSeries []FCFPoint

// NewFCFSeries copies points and sorts them by period end.
func NewFCFSeries(points ...FCFPoint) FCFSeries {
	s := make(FCFSeries, len(points))
	copy(s, points)
	sort.SliceStable(s, func(i, j int) bool { return s[i].PeriodEnd.Before(s[j].PeriodEnd) })
	return s
}

// SeriesFromValues builds a series of consecutive fiscal years ending with the last value.
func SeriesFromValues(lastYear int, values ...float64) FCFSeries {
	s := make(FCFSeries, len(values))
	first := lastYear - len(values) + 1
	for i, v := range values {
		s[i] = FCFPoint{PeriodEnd: time.Date(first+i, time.December, 31, 0, 0, 0, 0, time.UTC), Value: v}
	}
	return s
}

func (s FCFSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Latest returns the most recent point.
func (s FCFSeries) Latest() (FCFPoint, bool) {
	if len(s) == 0 {
		return FCFPoint{}, false
	}
	return s[len(s)-1], true
}

type BalanceSheet struct {
	Cash *float64 `json:"cash"`
	Debt *float64 `json:"debt"`
}

// DCFInputs are the non-history parameters of a DCF run.
type DCFInputs struct {
	Horizon           int
	WACC              float64
	TerminalGrowth    float64
	Cash              float64
	Debt              float64
	SharesOutstanding float64
	CurrentPrice      float64
	GrowthOverride    *float64 // replaces the historical estimate, still clamped
}

type DCFResult struct {
	BaseFCF        float64   `json:"base_fcf"`
	GrowthRate     float64   `json:"growth_rate"`
	Projected      []float64 `json:"projected_fcf"`
	PVProjected    []float64 `json:"pv_projected_fcf"`
	TerminalValue  float64   `json:"terminal_value"`
	PVTerminal     float64   `json:"pv_terminal_value"`
	EnterpriseVal  float64   `json:"enterprise_value"`
	Cash           float64   `json:"cash"`
	Debt           float64   `json:"debt"`
	EquityValue    float64   `json:"equity_value"`
	Shares         float64   `json:"shares_outstanding"`
	IntrinsicValue *float64  `json:"intrinsic_value_per_share"`
	CurrentPrice   float64   `json:"current_price"`
	UpsidePct      *float64  `json:"upside_pct"`
	WACC           float64   `json:"wacc"`
	TerminalGrowth float64   `json:"terminal_growth"`
	Horizon        int       `json:"horizon"`
}

// SumPVProjected is the discounted value of the explicit forecast.
func (r *DCFResult) SumPVProjected() float64 {
	var sum float64
	for _, v := range r.PVProjected {
		sum += v
	}
	return sum
}

// TerminalShare is the fraction of enterprise value contributed by the terminal value.
func (r *DCFResult) TerminalShare() float64 {
	if r.EnterpriseVal == 0 {
		return 0
	}
	return r.PVTerminal / r.EnterpriseVal
}

// PeerWarning records a non-fatal problem met while assembling a report.
type PeerWarning struct {
	Ticker  string `json:"ticker"`
	Message string `json:"message"`
}

type CompsReport struct {
	ID          string                      `json:"id"`
	Target      MetricRecord                `json:"target"`
	Peers       []MetricRecord              `json:"peers"`
	Stats       map[Multiple]MultipleStat   `json:"stats"`
	Stat        StatKind                    `json:"stat"`
	Valuations  map[string]ImpliedValuation `json:"valuations"`
	Warnings    []PeerWarning               `json:"warnings,omitempty"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

type DCFReport struct {
	ID          string        `json:"id"`
	Ticker      string        `json:"ticker"`
	Name        string        `json:"name"`
	History     FCFSeries     `json:"history"`
	Result      DCFResult     `json:"result"`
	Warnings    []PeerWarning `json:"warnings,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// DCFSummary is the archived form of a DCF report.
type DCFSummary struct {
	ID             string    `json:"id"`
	Ticker         string    `json:"ticker"`
	GrowthRate     float64   `json:"growth_rate"`
	WACC           float64   `json:"wacc"`
	TerminalGrowth float64   `json:"terminal_growth"`
	EnterpriseVal  float64   `json:"enterprise_value"`
	EquityValue    float64   `json:"equity_value"`
	IntrinsicValue *float64  `json:"intrinsic_value_per_share"`
	CurrentPrice   float64   `json:"current_price"`
	UpsidePct      *float64  `json:"upside_pct"`
	GeneratedAt    time.Time `json:"generated_at"`
}
