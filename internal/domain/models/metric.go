package models

import "time"

// Multiple names a valuation multiple column.
type Multiple string

const (
	PE          Multiple = "pe_ratio"
	ForwardPE   Multiple = "forward_pe"
	PEG         Multiple = "peg_ratio"
	PriceToBook Multiple = "price_to_book"
	PriceToSale Multiple = "price_to_sales"
	EVToRevenue Multiple = "ev_to_revenue"
	EVToEBITDA  Multiple = "ev_to_ebitda"
)

// AllMultiples lists every multiple in report order.
var AllMultiples = []Multiple{PE, ForwardPE, PEG, PriceToBook, PriceToSale, EVToRevenue, EVToEBITDA}

// IsValid reports whether m is a known multiple.
func (m Multiple) IsValid() bool {
	for _, k := range AllMultiples {
		if k == m {
			return true
		}
	}
	return false
}

// MetricRecord is a snapshot of one company's market data.
// A nil pointer means the provider did not report the value.
type MetricRecord struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`

	Price           *float64 `json:"price"`
	MarketCap       *float64 `json:"market_cap"`
	EnterpriseValue *float64 `json:"enterprise_value"`

	PERatio      *float64 `json:"pe_ratio"`
	ForwardPE    *float64 `json:"forward_pe"`
	PEGRatio     *float64 `json:"peg_ratio"`
	PriceToBook  *float64 `json:"price_to_book"`
	PriceToSales *float64 `json:"price_to_sales"`
	EVToRevenue  *float64 `json:"ev_to_revenue"`
	EVToEBITDA   *float64 `json:"ev_to_ebitda"`

	RevenueGrowth *float64 `json:"revenue_growth"`
	ProfitMargin  *float64 `json:"profit_margin"`
	ROE           *float64 `json:"roe"`
	DebtToEquity  *float64 `json:"debt_to_equity"`
	CurrentRatio  *float64 `json:"current_ratio"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Multiple returns the value of the named multiple column.
func (r *MetricRecord) Multiple(m Multiple) *float64 {
	switch m {
	case PE:
		return r.PERatio
	case ForwardPE:
		return r.ForwardPE
	case PEG:
		return r.PEGRatio
	case PriceToBook:
		return r.PriceToBook
	case PriceToSale:
		return r.PriceToSales
	case EVToRevenue:
		return r.EVToRevenue
	case EVToEBITDA:
		return r.EVToEBITDA
	default:
		return nil
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Known reports whether p holds a non-zero value.
func Known(p *float64) bool { return p != nil && *p != 0 }
