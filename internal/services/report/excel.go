package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"FinValue/internal/domain/models"
	"FinValue/internal/domain/service"
)

var _ service.ReportExporter = (*ExcelExporter)(nil)

// Sheet names used by the exporter.
const (
	SheetCompanies = "Comp_Companies"
	SheetStats     = "Multiple_Stats"
	SheetTarget    = "Target_Company"
	SheetImplied   = "Implied_Valuation"
	SheetDCF       = "DCF_Summary"
	SheetProject   = "Projection"
	SheetHistory   = "FCF_History"
)

// ExcelExporter writes reports as xlsx workbooks.
type ExcelExporter struct{}

func NewExcelExporter() *ExcelExporter { return &ExcelExporter{} }

var companyHeader = []interface{}{
	"ticker", "company", "sector", "industry", "price", "market_cap", "enterprise_value",
	"pe_ratio", "forward_pe", "peg_ratio", "price_to_book", "price_to_sales", "ev_to_revenue", "ev_to_ebitda",
	"revenue_growth", "profit_margin", "roe", "debt_to_equity", "current_ratio",
}

func companyRow(r models.MetricRecord) []interface{} {
	return []interface{}{
		r.Ticker, r.Name, r.Sector, r.Industry, cell(r.Price), cell(r.MarketCap), cell(r.EnterpriseValue),
		cell(r.PERatio), cell(r.ForwardPE), cell(r.PEGRatio), cell(r.PriceToBook), cell(r.PriceToSales),
		cell(r.EVToRevenue), cell(r.EVToEBITDA),
		cell(r.RevenueGrowth), cell(r.ProfitMargin), cell(r.ROE), cell(r.DebtToEquity), cell(r.CurrentRatio),
	}
}

// cell leaves unknown values blank.
func cell(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func (e *ExcelExporter) ExportComps(w io.Writer, rep *models.CompsReport) error {
	f := excelize.NewFile()
	defer f.Close()

	rows := make([][]interface{}, 0, len(rep.Peers)+1)
	rows = append(rows, companyHeader)
	for _, p := range rep.Peers {
		rows = append(rows, companyRow(p))
	}
	if err := writeSheet(f, SheetCompanies, rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"multiple", "mean", "median", "min", "max", "std", "count"}}
	for _, m := range models.AllMultiples {
		st, ok := rep.Stats[m]
		if !ok {
			continue
		}
		rows = append(rows, []interface{}{string(m), cell(st.Mean), cell(st.Median), cell(st.Min), cell(st.Max), cell(st.Std), st.Count})
	}
	if err := writeSheet(f, SheetStats, rows); err != nil {
		return err
	}

	if err := writeSheet(f, SheetTarget, [][]interface{}{companyHeader, companyRow(rep.Target)}); err != nil {
		return err
	}

	rows = [][]interface{}{{"method", "basis", "stat", "peer_multiple", "implied", "current", "upside_pct"}}
	for _, label := range []string{models.RulePE, models.RulePB, models.RuleEVEBITDA} {
		v, ok := rep.Valuations[label]
		if !ok {
			continue
		}
		rows = append(rows, []interface{}{label, v.Basis, string(rep.Stat), v.PeerMultiple, v.Implied, cell(v.Current), cell(v.UpsidePct())})
	}
	if err := writeSheet(f, SheetImplied, rows); err != nil {
		return err
	}

	return finish(f, w)
}

func (e *ExcelExporter) ExportDCF(w io.Writer, rep *models.DCFReport) error {
	f := excelize.NewFile()
	defer f.Close()

	res := rep.Result
	summary := [][]interface{}{
		{"field", "value"},
		{"ticker", rep.Ticker},
		{"wacc", res.WACC},
		{"terminal_growth", res.TerminalGrowth},
		{"horizon", res.Horizon},
		{"base_fcf", res.BaseFCF},
		{"growth_rate", res.GrowthRate},
		{"terminal_value", res.TerminalValue},
		{"pv_terminal_value", res.PVTerminal},
		{"enterprise_value", res.EnterpriseVal},
		{"cash", res.Cash},
		{"debt", res.Debt},
		{"equity_value", res.EquityValue},
		{"shares_outstanding", res.Shares},
		{"intrinsic_value_per_share", cell(res.IntrinsicValue)},
		{"current_price", res.CurrentPrice},
		{"upside_pct", cell(res.UpsidePct)},
	}
	if err := writeSheet(f, SheetDCF, summary); err != nil {
		return err
	}

	rows := [][]interface{}{{"year", "fcf", "discount_factor", "pv"}}
	for i, v := range res.Projected {
		var pv, factor float64
		if i < len(res.PVProjected) {
			pv = res.PVProjected[i]
		}
		if v != 0 {
			factor = pv / v
		}
		rows = append(rows, []interface{}{i + 1, v, factor, pv})
	}
	rows = append(rows, []interface{}{"terminal", res.TerminalValue, nil, res.PVTerminal})
	if err := writeSheet(f, SheetProject, rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"period_end", "fcf"}}
	for _, p := range rep.History {
		rows = append(rows, []interface{}{p.PeriodEnd.Format("2006-01-02"), p.Value})
	}
	if err := writeSheet(f, SheetHistory, rows); err != nil {
		return err
	}

	return finish(f, w)
}

func writeSheet(f *excelize.File, name string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("excel: new sheet %s: %w", name, err)
	}
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("excel: %w", err)
		}
		r := row
		if err := f.SetSheetRow(name, addr, &r); err != nil {
			return fmt.Errorf("excel: write %s row %d: %w", name, i+1, err)
		}
	}
	return nil
}

func finish(f *excelize.File, w io.Writer) error {
	// drop the default sheet and open on the first real one
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("excel: %w", err)
	}
	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("excel: write workbook: %w", err)
	}
	return nil
}
