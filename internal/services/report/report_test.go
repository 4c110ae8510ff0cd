package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"FinValue/internal/domain/models"
)

func sampleComps() *models.CompsReport {
	return &models.CompsReport{
		ID: "c1",
		Target: models.MetricRecord{
			Ticker: "TGT", Name: "Target Inc", Sector: "Technology", Industry: "Software",
			Price: models.Float(50), MarketCap: models.Float(2.5e9), PERatio: models.Float(20),
			EnterpriseValue: models.Float(3e9), EVToEBITDA: models.Float(10),
		},
		Peers: []models.MetricRecord{
			{Ticker: "AAA", Name: "Alpha", PERatio: models.Float(25)},
			{Ticker: "BBB", Name: "Beta"},
		},
		Stats: map[models.Multiple]models.MultipleStat{
			models.PE:         {Multiple: models.PE, Mean: models.Float(25), Median: models.Float(25), Min: models.Float(25), Max: models.Float(25), Count: 1},
			models.EVToEBITDA: {Multiple: models.EVToEBITDA, Mean: models.Float(12), Median: models.Float(12), Min: models.Float(12), Max: models.Float(12), Count: 1},
			models.PEG:        {Multiple: models.PEG},
		},
		Stat: models.StatMedian,
		Valuations: map[string]models.ImpliedValuation{
			models.RulePE:       {Label: models.RulePE, Basis: models.BasisPrice, Implied: 62.5, PeerMultiple: 25, Current: models.Float(50)},
			models.RuleEVEBITDA: {Label: models.RuleEVEBITDA, Basis: models.BasisEnterVal, Implied: 3.6e9, PeerMultiple: 12, Current: models.Float(3e9)},
		},
		Warnings:    []models.PeerWarning{{Ticker: "ZZZ", Message: "not found"}},
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func sampleDCF() *models.DCFReport {
	return &models.DCFReport{
		ID:      "d1",
		Ticker:  "TGT",
		History: models.SeriesFromValues(2025, 90.9, 100),
		Result: models.DCFResult{
			BaseFCF: 100, GrowthRate: 0.10, Projected: []float64{110, 121}, PVProjected: []float64{100, 100},
			TerminalValue: 1653.67, PVTerminal: 1366.67, EnterpriseVal: 1566.67, Cash: 50, Debt: 20,
			EquityValue: 1596.67, Shares: 100, IntrinsicValue: models.Float(15.9667), CurrentPrice: 10,
			UpsidePct: models.Float(59.667), WACC: 0.10, TerminalGrowth: 0.025, Horizon: 2,
		},
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRenderComps(t *testing.T) {
	out, err := NewTextRenderer().String(sampleComps())
	require.NoError(t, err)

	assert.Contains(t, out, "COMPARABLE COMPANY ANALYSIS: TGT")
	assert.Contains(t, out, "Target Inc (TGT)")
	assert.Contains(t, out, "Market Cap: $2.50B")
	assert.Contains(t, out, "2 comparable companies")
	assert.Contains(t, out, "! ZZZ: not found")
	assert.Contains(t, out, "P/E: 25.00x (n=1)")
	assert.NotContains(t, out, "PEG:")
	assert.Contains(t, out, "PE: $62.50 (+25.0% vs current)")
	assert.Contains(t, out, "EV/EBITDA: $3.60B EV (+20.0% vs current)")
	assert.Contains(t, out, "Generated: 2026-01-02 03:04:05")
}

func TestRenderDCF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextRenderer().RenderDCF(&buf, sampleDCF()))
	out := buf.String()

	assert.Contains(t, out, "DCF VALUATION REPORT: TGT")
	assert.Contains(t, out, "WACC (Discount Rate): 10.00%")
	assert.Contains(t, out, "Terminal Growth Rate: 2.50%")
	assert.Contains(t, out, "Year 2: $121")
	assert.Contains(t, out, "Enterprise Value: $1,567")
	assert.Contains(t, out, "Intrinsic Value per Share: $15.97")
	assert.Contains(t, out, "Upside/(Downside): 59.67%")
}

func TestRenderDCFUnknownPerShare(t *testing.T) {
	rep := sampleDCF()
	rep.Result.IntrinsicValue = nil
	rep.Result.UpsidePct = nil

	out, err := NewTextRenderer().String(rep)
	require.NoError(t, err)
	assert.Contains(t, out, "Intrinsic Value per Share: N/A")
	assert.Contains(t, out, "Upside/(Downside): N/A")
}

func TestStringRejectsUnknownType(t *testing.T) {
	_, err := NewTextRenderer().String(42)
	require.Error(t, err)
}

func TestExportComps(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter().ExportComps(&buf, sampleComps()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetCompanies, SheetStats, SheetTarget, SheetImplied}, f.GetSheetList())

	rows, err := f.GetRows(SheetCompanies)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ticker", rows[0][0])
	assert.Equal(t, "AAA", rows[1][0])

	v, err := f.GetCellValue(SheetImplied, "E2")
	require.NoError(t, err)
	assert.Equal(t, "62.5", v)

	stats, err := f.GetRows(SheetStats)
	require.NoError(t, err)
	assert.Len(t, stats, 4)
}

func TestExportDCF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter().ExportDCF(&buf, sampleDCF()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetDCF, SheetProject, SheetHistory}, f.GetSheetList())

	rows, err := f.GetRows(SheetProject)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "terminal", rows[3][0])

	ticker, err := f.GetCellValue(SheetDCF, "B2")
	require.NoError(t, err)
	assert.Equal(t, "TGT", ticker)

	hist, err := f.GetRows(SheetHistory)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hist[2][0], "2025-12-31"))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "EV/EBITDA", Label(models.EVToEBITDA))
	assert.Equal(t, "custom", Label(models.Multiple("custom")))
}
