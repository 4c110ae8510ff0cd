package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"FinValue/internal/domain/models"
	"FinValue/internal/domain/service"
)

var _ service.ReportRenderer = (*TextRenderer)(nil)

var multipleLabels = map[models.Multiple]string{
	models.PE:          "P/E",
	models.ForwardPE:   "Forward P/E",
	models.PEG:         "PEG",
	models.PriceToBook: "P/B",
	models.PriceToSale: "P/S",
	models.EVToRevenue: "EV/Revenue",
	models.EVToEBITDA:  "EV/EBITDA",
}

// Label returns the display name of a multiple.
func Label(m models.Multiple) string {
	if l, ok := multipleLabels[m]; ok {
		return l
	}
	return string(m)
}

// TextRenderer writes plain-text reports with grouped thousands.
type TextRenderer struct {
	p   *message.Printer
	now func() time.Time
}

type TextOption func(*TextRenderer)

// WithLanguage selects number formatting.
func WithLanguage(tag language.Tag) TextOption {
	return func(r *TextRenderer) { r.p = message.NewPrinter(tag) }
}

func NewTextRenderer(opts ...TextOption) *TextRenderer {
	r := &TextRenderer{p: message.NewPrinter(language.English), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const rule = "============================================================"

type lineWriter struct {
	p *message.Printer
	b strings.Builder
}

func (l *lineWriter) f(format string, args ...any) {
	l.b.WriteString(l.p.Sprintf(format, args...))
	l.b.WriteByte('\n')
}

func (l *lineWriter) blank() { l.b.WriteByte('\n') }

func (r *TextRenderer) RenderComps(w io.Writer, rep *models.CompsReport) error {
	l := &lineWriter{p: r.p}
	t := rep.Target

	l.f(rule)
	l.f("COMPARABLE COMPANY ANALYSIS: %s", t.Ticker)
	l.f(rule)
	l.blank()

	l.f("TARGET COMPANY:")
	l.f("  %s (%s)", t.Name, t.Ticker)
	l.f("  Sector: %s", t.Sector)
	l.f("  Industry: %s", t.Industry)
	if t.Price != nil {
		l.f("  Current Price: $%.2f", *t.Price)
	} else {
		l.f("  Current Price: N/A")
	}
	if models.Known(t.MarketCap) {
		l.f("  Market Cap: $%.2fB", *t.MarketCap/1e9)
	} else {
		l.f("  Market Cap: N/A")
	}
	l.blank()

	l.f("COMP GROUP:")
	l.f("  %d comparable companies", len(rep.Peers))
	for _, p := range rep.Peers {
		l.f("  - %s: %s", p.Ticker, p.Name)
	}
	if len(rep.Warnings) > 0 {
		l.f("  Skipped:")
		for _, wn := range rep.Warnings {
			l.f("  ! %s: %s", wn.Ticker, wn.Message)
		}
	}
	l.blank()

	l.f("TRADING MULTIPLES (Comp Group %s):", titleCase(string(rep.Stat)))
	for _, m := range models.AllMultiples {
		st, ok := rep.Stats[m]
		if !ok {
			continue
		}
		if v := st.Value(rep.Stat); v != nil {
			l.f("  %s: %.2fx (n=%d)", Label(m), *v, st.Count)
		}
	}
	l.blank()

	l.f("IMPLIED VALUATION (using %s comps):", rep.Stat)
	if len(rep.Valuations) == 0 {
		l.f("  Could not calculate: no usable multiples")
	}
	for _, label := range []string{models.RulePE, models.RulePB, models.RuleEVEBITDA} {
		v, ok := rep.Valuations[label]
		if !ok {
			continue
		}
		upside := 0.0
		if u := v.UpsidePct(); u != nil {
			upside = *u
		}
		if v.Basis == models.BasisEnterVal {
			l.f("  %s: $%.2fB EV (%+.1f%% vs current)", label, v.Implied/1e9, upside)
		} else {
			l.f("  %s: $%.2f (%+.1f%% vs current)", label, v.Implied, upside)
		}
	}
	l.blank()

	l.f(rule)
	l.f("Generated: %s", r.stamp(rep.GeneratedAt).Format("2006-01-02 15:04:05"))
	l.f(rule)

	_, err := io.WriteString(w, l.b.String())
	return err
}

func (r *TextRenderer) RenderDCF(w io.Writer, rep *models.DCFReport) error {
	l := &lineWriter{p: r.p}
	res := rep.Result

	l.f(rule)
	l.f("DCF VALUATION REPORT: %s", rep.Ticker)
	l.f(rule)
	l.f("Date: %s", r.stamp(rep.GeneratedAt).Format("2006-01-02"))
	l.blank()

	l.f("ASSUMPTIONS")
	l.f("-----------")
	l.f("WACC (Discount Rate): %.2f%%", res.WACC*100)
	l.f("Terminal Growth Rate: %.2f%%", res.TerminalGrowth*100)
	l.f("Forecast Period: %d years", res.Horizon)
	l.blank()

	l.f("CASH FLOW ANALYSIS")
	l.f("------------------")
	l.f("Base FCF (Most Recent): $%.0f", res.BaseFCF)
	l.f("Historical Growth Rate: %.2f%%", res.GrowthRate*100)
	l.blank()
	l.f("Projected FCF:")
	for i, v := range res.Projected {
		l.f("  Year %d: $%.0f", i+1, v)
	}
	l.blank()

	l.f("VALUATION")
	l.f("---------")
	l.f("Terminal Value: $%.0f", res.TerminalValue)
	l.f("PV of Terminal Value: $%.0f", res.PVTerminal)
	l.f("Enterprise Value: $%.0f", res.EnterpriseVal)
	l.blank()

	l.f("EQUITY VALUE CALCULATION")
	l.f("------------------------")
	l.f("Enterprise Value: $%.0f", res.EnterpriseVal)
	l.f("(+) Cash: $%.0f", res.Cash)
	l.f("(-) Debt: $%.0f", res.Debt)
	l.f("= Equity Value: $%.0f", res.EquityValue)
	l.blank()

	l.f("PER SHARE VALUATION")
	l.f("-------------------")
	l.f("Shares Outstanding: %.0f", res.Shares)
	if res.IntrinsicValue != nil {
		l.f("Intrinsic Value per Share: $%.2f", *res.IntrinsicValue)
	} else {
		l.f("Intrinsic Value per Share: N/A")
	}
	l.f("Current Market Price: $%.2f", res.CurrentPrice)
	if res.UpsidePct != nil {
		l.f("Upside/(Downside): %.2f%%", *res.UpsidePct)
	} else {
		l.f("Upside/(Downside): N/A")
	}

	if len(rep.Warnings) > 0 {
		l.blank()
		l.f("NOTES")
		l.f("-----")
		for _, wn := range rep.Warnings {
			l.f("%s: %s", wn.Ticker, wn.Message)
		}
	}

	l.blank()
	l.f(rule)
	l.f("DISCLAIMER: This is for educational purposes only.")
	l.f("Not financial advice. Always do your own research.")
	l.f(rule)

	_, err := io.WriteString(w, l.b.String())
	return err
}

func (r *TextRenderer) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return r.now()
	}
	return t
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// String renders a report to a string. Unsupported values yield an error.
func (r *TextRenderer) String(rep any) (string, error) {
	var b strings.Builder
	var err error
	switch v := rep.(type) {
	case *models.CompsReport:
		err = r.RenderComps(&b, v)
	case *models.DCFReport:
		err = r.RenderDCF(&b, v)
	default:
		err = fmt.Errorf("render: unsupported report type %T", rep)
	}
	return b.String(), err
}
