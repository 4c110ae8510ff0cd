package dcf

import (
	"fmt"
	"math"

	"FinValue/internal/domain/models"
)

// Engine runs a single-stage DCF with a Gordon growth terminal value.
type Engine struct {
	projector *Projector
}

func NewEngine(p *Projector) *Engine {
	if p == nil {
		p = NewProjector()
	}
	return &Engine{projector: p}
}

func (e *Engine) Projector() *Projector { return e.projector }

// TerminalValue is final*(1+g)/(r-g).
func TerminalValue(final, g, r float64) (float64, error) {
	if r <= g {
		return 0, models.NewDomainError("terminal value", "discount rate %.4f must exceed terminal growth %.4f", r, g)
	}
	return final * (1 + g) / (r - g), nil
}

// PresentValue discounts cf received at the end of period t.
func PresentValue(cf float64, t int, r float64) (float64, error) {
	if t < 1 {
		return 0, models.NewDomainError("present value", "period must be at least 1, got %d", t)
	}
	if r <= -1 {
		return 0, models.NewDomainError("present value", "discount rate must exceed -1, got %.4f", r)
	}
	return cf / math.Pow(1+r, float64(t)), nil
}

// Valuate values a company from its free cash flow history.
func (e *Engine) Valuate(history models.FCFSeries, in models.DCFInputs) (*models.DCFResult, error) {
	latest, ok := history.Latest()
	if !ok {
		return nil, models.NewDomainError("dcf", "free cash flow history is empty")
	}
	if in.WACC <= in.TerminalGrowth {
		return nil, models.NewDomainError("dcf", "wacc %.4f must exceed terminal growth %.4f", in.WACC, in.TerminalGrowth)
	}

	g := e.projector.GrowthRate(history)
	if in.GrowthOverride != nil {
		if math.IsNaN(*in.GrowthOverride) || math.IsInf(*in.GrowthOverride, 0) {
			return nil, models.NewDomainError("dcf", "growth override must be finite")
		}
		g = e.projector.Clamp(*in.GrowthOverride)
	}

	projected, err := e.projector.Project(latest.Value, g, in.Horizon)
	if err != nil {
		return nil, fmt.Errorf("dcf: %w", err)
	}

	tv, err := TerminalValue(projected[len(projected)-1], in.TerminalGrowth, in.WACC)
	if err != nil {
		return nil, fmt.Errorf("dcf: %w", err)
	}

	pvs := make([]float64, len(projected))
	var ev float64
	for i, cf := range projected {
		pv, err := PresentValue(cf, i+1, in.WACC)
		if err != nil {
			return nil, fmt.Errorf("dcf: %w", err)
		}
		pvs[i] = pv
		ev += pv
	}
	pvTV, err := PresentValue(tv, in.Horizon, in.WACC)
	if err != nil {
		return nil, fmt.Errorf("dcf: %w", err)
	}
	ev += pvTV

	res := &models.DCFResult{
		BaseFCF:        latest.Value,
		GrowthRate:     g,
		Projected:      projected,
		PVProjected:    pvs,
		TerminalValue:  tv,
		PVTerminal:     pvTV,
		EnterpriseVal:  ev,
		Cash:           in.Cash,
		Debt:           in.Debt,
		EquityValue:    ev + in.Cash - in.Debt,
		Shares:         in.SharesOutstanding,
		CurrentPrice:   in.CurrentPrice,
		WACC:           in.WACC,
		TerminalGrowth: in.TerminalGrowth,
		Horizon:        in.Horizon,
	}

	if in.SharesOutstanding > 0 {
		perShare := res.EquityValue / in.SharesOutstanding
		res.IntrinsicValue = &perShare
		upside := 0.0
		if in.CurrentPrice > 0 {
			upside = (perShare - in.CurrentPrice) / in.CurrentPrice * 100
		}
		res.UpsidePct = &upside
	}

	return res, nil
}
