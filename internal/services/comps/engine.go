package comps

import (
	"fmt"

	"FinValue/internal/domain/models"
)

// Engine derives implied valuations for a target from peer statistics.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Value applies the P/E, P/B and EV/EBITDA rules. A rule is skipped when its
// peer statistic is unknown or the target lacks a non-zero input.
func (e *Engine) Value(target models.MetricRecord, stats map[models.Multiple]models.MultipleStat, kind models.StatKind) (map[string]models.ImpliedValuation, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("comps value: unknown statistic %q", kind)
	}

	out := make(map[string]models.ImpliedValuation, 3)

	peer := func(m models.Multiple) (float64, bool) {
		st, ok := stats[m]
		if !ok || st.Count == 0 {
			return 0, false
		}
		v := st.Value(kind)
		if v == nil {
			return 0, false
		}
		return *v, true
	}

	if m, ok := peer(models.PE); ok && models.Known(target.Price) && models.Known(target.PERatio) {
		if eps := *target.Price / *target.PERatio; eps != 0 {
			out[models.RulePE] = models.ImpliedValuation{
				Label:        models.RulePE,
				Basis:        models.BasisPrice,
				Implied:      m * eps,
				PeerMultiple: m,
				Current:      target.Price,
			}
		}
	}

	if m, ok := peer(models.PriceToBook); ok && models.Known(target.Price) && models.Known(target.PriceToBook) {
		if bvps := *target.Price / *target.PriceToBook; bvps != 0 {
			out[models.RulePB] = models.ImpliedValuation{
				Label:        models.RulePB,
				Basis:        models.BasisPrice,
				Implied:      m * bvps,
				PeerMultiple: m,
				Current:      target.Price,
			}
		}
	}

	if m, ok := peer(models.EVToEBITDA); ok && models.Known(target.EnterpriseValue) && models.Known(target.EVToEBITDA) {
		if ebitda := *target.EnterpriseValue / *target.EVToEBITDA; ebitda != 0 {
			out[models.RuleEVEBITDA] = models.ImpliedValuation{
				Label:        models.RuleEVEBITDA,
				Basis:        models.BasisEnterVal,
				Implied:      m * ebitda,
				PeerMultiple: m,
				Current:      target.EnterpriseValue,
			}
		}
	}

	return out, nil
}

// HasPeerData reports whether at least one requested multiple has a contributing peer.
func HasPeerData(stats map[models.Multiple]models.MultipleStat) bool {
	for _, st := range stats {
		if st.Count > 0 {
			return true
		}
	}
	return false
}
