package dcf

import (
	"sort"

	"FinValue/internal/domain/models"
	"FinValue/pkg/util"
)

// GrowthPolicy bounds the historical growth estimate.
type GrowthPolicy struct {
	Default float64
	Floor   float64
	Cap     float64
}

// DefaultGrowthPolicy is 5% with a [-10%, 25%] clamp.
func DefaultGrowthPolicy() GrowthPolicy {
	return GrowthPolicy{Default: 0.05, Floor: -0.10, Cap: 0.25}
}

// Projector estimates growth from history and extends cash flows forward.
type Projector struct {
	policy GrowthPolicy
}

type ProjectorOption func(*Projector)

func WithGrowthPolicy(p GrowthPolicy) ProjectorOption {
	return func(pr *Projector) { pr.policy = p }
}

func NewProjector(opts ...ProjectorOption) *Projector {
	p := &Projector{policy: DefaultGrowthPolicy()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Projector) Policy() GrowthPolicy { return p.policy }

// GrowthRate is the clamped median period-over-period change of history.
// Changes from a zero base are undefined and ignored.
func (p *Projector) GrowthRate(history models.FCFSeries) float64 {
	if len(history) < 2 {
		return p.policy.Default
	}

	changes := PctChanges(history.Values())
	if len(changes) == 0 {
		return p.policy.Default
	}
	sort.Float64s(changes)
	return p.Clamp(util.Median(changes))
}

// Clamp bounds g to the policy's floor and cap.
func (p *Projector) Clamp(g float64) float64 {
	if g < p.policy.Floor {
		return p.policy.Floor
	}
	if g > p.policy.Cap {
		return p.policy.Cap
	}
	return g
}

// Project grows base by g for horizon periods.
func (p *Projector) Project(base, g float64, horizon int) ([]float64, error) {
	if horizon < 1 {
		return nil, models.NewDomainError("project", "horizon must be at least 1, got %d", horizon)
	}
	out := make([]float64, horizon)
	prev := base
	for i := range out {
		prev *= 1 + g
		out[i] = prev
	}
	return out, nil
}

// PctChanges returns (x[t]-x[t-1])/x[t-1] for every t whose previous value is non-zero.
func PctChanges(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			continue
		}
		out = append(out, (values[i]-prev)/prev)
	}
	return out
}
