package models

// StatKind selects which peer aggregate drives an implied valuation.
type StatKind string

const (
	StatMean   StatKind = "mean"
	StatMedian StatKind = "median"
	StatMin    StatKind = "min"
	StatMax    StatKind = "max"
)

// IsValid returns true if k is a supported statistic.
func (k StatKind) IsValid() bool {
	switch k {
	case StatMean, StatMedian, StatMin, StatMax:
		return true
	default:
		return false
	}
}

// DefaultStatKind returns the statistic used when none is given.
func DefaultStatKind() StatKind { return StatMedian }

// NormalizeStatKind converts a raw string to a valid kind (or the default).
func NormalizeStatKind(s string) StatKind {
	k := StatKind(s)
	if k.IsValid() {
		return k
	}
	return DefaultStatKind()
}

// MultipleStat summarises one multiple across the peer group.
// All aggregates are nil when Count is zero; Std is nil when Count < 2.
type MultipleStat struct {
	Multiple Multiple `json:"multiple"`
	Mean     *float64 `json:"mean"`
	Median   *float64 `json:"median"`
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	Std      *float64 `json:"std"`
	Count    int      `json:"count"`
}

// Value returns the aggregate selected by kind.
func (s MultipleStat) Value(kind StatKind) *float64 {
	switch kind {
	case StatMean:
		return s.Mean
	case StatMedian:
		return s.Median
	case StatMin:
		return s.Min
	case StatMax:
		return s.Max
	default:
		return nil
	}
}
