package comps

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"FinValue/internal/domain/models"
	"FinValue/pkg/util"
)

// Statistics aggregates multiples across a peer group.
type Statistics struct{}

func NewStatistics() *Statistics { return &Statistics{} }

// Compute summarises each requested multiple over the records that report it.
// Missing values never count; the order of records does not matter.
func (s *Statistics) Compute(records []models.MetricRecord, fields []models.Multiple) map[models.Multiple]models.MultipleStat {
	if len(fields) == 0 {
		fields = models.AllMultiples
	}

	out := make(map[models.Multiple]models.MultipleStat, len(fields))
	for _, f := range fields {
		values := make([]float64, 0, len(records))
		for i := range records {
			if v := records[i].Multiple(f); v != nil {
				values = append(values, *v)
			}
		}
		out[f] = summarise(f, values)
	}
	return out
}

func summarise(f models.Multiple, values []float64) models.MultipleStat {
	st := models.MultipleStat{Multiple: f, Count: len(values)}
	if len(values) == 0 {
		return st
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	st.Mean = models.Float(stat.Mean(sorted, nil))
	st.Median = models.Float(util.Median(sorted))
	st.Min = models.Float(floats.Min(sorted))
	st.Max = models.Float(floats.Max(sorted))
	if len(sorted) > 1 {
		// sample standard deviation (n-1)
		st.Std = models.Float(stat.StdDev(sorted, nil))
	}
	return st
}
