package comps

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinValue/internal/domain/models"
)

func peerPE(values ...*float64) []models.MetricRecord {
	out := make([]models.MetricRecord, len(values))
	for i, v := range values {
		out[i] = models.MetricRecord{Ticker: string(rune('A' + i)), PERatio: v}
	}
	return out
}

func TestComputeMedianOddAndEven(t *testing.T) {
	s := NewStatistics()

	odd := s.Compute(peerPE(models.Float(10), models.Float(30), models.Float(20)), []models.Multiple{models.PE})[models.PE]
	require.NotNil(t, odd.Median)
	assert.Equal(t, 20.0, *odd.Median)

	even := s.Compute(peerPE(models.Float(10), models.Float(40), models.Float(20), models.Float(30)), []models.Multiple{models.PE})[models.PE]
	require.NotNil(t, even.Median)
	assert.Equal(t, 25.0, *even.Median)
	assert.Equal(t, 4, even.Count)
}

func TestComputeSkipsMissingValues(t *testing.T) {
	st := NewStatistics().Compute(peerPE(models.Float(10), nil, models.Float(20)), []models.Multiple{models.PE})[models.PE]

	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 15.0, *st.Mean)
	assert.Equal(t, 10.0, *st.Min)
	assert.Equal(t, 20.0, *st.Max)
	require.NotNil(t, st.Std)
	assert.InDelta(t, 7.0710678, *st.Std, 1e-6)
}

func TestComputeAllMissing(t *testing.T) {
	st := NewStatistics().Compute(peerPE(nil, nil), []models.Multiple{models.PE})[models.PE]

	assert.Equal(t, 0, st.Count)
	assert.Nil(t, st.Mean)
	assert.Nil(t, st.Median)
	assert.Nil(t, st.Min)
	assert.Nil(t, st.Max)
	assert.Nil(t, st.Std)
}

func TestComputeSingleValueHasNoStd(t *testing.T) {
	st := NewStatistics().Compute(peerPE(models.Float(12)), []models.Multiple{models.PE})[models.PE]

	assert.Equal(t, 1, st.Count)
	assert.Equal(t, 12.0, *st.Median)
	assert.Nil(t, st.Std)
}

func TestComputeDefaultsToAllMultiples(t *testing.T) {
	stats := NewStatistics().Compute(nil, nil)

	assert.Len(t, stats, len(models.AllMultiples))
	for _, m := range models.AllMultiples {
		assert.Equal(t, 0, stats[m].Count, m)
	}
}

func TestComputeOrderIndependent(t *testing.T) {
	records := peerPE(models.Float(3), models.Float(9), nil, models.Float(1.5), models.Float(7), models.Float(4))
	want := NewStatistics().Compute(records, nil)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := make([]models.MetricRecord, len(records))
		copy(shuffled, records)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := NewStatistics().Compute(shuffled, nil)
		assert.Equal(t, *want[models.PE].Median, *got[models.PE].Median)
		assert.InDelta(t, *want[models.PE].Mean, *got[models.PE].Mean, 1e-12)
		assert.InDelta(t, *want[models.PE].Std, *got[models.PE].Std, 1e-12)
	}
}
