package dcf

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinValue/internal/domain/models"
)

func TestTerminalValue(t *testing.T) {
	tv, err := TerminalValue(133.1, 0.025, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 133.1*1.025/0.075, tv, 1e-9)
	assert.InDelta(t, 1819.03, tv, 0.01)
}

func TestTerminalValueRequiresWACCAboveGrowth(t *testing.T) {
	for _, r := range []float64{0.02, 0.025} {
		_, err := TerminalValue(100, 0.025, r)
		require.Error(t, err)

		var de *models.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "terminal value", de.Op)
	}
}

func TestPresentValue(t *testing.T) {
	pv, err := PresentValue(121, 2, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, pv, 1e-9)

	_, err = PresentValue(100, 0, 0.1)
	assert.True(t, models.IsDomainError(err))

	_, err = PresentValue(100, 1, -1)
	assert.True(t, models.IsDomainError(err))
}

func scenarioInputs() models.DCFInputs {
	return models.DCFInputs{
		Horizon:           2,
		WACC:              0.10,
		TerminalGrowth:    0.025,
		Cash:              50,
		Debt:              20,
		SharesOutstanding: 100,
		CurrentPrice:      10,
	}
}

func assertScenario(t *testing.T, res *models.DCFResult) {
	t.Helper()
	assert.InDeltaSlice(t, []float64{110, 121}, res.Projected, 1e-6)
	assert.InDeltaSlice(t, []float64{100, 100}, res.PVProjected, 1e-6)
	assert.InDelta(t, 1653.67, res.TerminalValue, 0.01)
	assert.InDelta(t, 1366.67, res.PVTerminal, 0.01)
	assert.InDelta(t, 1566.67, res.EnterpriseVal, 0.01)
	assert.InDelta(t, 1596.67, res.EquityValue, 0.01)
	require.NotNil(t, res.IntrinsicValue)
	assert.InDelta(t, 15.9667, *res.IntrinsicValue, 1e-4)
	require.NotNil(t, res.UpsidePct)
	assert.InDelta(t, 59.67, *res.UpsidePct, 0.01)
}

func TestValuateScenarioWithGrowthOverride(t *testing.T) {
	in := scenarioInputs()
	in.GrowthOverride = models.Float(0.10)

	res, err := NewEngine(nil).Valuate(models.SeriesFromValues(2024, 100), in)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.BaseFCF)
	assert.Equal(t, 0.10, res.GrowthRate)
	assertScenario(t, res)
}

func TestValuateScenarioFromHistory(t *testing.T) {
	res, err := NewEngine(nil).Valuate(models.SeriesFromValues(2024, 100/1.1, 100), scenarioInputs())
	require.NoError(t, err)
	assert.InDelta(t, 0.10, res.GrowthRate, 1e-9)
	assertScenario(t, res)
}

func TestValuateZeroSharesLeavesPerShareUnknown(t *testing.T) {
	in := scenarioInputs()
	in.SharesOutstanding = 0

	res, err := NewEngine(nil).Valuate(models.SeriesFromValues(2024, 100), in)
	require.NoError(t, err)
	assert.Nil(t, res.IntrinsicValue)
	assert.Nil(t, res.UpsidePct)
	assert.Greater(t, res.EquityValue, 0.0)
}

func TestValuateZeroPriceGivesZeroUpside(t *testing.T) {
	in := scenarioInputs()
	in.CurrentPrice = 0

	res, err := NewEngine(nil).Valuate(models.SeriesFromValues(2024, 100), in)
	require.NoError(t, err)
	require.NotNil(t, res.UpsidePct)
	assert.Equal(t, 0.0, *res.UpsidePct)
}

func TestValuateNegativeBaseFlowsThrough(t *testing.T) {
	res, err := NewEngine(nil).Valuate(models.SeriesFromValues(2024, -100), scenarioInputs())
	require.NoError(t, err)
	assert.Less(t, res.EnterpriseVal, 0.0)
}

func TestValuateErrors(t *testing.T) {
	_, err := NewEngine(nil).Valuate(nil, scenarioInputs())
	assert.True(t, models.IsDomainError(err))

	in := scenarioInputs()
	in.WACC = 0.02
	_, err = NewEngine(nil).Valuate(models.SeriesFromValues(2024, 100), in)
	assert.True(t, models.IsDomainError(err))

	in = scenarioInputs()
	in.Horizon = 0
	_, err = NewEngine(nil).Valuate(models.SeriesFromValues(2024, 100), in)
	assert.True(t, models.IsDomainError(err))
}

func TestValuateClampsGrowthOverride(t *testing.T) {
	in := scenarioInputs()
	in.GrowthOverride = models.Float(3.0)
	res, err := NewEngine(nil).Valuate(models.SeriesFromValues(2024, 100), in)
	require.NoError(t, err)
	assert.Equal(t, 0.25, res.GrowthRate)
	assert.InDelta(t, 125.0, res.Projected[0], 1e-9)

	in.GrowthOverride = models.Float(-0.9)
	res, err = NewEngine(nil).Valuate(models.SeriesFromValues(2024, 100), in)
	require.NoError(t, err)
	assert.Equal(t, -0.10, res.GrowthRate)
}

func TestValuateRejectsNonFiniteGrowthOverride(t *testing.T) {
	for _, g := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		in := scenarioInputs()
		in.GrowthOverride = models.Float(g)
		_, err := NewEngine(nil).Valuate(models.SeriesFromValues(2024, 100), in)
		assert.True(t, models.IsDomainError(err), "override %v", g)
	}
}

func TestTerminalShare(t *testing.T) {
	in := scenarioInputs()
	in.GrowthOverride = models.Float(0.10)
	res, err := NewEngine(nil).Valuate(models.SeriesFromValues(2024, 100), in)
	require.NoError(t, err)
	assert.InDelta(t, 1366.67/1566.67, res.TerminalShare(), 1e-4)
	assert.InDelta(t, 200.0, res.SumPVProjected(), 1e-6)
}
