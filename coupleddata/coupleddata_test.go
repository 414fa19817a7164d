package coupleddata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/meshdata"
)

func newScalarData(t *testing.T, n int, initial []float64) *meshdata.Data {
	t.Helper()
	d := meshdata.New(0, "Forces", 1, false, 2)
	d.AllocateValues(n)
	require.NoError(t, d.SetValues(initial))
	return d
}

func TestRejectsExtrapolationOrderAboveOne(t *testing.T) {
	d := newScalarData(t, 1, []float64{0})
	_, err := New(d, false, 2)
	assert.Error(t, err)
}

func TestStoreIterationAndPreviousIteration(t *testing.T) {
	d := newScalarData(t, 1, []float64{1})
	cd, err := New(d, false, 0)
	require.NoError(t, err)
	assert.False(t, cd.HasPreviousIteration())

	cd.StoreIteration()
	assert.True(t, cd.HasPreviousIteration())
	assert.Equal(t, []float64{1}, cd.PreviousIteration())

	require.NoError(t, d.SetValues([]float64{2}))
	assert.Equal(t, []float64{1}, cd.PreviousIteration())
}

func TestMoveToNextWindowRecordsLastConvergedAndResets(t *testing.T) {
	d := newScalarData(t, 1, []float64{5})
	cd, err := New(d, false, 0)
	require.NoError(t, err)
	cd.StoreIteration()
	cd.MoveToNextWindow()
	assert.Equal(t, []float64{5}, cd.LastConverged())
	assert.False(t, cd.HasPreviousIteration())
}

func TestOrder0ExtrapolationCarriesLastValueForward(t *testing.T) {
	d := newScalarData(t, 1, []float64{3})
	cd, err := New(d, false, 0)
	require.NoError(t, err)
	cd.StoreExtrapolationData()

	require.NoError(t, d.SetValues([]float64{0}))
	require.NoError(t, cd.ExtrapolatePredictor())
	assert.Equal(t, []float64{3}, d.Values())
}

func TestOrder1ExtrapolationIsLinear(t *testing.T) {
	d := newScalarData(t, 1, []float64{2})
	cd, err := New(d, false, 1)
	require.NoError(t, err)
	cd.StoreExtrapolationData() // history: [2]

	require.NoError(t, d.SetValues([]float64{4}))
	cd.StoreExtrapolationData() // history: [4, 2]

	require.NoError(t, d.SetValues([]float64{0}))
	require.NoError(t, cd.ExtrapolatePredictor())
	assert.Equal(t, []float64{6}, d.Values()) // 2*4 - 2 = 6
}

func TestHistoryTruncatesToOrderPlusOne(t *testing.T) {
	d := newScalarData(t, 1, []float64{1})
	cd, err := New(d, false, 1)
	require.NoError(t, err)
	cd.StoreExtrapolationData()
	require.NoError(t, d.SetValues([]float64{2}))
	cd.StoreExtrapolationData()
	require.NoError(t, d.SetValues([]float64{3}))
	cd.StoreExtrapolationData()
	assert.Len(t, cd.history, 2)
	assert.Equal(t, []float64{3}, cd.history[0])
	assert.Equal(t, []float64{2}, cd.history[1])
}
