package iqnils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/acceleration"
	"github.com/meshcouple/coupler/coupleddata"
	"github.com/meshcouple/coupler/meshdata"
)

func newCD(t *testing.T, initial float64) *coupleddata.CouplingData {
	t.Helper()
	d := meshdata.New(0, "x", 1, false, 1)
	d.AllocateValues(1)
	require.NoError(t, d.SetValues([]float64{initial}))
	cd, err := coupleddata.New(d, false, 0)
	require.NoError(t, err)
	return cd
}

func TestFirstIterationFallsBackToConstantRelaxation(t *testing.T) {
	cd := newCD(t, 0)
	cd.StoreIteration()
	require.NoError(t, cd.Data.SetValues([]float64{10}))

	a := New(0.1, 4)
	require.NoError(t, a.Initialize(acceleration.DataMap{"x": cd}))
	require.NoError(t, a.PerformAcceleration(acceleration.DataMap{"x": cd}))
	assert.InDelta(t, 1.0, cd.Data.Values()[0], 1e-12)
}

func TestColumnsAccumulateAndTruncate(t *testing.T) {
	cd := newCD(t, 0)
	a := New(0.5, 2)
	require.NoError(t, a.Initialize(acceleration.DataMap{"x": cd}))

	cd.StoreIteration()
	require.NoError(t, cd.Data.SetValues([]float64{1}))
	require.NoError(t, a.PerformAcceleration(acceleration.DataMap{"x": cd}))

	cd.StoreIteration()
	require.NoError(t, cd.Data.SetValues([]float64{2}))
	require.NoError(t, a.PerformAcceleration(acceleration.DataMap{"x": cd}))
	assert.Equal(t, 1, a.GetLSSystemCols())

	cd.StoreIteration()
	require.NoError(t, cd.Data.SetValues([]float64{3}))
	require.NoError(t, a.PerformAcceleration(acceleration.DataMap{"x": cd}))
	assert.LessOrEqual(t, a.GetLSSystemCols(), 2)
}

func TestIterationsConvergedResetsResidualHistory(t *testing.T) {
	cd := newCD(t, 0)
	a := New(0.5, 4)
	require.NoError(t, a.Initialize(acceleration.DataMap{"x": cd}))
	cd.StoreIteration()
	require.NoError(t, cd.Data.SetValues([]float64{1}))
	require.NoError(t, a.PerformAcceleration(acceleration.DataMap{"x": cd}))
	require.NoError(t, a.IterationsConverged(acceleration.DataMap{"x": cd}))
	assert.Nil(t, a.prevResidual)
}
