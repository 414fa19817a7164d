package constant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/acceleration"
	"github.com/meshcouple/coupler/coupleddata"
	"github.com/meshcouple/coupler/meshdata"
)

func TestRelaxesTowardPreviousIteration(t *testing.T) {
	d := meshdata.New(0, "Forces", 1, false, 2)
	d.AllocateValues(1)
	require.NoError(t, d.SetValues([]float64{0}))
	cd, err := coupleddata.New(d, false, 0)
	require.NoError(t, err)
	cd.StoreIteration() // previous iteration = 0

	require.NoError(t, d.SetValues([]float64{10}))

	a := New(0.2)
	require.NoError(t, a.PerformAcceleration(acceleration.DataMap{"Forces": cd}))
	assert.InDelta(t, 2.0, d.Values()[0], 1e-12) // 0 + 0.2*(10-0)
}

func TestNoOpWithoutPreviousIteration(t *testing.T) {
	d := meshdata.New(0, "Forces", 1, false, 2)
	d.AllocateValues(1)
	require.NoError(t, d.SetValues([]float64{7}))
	cd, err := coupleddata.New(d, false, 0)
	require.NoError(t, err)

	a := New(0.5)
	require.NoError(t, a.PerformAcceleration(acceleration.DataMap{"Forces": cd}))
	assert.Equal(t, []float64{7}, d.Values())
}
