package meshdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateValuesMatchesVertexCount(t *testing.T) {
	d := New(0, "Velocities", 2, false, 2)
	d.AllocateValues(3)
	assert.Equal(t, 6, d.Size())
	assert.Equal(t, 3, d.VertexCount())
}

func TestAllocateValuesPreservesExistingContent(t *testing.T) {
	d := New(0, "Velocities", 1, false, 2)
	d.AllocateValues(2)
	require.NoError(t, d.SetValues([]float64{1, 2}))
	d.AllocateValues(4)
	assert.Equal(t, []float64{1, 2, 0, 0}, d.Values())
}

func TestSetValueAndValueRoundtrip(t *testing.T) {
	d := New(0, "Forces", 2, false, 2)
	d.AllocateValues(2)
	require.NoError(t, d.SetValue(1, []float64{3, 4}))
	got, err := d.Value(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, got)
}

func TestSetValueRejectsDimensionMismatch(t *testing.T) {
	d := New(0, "Forces", 2, false, 2)
	d.AllocateValues(1)
	err := d.SetValue(0, []float64{1})
	assert.Error(t, err)
}

func TestGradientRequiresFlag(t *testing.T) {
	d := New(0, "Forces", 2, false, 2)
	d.AllocateValues(1)
	err := d.SetGradient(0, [][]float64{{1, 2}, {3, 4}})
	assert.Error(t, err)
}

func TestGradientRoundtrip(t *testing.T) {
	d := New(0, "Forces", 2, true, 2)
	d.AllocateValues(1)
	require.NoError(t, d.SetGradient(0, [][]float64{{1, 2}, {3, 4}}))
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, d.Gradient())
}

func TestGlobalDataSetValues(t *testing.T) {
	g := NewGlobalData(0, "Energy", 1)
	require.NoError(t, g.SetValues([]float64{42}))
	assert.Equal(t, []float64{42}, g.Values())
	assert.Error(t, g.SetValues([]float64{1, 2}))
}
