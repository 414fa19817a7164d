package waveform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderZeroIsConstant(t *testing.T) {
	w := New(0, 1)
	require.NoError(t, w.Initialize([]float64{5}))
	assert.Equal(t, []float64{5}, w.SampleAt(0))
	assert.Equal(t, []float64{5}, w.SampleAt(0.5))
	assert.Equal(t, []float64{5}, w.SampleAt(1))
}

func TestSampleAtOneIsMostRecent(t *testing.T) {
	w := New(1, 1)
	require.NoError(t, w.Initialize([]float64{0}))
	require.NoError(t, w.Store([]float64{10}))
	got := w.SampleAt(1)
	assert.InDelta(t, 10, got[0], 1e-9)
}

func TestSampleAtZeroIsWindowStart(t *testing.T) {
	w := New(1, 1)
	require.NoError(t, w.Initialize([]float64{3}))
	require.NoError(t, w.Store([]float64{9}))
	// node1 (t=0) still holds the initial seed value until MoveToNextWindow.
	got := w.SampleAt(0)
	assert.InDelta(t, 3, got[0], 1e-9)
}

func TestLinearInterpolationMidpoint(t *testing.T) {
	w := New(1, 1)
	require.NoError(t, w.Initialize([]float64{0}))
	require.NoError(t, w.Store([]float64{10}))
	got := w.SampleAt(0.5)
	assert.InDelta(t, 5, got[0], 1e-9)
}

func TestMoveToNextWindowRotates(t *testing.T) {
	w := New(1, 1)
	require.NoError(t, w.Initialize([]float64{0}))
	require.NoError(t, w.Store([]float64{10}))
	w.MoveToNextWindow()
	// new window start (t=0) should now be the old current value (10)
	got := w.SampleAt(0)
	assert.InDelta(t, 10, got[0], 1e-9)
	// and the current node still reads 10 until the next Store
	got = w.SampleAt(1)
	assert.InDelta(t, 10, got[0], 1e-9)
}

func TestStoreRejectsWrongSize(t *testing.T) {
	w := New(0, 2)
	err := w.Store([]float64{1})
	assert.Error(t, err)
}
