// Package waveform implements the per-read-data time-series buffer used
// to sample interpolated values at fractional positions inside the
// current time window.
package waveform

import "github.com/meshcouple/coupler/couplingerrors"

// Waveform stores up to Order+1 most-recent window-boundary snapshots of a
// read-data buffer and interpolates between them. Samples are kept at unit
// spacing with node i at relative time 1-i: node 0 (t=1) is always the
// current, most-recently stored value; node Order is the oldest retained
// sample.
type Waveform struct {
	Order int
	Size  int

	samples [][]float64
}

// New creates a Waveform of the given interpolation order (keeping Order+1
// samples) for a buffer of length size.
func New(order, size int) *Waveform {
	samples := make([][]float64, order+1)
	for i := range samples {
		samples[i] = make([]float64, size)
	}
	return &Waveform{Order: order, Size: size, samples: samples}
}

// Initialize seeds every retained slot with initialValues so that samples
// taken before the first store() are well-defined.
func (w *Waveform) Initialize(initialValues []float64) error {
	if len(initialValues) != w.Size {
		return couplingerrors.New(couplingerrors.UserError,
			"waveform: expected %d initial values, got %d", w.Size, len(initialValues))
	}
	for i := range w.samples {
		copy(w.samples[i], initialValues)
	}
	return nil
}

// Store overwrites the current-window sample (node 0, t=1) with values.
func (w *Waveform) Store(values []float64) error {
	if len(values) != w.Size {
		return couplingerrors.New(couplingerrors.UserError,
			"waveform: expected %d values, got %d", w.Size, len(values))
	}
	copy(w.samples[0], values)
	return nil
}

// MoveToNextWindow rotates the samples, dropping the oldest: node 0's value
// becomes node 1, node 1 becomes node 2, and so on. Node 0 itself is left
// holding the just-completed window's value until the next Store call
// overwrites it, which keeps early samples of the new window well-defined.
func (w *Waveform) MoveToNextWindow() {
	for i := w.Order; i > 0; i-- {
		copy(w.samples[i], w.samples[i-1])
	}
}

// SampleAt returns the Lagrange interpolation of the stored samples at
// normalized time t. t=1 always returns the most recent sample exactly; t=0
// returns the sample at the start of the current window (node 1, the
// previous window's end value) whenever Order >= 1.
func (w *Waveform) SampleAt(t float64) []float64 {
	n := w.Order + 1
	nodes := make([]float64, n)
	for i := 0; i < n; i++ {
		nodes[i] = 1 - float64(i)
	}

	out := make([]float64, w.Size)
	for i := 0; i < n; i++ {
		basis := 1.0
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			basis *= (t - nodes[j]) / (nodes[i] - nodes[j])
		}
		if basis == 0 {
			continue
		}
		for k := 0; k < w.Size; k++ {
			out[k] += basis * w.samples[i][k]
		}
	}
	return out
}
