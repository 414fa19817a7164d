// Package coupleddata implements CouplingData:
// the exchange-layer wrapper around meshdata.Data that additionally
// tracks the last converged iterate, a bounded history for extrapolation,
// and the previous-iteration snapshot used by convergence measures.
package coupleddata

import (
	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/meshdata"
)

// CouplingData is the per-exchange wrapper around one Data field. Several
// exchanges may reference the same underlying Data; callers share one
// CouplingData instance by looking it up in the scheme's data table rather
// than constructing duplicates (first one wins).
type CouplingData struct {
	Data *meshdata.Data

	// ExtrapolationOrder is 0 (carry last converged value forward) or 1
	// (linear extrapolation from the last two converged values). Order > 1
	// is rejected at construction, matching the configuration-time rule in
	// implicit schemes.
	ExtrapolationOrder int

	// RequiresInitialization marks data that must be exchanged once during
	// Solver Interface initialize() before any window is advanced.
	RequiresInitialization bool

	previousIteration []float64
	lastConverged     []float64
	history           [][]float64 // newest-first, length <= ExtrapolationOrder+1
}

// New creates a CouplingData wrapper around data.
func New(data *meshdata.Data, requiresInitialization bool, extrapolationOrder int) (*CouplingData, error) {
	if extrapolationOrder > 1 {
		return nil, couplingerrors.New(couplingerrors.ConfigurationError,
			"data %q: extrapolation order %d not supported (only 0 or 1)", data.Name, extrapolationOrder)
	}
	return &CouplingData{
		Data:                   data,
		ExtrapolationOrder:     extrapolationOrder,
		RequiresInitialization: requiresInitialization,
	}, nil
}

// Values returns the live underlying buffer.
func (cd *CouplingData) Values() []float64 { return cd.Data.Values() }

// StoreIteration snapshots the current values as the previous-iteration
// reference used by the next convergence measurement.
func (cd *CouplingData) StoreIteration() {
	cd.previousIteration = append([]float64(nil), cd.Values()...)
}

// PreviousIteration returns the snapshot taken by the last StoreIteration
// call, or nil before the first iteration of a window.
func (cd *CouplingData) PreviousIteration() []float64 { return cd.previousIteration }

// HasPreviousIteration reports whether StoreIteration has been called since
// the last window boundary.
func (cd *CouplingData) HasPreviousIteration() bool { return cd.previousIteration != nil }

// StoreExtrapolationData pushes a copy of the current values onto the
// history ring buffer, truncated to ExtrapolationOrder+1 entries.
func (cd *CouplingData) StoreExtrapolationData() {
	snapshot := append([]float64(nil), cd.Values()...)
	cd.history = append([][]float64{snapshot}, cd.history...)
	if max := cd.ExtrapolationOrder + 1; len(cd.history) > max {
		cd.history = cd.history[:max]
	}
}

// ExtrapolatePredictor overwrites the current values with the extrapolated
// predictor for the next window, using the stored history. With fewer
// history entries than the order requires, it leaves the current values
// untouched (the first window or two have no prediction to make).
func (cd *CouplingData) ExtrapolatePredictor() error {
	switch cd.ExtrapolationOrder {
	case 0:
		if len(cd.history) >= 1 {
			return cd.Data.SetValues(cd.history[0])
		}
	case 1:
		if len(cd.history) >= 2 {
			latest, prev := cd.history[0], cd.history[1]
			next := make([]float64, len(latest))
			for i := range next {
				next[i] = 2*latest[i] - prev[i]
			}
			return cd.Data.SetValues(next)
		}
	default:
		return couplingerrors.New(couplingerrors.InternalInvariant,
			"data %q: extrapolation order %d escaped construction-time validation", cd.Data.Name, cd.ExtrapolationOrder)
	}
	return nil
}

// MoveToNextWindow records the current values as the last converged
// iterate and clears the previous-iteration snapshot so the next window
// starts its convergence measurement fresh.
func (cd *CouplingData) MoveToNextWindow() {
	cd.lastConverged = append([]float64(nil), cd.Values()...)
	cd.previousIteration = nil
}

// LastConverged returns the values recorded at the last window boundary, or
// nil if no window has completed yet.
func (cd *CouplingData) LastConverged() []float64 { return cd.lastConverged }
