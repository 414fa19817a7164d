// Package aitken implements the dynamic (Aitken delta-squared) relaxation
// accelerator: a scalar relaxation factor recomputed every iteration from
// the change in residual between the last two iterates.
package aitken

import (
	"sort"

	"github.com/meshcouple/coupler/acceleration"
)

// Acceleration is the vector Aitken accelerator (Irons-Tuck formula). The
// first iteration of every window falls back to InitialRelaxation, since
// there is no previous residual to extrapolate from.
type Acceleration struct {
	InitialRelaxation float64

	omega         float64
	prevResidual  []float64
}

// New creates an Aitken accelerator with the given first-iteration
// relaxation factor.
func New(initialRelaxation float64) *Acceleration {
	return &Acceleration{InitialRelaxation: initialRelaxation, omega: initialRelaxation}
}

var _ acceleration.Acceleration = (*Acceleration)(nil)

func (a *Acceleration) Initialize(data acceleration.DataMap) error {
	a.prevResidual = nil
	a.omega = a.InitialRelaxation
	return nil
}

// concatResidual returns xTilde - xOld across every data field, ordered by
// data name for determinism, alongside xOld in the same order.
func concatResidual(data acceleration.DataMap) (residual, xOld []float64, names []string) {
	names = make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cd := data[name]
		prev := cd.PreviousIteration()
		values := cd.Values()
		if prev == nil {
			prev = make([]float64, len(values))
		}
		for i := range values {
			residual = append(residual, values[i]-prev[i])
			xOld = append(xOld, prev[i])
		}
	}
	return residual, xOld, names
}

func (a *Acceleration) PerformAcceleration(data acceleration.DataMap) error {
	residual, xOld, names := concatResidual(data)

	if a.prevResidual != nil && len(a.prevResidual) == len(residual) {
		delta := make([]float64, len(residual))
		var numerator, denominator float64
		for i := range residual {
			delta[i] = residual[i] - a.prevResidual[i]
			numerator += a.prevResidual[i] * delta[i]
			denominator += delta[i] * delta[i]
		}
		if denominator != 0 {
			a.omega = -a.omega * numerator / denominator
		}
	} else {
		a.omega = a.InitialRelaxation
	}

	offset := 0
	for _, name := range names {
		cd := data[name]
		values := cd.Values()
		for i := range values {
			values[i] = xOld[offset+i] + a.omega*residual[offset+i]
		}
		offset += len(values)
	}

	a.prevResidual = residual
	return nil
}

func (a *Acceleration) IterationsConverged(data acceleration.DataMap) error {
	a.prevResidual = nil
	return nil
}

func (a *Acceleration) GetLSSystemCols() int   { return 0 }
func (a *Acceleration) GetDeletedColumns() int { return 0 }
func (a *Acceleration) GetDroppedColumns() int { return 0 }
