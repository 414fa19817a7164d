// Package constant implements constant-relaxation acceleration: the
// simplest fixed-point accelerator, with no cross-iteration memory beyond
// the single relaxation factor.
package constant

import "github.com/meshcouple/coupler/acceleration"

// Acceleration applies xNew = xOld + factor*(xTilde - xOld) to every data
// field, where xOld is the previous iterate and xTilde is the freshly
// computed value.
type Acceleration struct {
	Factor float64
}

// New creates a constant-relaxation accelerator with the given relaxation
// factor, typically in (0, 1].
func New(factor float64) *Acceleration {
	return &Acceleration{Factor: factor}
}

var _ acceleration.Acceleration = (*Acceleration)(nil)

func (a *Acceleration) Initialize(data acceleration.DataMap) error { return nil }

func (a *Acceleration) PerformAcceleration(data acceleration.DataMap) error {
	for _, cd := range data {
		prev := cd.PreviousIteration()
		if prev == nil {
			continue
		}
		values := cd.Values()
		for i := range values {
			values[i] = prev[i] + a.Factor*(values[i]-prev[i])
		}
	}
	return nil
}

func (a *Acceleration) IterationsConverged(data acceleration.DataMap) error { return nil }

func (a *Acceleration) GetLSSystemCols() int   { return 0 }
func (a *Acceleration) GetDeletedColumns() int { return 0 }
func (a *Acceleration) GetDroppedColumns() int { return 0 }
