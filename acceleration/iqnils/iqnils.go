// Package iqnils implements the IQN-ILS (interface quasi-Newton, inverse
// least squares) accelerator: a multi-vector quasi-Newton update that
// builds a least-squares model from the last few iterations' residual and
// solution differences.
package iqnils

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/meshcouple/coupler/acceleration"
	"github.com/meshcouple/coupler/couplingerrors"
)

// Acceleration is the IQN-ILS accelerator. The first iteration of a fresh
// run (no history yet) falls back to constant relaxation with
// InitialRelaxation, exactly as the reference algorithm does before a
// least-squares system can be built.
type Acceleration struct {
	InitialRelaxation float64
	MaxColumns        int // reuse horizon; 0 means unbounded

	prevResidual []float64
	prevXTilde   []float64
	// columns[i] is one retained (dr, dx) pair, newest last.
	columns []column

	deletedColumns int
	droppedColumns int
}

type column struct {
	dr, dx []float64
}

// New creates an IQN-ILS accelerator.
func New(initialRelaxation float64, maxColumns int) *Acceleration {
	return &Acceleration{InitialRelaxation: initialRelaxation, MaxColumns: maxColumns}
}

var _ acceleration.Acceleration = (*Acceleration)(nil)

func (a *Acceleration) Initialize(data acceleration.DataMap) error {
	a.prevResidual = nil
	a.prevXTilde = nil
	a.columns = nil
	a.deletedColumns = 0
	a.droppedColumns = 0
	return nil
}

func sortedNames(data acceleration.DataMap) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot returns the current values (xTilde) and the residual against the
// previous iterate, concatenated across all fields in name order.
func snapshot(data acceleration.DataMap, names []string) (xTilde, residual []float64) {
	for _, name := range names {
		cd := data[name]
		values := cd.Values()
		prev := cd.PreviousIteration()
		if prev == nil {
			prev = make([]float64, len(values))
		}
		for i, v := range values {
			xTilde = append(xTilde, v)
			residual = append(residual, v-prev[i])
		}
	}
	return xTilde, residual
}

func writeBack(data acceleration.DataMap, names []string, xNew []float64) {
	offset := 0
	for _, name := range names {
		cd := data[name]
		values := cd.Values()
		copy(values, xNew[offset:offset+len(values)])
		offset += len(values)
	}
}

func (a *Acceleration) PerformAcceleration(data acceleration.DataMap) error {
	names := sortedNames(data)
	xTilde, residual := snapshot(data, names)

	if a.prevResidual == nil {
		xNew := make([]float64, len(xTilde))
		for i := range xTilde {
			prevI := xTilde[i] - residual[i]
			xNew[i] = prevI + a.InitialRelaxation*residual[i]
		}
		writeBack(data, names, xNew)
		a.prevResidual = append([]float64(nil), residual...)
		a.prevXTilde = append([]float64(nil), xTilde...)
		return nil
	}

	dr := make([]float64, len(residual))
	dx := make([]float64, len(xTilde))
	for i := range residual {
		dr[i] = residual[i] - a.prevResidual[i]
		dx[i] = xTilde[i] - a.prevXTilde[i]
	}
	a.columns = append(a.columns, column{dr: dr, dx: dx})
	if a.MaxColumns > 0 && len(a.columns) > a.MaxColumns {
		drop := len(a.columns) - a.MaxColumns
		a.columns = a.columns[drop:]
		a.droppedColumns += drop
	}

	xNew, err := a.solve(xTilde, residual)
	if err != nil {
		// A singular least-squares system costs this iteration's newest
		// column and falls back to the residual itself (equivalent to
		// omega=1 constant relaxation for this step).
		a.deletedColumns++
		a.columns = a.columns[:len(a.columns)-1]
		xNew = xTilde
	}

	writeBack(data, names, xNew)
	a.prevResidual = append([]float64(nil), residual...)
	a.prevXTilde = append([]float64(nil), xTilde...)
	return nil
}

// solve builds V (columns of residual differences) and W (columns of
// solution differences) and computes xNew = xTilde + W * alpha where alpha
// minimizes ||V*alpha + residual||_2.
func (a *Acceleration) solve(xTilde, residual []float64) ([]float64, error) {
	n := len(residual)
	k := len(a.columns)
	if k == 0 {
		return xTilde, nil
	}

	vData := make([]float64, n*k)
	wData := make([]float64, n*k)
	for col, c := range a.columns {
		for row := 0; row < n; row++ {
			vData[row*k+col] = c.dr[row]
			wData[row*k+col] = c.dx[row]
		}
	}
	V := mat.NewDense(n, k, vData)
	W := mat.NewDense(n, k, wData)

	negResidual := mat.NewVecDense(n, nil)
	for i, r := range residual {
		negResidual.SetVec(i, -r)
	}

	var alpha mat.VecDense
	if err := alpha.SolveVec(V, negResidual); err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.InternalInvariant, err, "iqnils: least-squares system is singular")
	}

	correction := mat.NewVecDense(n, nil)
	correction.MulVec(W, &alpha)

	xNew := make([]float64, n)
	for i := range xNew {
		xNew[i] = xTilde[i] + correction.AtVec(i)
	}
	return xNew, nil
}

func (a *Acceleration) IterationsConverged(data acceleration.DataMap) error {
	a.prevResidual = nil
	a.prevXTilde = nil
	return nil
}

func (a *Acceleration) GetLSSystemCols() int   { return len(a.columns) }
func (a *Acceleration) GetDeletedColumns() int { return a.deletedColumns }
func (a *Acceleration) GetDroppedColumns() int { return a.droppedColumns }
