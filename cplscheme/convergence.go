package cplscheme

import "math"

// ConvergenceMeasure compares a CouplingData's previous iteration against
// its current values. Suffices measures can alone
// declare the window converged; Strict measures must converge or the
// window is a fatal error once the iteration cap is reached.
type ConvergenceMeasure struct {
	DataName string
	Limit    float64
	Suffices bool
	Strict   bool

	// Relative, when true, normalizes the residual norm by the norm of the
	// current values instead of comparing an absolute residual norm.
	Relative bool

	converged    bool
	lastResidual float64
}

// Evaluate updates m.converged by comparing previous to current and
// returns whether the measure itself just converged.
func (m *ConvergenceMeasure) Evaluate(previous, current []float64) bool {
	var residualNormSq, currentNormSq float64
	for i := range current {
		d := current[i] - previous[i]
		residualNormSq += d * d
		currentNormSq += current[i] * current[i]
	}
	residualNorm := math.Sqrt(residualNormSq)
	if m.Relative {
		denom := math.Sqrt(currentNormSq)
		if denom == 0 {
			denom = 1
		}
		residualNorm /= denom
	}
	m.lastResidual = residualNorm
	m.converged = residualNorm <= m.Limit
	return m.converged
}

// Converged reports the last Evaluate result.
func (m *ConvergenceMeasure) Converged() bool { return m.converged }

// LastResidual reports the residual norm computed by the last Evaluate
// call, for the convergence log's Res<abbrev>(dataName) column.
func (m *ConvergenceMeasure) LastResidual() float64 { return m.lastResidual }

// Abbrev names the residual kind for the convergence log column header:
// "Rel" for a relative measure, "Abs" for an absolute one.
func (m *ConvergenceMeasure) Abbrev() string {
	if m.Relative {
		return "Rel"
	}
	return "Abs"
}
