// Package acceleration defines the fixed-point acceleration interface
// that plugs into an implicit
// coupling scheme. Concrete accelerators (constant, aitken, iqnils)
// implement Acceleration; the scheme never depends on a specific kind.
package acceleration

import "github.com/meshcouple/coupler/coupleddata"

// DataMap is the set of coupling data an acceleration operates across,
// keyed by data name. A scheme builds one DataMap per accelerated group
// (all exchanged data belonging to the same implicit iteration) and passes
// the same map to every Acceleration call so in-place mutation on success
// feeds directly into the next send.
type DataMap map[string]*coupleddata.CouplingData

// Acceleration accelerates convergence of a fixed-point iteration across
// one or more coupling data fields.
type Acceleration interface {
	// Initialize prepares internal state for a fresh run (called once
	// during Solver Interface initialize()).
	Initialize(data DataMap) error

	// PerformAcceleration mutates data's buffers in place to produce the
	// next iterate, after a failed convergence check.
	PerformAcceleration(data DataMap) error

	// IterationsConverged is called once per successfully converged
	// window so accelerators with cross-window memory (e.g. IQN-ILS) can
	// update it.
	IterationsConverged(data DataMap) error

	// GetLSSystemCols reports the number of columns in the least-squares
	// system, or 0 for accelerators with none (constant, Aitken).
	GetLSSystemCols() int
	// GetDeletedColumns reports columns dropped this iteration for
	// ill-conditioning.
	GetDeletedColumns() int
	// GetDroppedColumns reports columns dropped for exceeding the
	// configured reuse horizon.
	GetDroppedColumns() int
}
