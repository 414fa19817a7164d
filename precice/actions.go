package precice

import (
	"github.com/meshcouple/coupler/couplingcontext"
	"github.com/meshcouple/coupler/cplscheme"
)

// RequiresInitialData reports whether this participant must write data
// before calling initialize(), because some exchange it sends is marked
// initialize="true" in the coupling-scheme configuration.
func (si *SolverInterface) RequiresInitialData() bool {
	if si.scheme == nil {
		return false
	}
	si.scheme.RequiresAction(cplscheme.ActionInitializeData)
	return si.scheme.SendsInitializedData()
}

// RequiresWritingCheckpoint reports (and fulfills) whether the scheme is
// asking this participant to snapshot its solver state before the next
// sub-iteration of an implicit window.
func (si *SolverInterface) RequiresWritingCheckpoint() bool {
	if si.scheme == nil {
		return false
	}
	return si.scheme.RequiresAction(cplscheme.ActionWriteCheckpoint)
}

// RequiresReadingCheckpoint reports (and fulfills) whether the scheme is
// asking this participant to roll back to its last snapshot, because the
// previous sub-iteration did not converge.
func (si *SolverInterface) RequiresReadingCheckpoint() bool {
	if si.scheme == nil {
		return false
	}
	return si.scheme.RequiresAction(cplscheme.ActionReadCheckpoint)
}

// RequiresGradientDataFor reports whether dataName on meshName was
// configured to carry gradients, mirroring the construction-time decision
// in requiresGradientDataFor so solvers can query it without re-deriving
// it from the configuration themselves.
func (si *SolverInterface) RequiresGradientDataFor(meshName, dataName string) bool {
	d, err := si.resolveData(meshName, dataName)
	if err != nil {
		return false
	}
	return d.HasGradient
}

// RequiresMeshConnectivityFor reports whether meshName was configured with
// full connectivity (edges/triangles/etc.), as opposed to vertices alone.
func (si *SolverInterface) RequiresMeshConnectivityFor(meshName string) bool {
	entry, ok := si.meshes[meshName]
	if !ok {
		return false
	}
	return entry.ctx.Requirement == couplingcontext.RequirementFull
}
