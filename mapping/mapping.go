// Package mapping defines the uniform interface consumed by the Data
// Context and Partition components to interpolate a field between two
// meshes. Concrete numeric kernels (nearest-neighbor, nearest-projection,
// radial basis function) are external collaborators; this
// package only fixes the contract they must satisfy, plus a minimal
// nearest-neighbor implementation (in the nearestneighbor subpackage) used
// to exercise that contract end to end.
package mapping

import "github.com/meshcouple/coupler/mesh"

// Constraint selects how a Mapping distributes values across differently
// sized meshes.
type Constraint int

const (
	// Consistent preserves values (interpolation); used for most
	// read-mapped data.
	Consistent Constraint = iota
	// Conservative preserves integrals (e.g. forces); used when summed
	// quantities must match across the interface.
	Conservative
)

// Mapping interpolates a field from one mesh to another. Implementations
// build their stencil lazily in ComputeMapping and must be safe to call Map
// multiple times with the same stencil (e.g. once per exchange) until
// Clear is called.
type Mapping interface {
	// Tag identifies the mapping kernel for logs and config echoes.
	Tag() string
	// SetMeshes binds the mapping to its source and target meshes. Meshes
	// must already be filtered/partitioned (see the partition package)
	// before ComputeMapping is called.
	SetMeshes(from, to *mesh.Mesh)
	// ComputeMapping builds the interpolation stencil. Safe to call more
	// than once; a no-op if the stencil is already built and neither mesh
	// changed.
	ComputeMapping() error
	// HasComputedMapping reports whether ComputeMapping has succeeded and
	// Clear has not been called since.
	HasComputedMapping() bool
	// Map applies the stencil: input is sized len(fromMesh.Vertices)*dims,
	// output is sized len(toMesh.Vertices)*dims.
	Map(constraint Constraint, dims int, input, output []float64) error
	// Clear releases the stencil, forcing the next ComputeMapping to
	// rebuild it.
	Clear()
}
