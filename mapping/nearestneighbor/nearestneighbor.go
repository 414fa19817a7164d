// Package nearestneighbor is a minimal reference Mapping implementation:
// each target vertex is mapped from its closest source vertex by Euclidean
// distance. It exists to exercise the mapping.Mapping contract end to end;
// production-grade interpolation kernels (nearest-projection, RBF) are
// external collaborators.
package nearestneighbor

import (
	"math"

	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/mapping"
	"github.com/meshcouple/coupler/mesh"
)

// Mapping is a nearest-neighbor mapping.Mapping.
type Mapping struct {
	from, to *mesh.Mesh
	stencil  []int // stencil[i] = index into from.Vertices nearest to to.Vertices[i]
}

// New creates an uncomputed nearest-neighbor mapping.
func New() *Mapping { return &Mapping{} }

var _ mapping.Mapping = (*Mapping)(nil)

// Tag implements mapping.Mapping.
func (m *Mapping) Tag() string { return "nearest-neighbor" }

// SetMeshes implements mapping.Mapping.
func (m *Mapping) SetMeshes(from, to *mesh.Mesh) {
	m.from, m.to = from, to
	m.stencil = nil
}

// ComputeMapping implements mapping.Mapping.
func (m *Mapping) ComputeMapping() error {
	if m.from == nil || m.to == nil {
		return couplingerrors.New(couplingerrors.UserError, "nearest-neighbor mapping: meshes not set")
	}
	if m.stencil != nil {
		return nil
	}
	if len(m.from.Vertices) == 0 {
		return couplingerrors.New(couplingerrors.UserError, "nearest-neighbor mapping: source mesh %q is empty", m.from.Name)
	}
	stencil := make([]int, len(m.to.Vertices))
	for i, tv := range m.to.Vertices {
		best := 0
		bestDist := math.Inf(1)
		for j, fv := range m.from.Vertices {
			d := squaredDist(tv.Coords, fv.Coords)
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		stencil[i] = best
	}
	m.stencil = stencil
	return nil
}

func squaredDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// HasComputedMapping implements mapping.Mapping.
func (m *Mapping) HasComputedMapping() bool { return m.stencil != nil }

// Map implements mapping.Mapping. Consistent constraint copies the nearest
// source vertex's value; Conservative constraint additionally scales by the
// inverse of how many target vertices shared that source vertex, so that
// the sum over the target mesh equals the sum over the source mesh.
func (m *Mapping) Map(constraint mapping.Constraint, dims int, input, output []float64) error {
	if m.stencil == nil {
		return couplingerrors.New(couplingerrors.UserError, "nearest-neighbor mapping: ComputeMapping not called")
	}
	wantIn := len(m.from.Vertices) * dims
	wantOut := len(m.to.Vertices) * dims
	if len(input) != wantIn {
		return couplingerrors.New(couplingerrors.UserError,
			"nearest-neighbor mapping: expected input length %d, got %d", wantIn, len(input))
	}
	if len(output) != wantOut {
		return couplingerrors.New(couplingerrors.UserError,
			"nearest-neighbor mapping: expected output length %d, got %d", wantOut, len(output))
	}

	switch constraint {
	case mapping.Consistent:
		for i, src := range m.stencil {
			copy(output[i*dims:(i+1)*dims], input[src*dims:(src+1)*dims])
		}
	case mapping.Conservative:
		counts := make([]int, len(m.from.Vertices))
		for _, src := range m.stencil {
			counts[src]++
		}
		for i, src := range m.stencil {
			scale := 1.0 / float64(counts[src])
			for k := 0; k < dims; k++ {
				output[i*dims+k] = input[src*dims+k] * scale
			}
		}
	default:
		return couplingerrors.New(couplingerrors.UserError, "nearest-neighbor mapping: unknown constraint")
	}
	return nil
}

// Clear implements mapping.Mapping.
func (m *Mapping) Clear() { m.stencil = nil }
