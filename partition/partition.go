// Package partition implements the distributed mesh-exchange protocol:
// a provider scatters its mesh to a receiver, which
// filters incoming vertices against a bounding box and remaps them to dense
// local ids before mappings and data exchange begin.
package partition

import (
	"context"
	"sort"

	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/couplingcontext"
	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/mesh"
)

// SortByName returns meshNames sorted lexically, the order in which
// partitioning must process used meshes to avoid cross-deadlock when two
// participants exchange meshes in both directions.
func SortByName(meshNames []string) []string {
	out := append([]string(nil), meshNames...)
	sort.Strings(out)
	return out
}

// ProvidedPartition wraps a mesh this participant provides. Its Requirement
// tracks the maximum connectivity requirement declared by itself or any
// receiver.
type ProvidedPartition struct {
	Mesh        *mesh.Mesh
	Requirement couplingcontext.Requirement
}

// NewProvidedPartition wraps m with the participant's own declared
// requirement.
func NewProvidedPartition(m *mesh.Mesh, ownRequirement couplingcontext.Requirement) *ProvidedPartition {
	return &ProvidedPartition{Mesh: m, Requirement: ownRequirement}
}

// AddReceiverRequirement raises Requirement to the max of its current value
// and a newly declared receiver requirement.
func (p *ProvidedPartition) AddReceiverRequirement(r couplingcontext.Requirement) {
	p.Requirement = p.Requirement.Max(r)
}

// Communicate sends the full mesh's vertex coordinates over ch: a vertex
// count, then the flat vertex-major coordinate buffer (the data payload
// convention applied to the mesh itself rather than a data field).
func (p *ProvidedPartition) Communicate(ctx context.Context, ch comm.Channel) error {
	n := p.Mesh.Size()
	if err := ch.SendScalar(ctx, float64(n)); err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "partition: send vertex count for mesh %q", p.Mesh.Name)
	}
	coords := make([]float64, 0, n*p.Mesh.Dimensions)
	for _, v := range p.Mesh.Vertices {
		coords = append(coords, v.Coords...)
	}
	if err := ch.SendBuffer(ctx, comm.KindMeshData, coords); err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "partition: send vertex buffer for mesh %q", p.Mesh.Name)
	}
	return nil
}

// ReceivedPartition wraps a mesh this participant receives from a peer. It
// filters the incoming global vertex set against a rank-local bounding box
// (inflated by SafetyFactor and unioned with any access region) and remaps
// surviving vertices to dense local ids.
type ReceivedPartition struct {
	Mesh              *mesh.Mesh
	SafetyFactor      float64
	AllowDirectAccess bool

	filterBox    mesh.BoundingBox
	globalToLocal map[int]mesh.ID
}

// NewReceivedPartition creates an empty received partition around m.
func NewReceivedPartition(m *mesh.Mesh, safetyFactor float64, allowDirectAccess bool) *ReceivedPartition {
	return &ReceivedPartition{
		Mesh:              m,
		SafetyFactor:      safetyFactor,
		AllowDirectAccess: allowDirectAccess,
		globalToLocal:     make(map[int]mesh.ID),
	}
}

// SetFilterBoundingBox computes this rank's geometric filter: ownedBox
// (the union of this rank's owned interface points) inflated by
// SafetyFactor, unioned with accessRegion if the solver called
// setMeshAccessRegion. An access region that does not fully contain
// ownedBox is rejected rather than silently losing coverage.
func (p *ReceivedPartition) SetFilterBoundingBox(ownedBox mesh.BoundingBox, accessRegion *mesh.BoundingBox, accessRegionSet bool) error {
	if accessRegionSet && !ownedBox.IsEmpty() && !ownedBox.Subset(*accessRegion) {
		return couplingerrors.New(couplingerrors.UserError,
			"partition: mesh %q access region does not cover the owned bounding box", p.Mesh.Name)
	}
	box := ownedBox
	box.Min = append([]float64(nil), ownedBox.Min...)
	box.Max = append([]float64(nil), ownedBox.Max...)
	box.Inflate(p.SafetyFactor)
	if accessRegionSet {
		box.ExpandBox(*accessRegion)
	}
	p.filterBox = box
	return nil
}

// FilterBoundingBox returns the rank-local filter box computed by
// SetFilterBoundingBox.
func (p *ReceivedPartition) FilterBoundingBox() mesh.BoundingBox {
	return p.filterBox
}

// Communicate receives the provider's vertex count and coordinate buffer
// over ch, then filters and remaps in place.
func (p *ReceivedPartition) Communicate(ctx context.Context, ch comm.Channel, dimensions int) error {
	nF, err := ch.ReceiveScalar(ctx)
	if err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "partition: receive vertex count for mesh %q", p.Mesh.Name)
	}
	n := int(nF)
	coords, err := ch.ReceiveBuffer(ctx, comm.KindMeshData, n*dimensions)
	if err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "partition: receive vertex buffer for mesh %q", p.Mesh.Name)
	}
	p.filterAndRemap(n, dimensions, coords)
	return nil
}

// filterAndRemap discards global vertices outside the filter box and
// assigns dense local ids to the remainder. If the filter box is empty, the
// partition for this rank is empty and all local sizes report zero (not an
// error).
func (p *ReceivedPartition) filterAndRemap(n, dimensions int, coords []float64) {
	if p.filterBox.IsEmpty() {
		return
	}
	for g := 0; g < n; g++ {
		point := coords[g*dimensions : (g+1)*dimensions]
		if !p.filterBox.Contains(point) {
			continue
		}
		localID := p.Mesh.SetVertex(point)
		p.globalToLocal[g] = localID
	}
}

// GlobalToLocal translates a global vertex index (its position in the
// provider's original vertex-major buffer) to this rank's local mesh.ID, if
// that vertex survived filtering.
func (p *ReceivedPartition) GlobalToLocal(globalIndex int) (mesh.ID, bool) {
	id, ok := p.globalToLocal[globalIndex]
	return id, ok
}

// Reset discards the filter box and the global-to-local remap built by a
// prior Communicate, for the Solver Interface's ResetMesh operation. The
// resulting partition is left undefined until SetFilterBoundingBox/
// Communicate run again ahead of the next Initialize.
func (p *ReceivedPartition) Reset() {
	p.filterBox = mesh.BoundingBox{}
	p.globalToLocal = make(map[int]mesh.ID)
}
