// Package couplingcontext implements the per-participant configuration
// records: Participant, MeshContext,
// DataContext, and MappingContext.
package couplingcontext

import (
	"github.com/meshcouple/coupler/mesh"
)

// Direction is whether a participant provides a mesh or receives it from a
// named peer.
type Direction int

const (
	Provide Direction = iota
	ReceiveFrom
)

// Requirement orders the connectivity a receiver needs from a provided
// mesh: VERTEX < FULL.
type Requirement int

const (
	RequirementVertex Requirement = iota
	RequirementFull
)

// Max returns the stricter (greater) of two requirements.
func (r Requirement) Max(other Requirement) Requirement {
	if other > r {
		return other
	}
	return r
}

// MeshContext is the per-participant, per-mesh record:
// the mesh, its direction, its connectivity requirement, a
// safety factor for partition filtering, an optional access-region
// bounding box, and the mapping contexts attached in each direction.
type MeshContext struct {
	Mesh *mesh.Mesh

	Direction   Direction
	FromPeer    string // set when Direction == ReceiveFrom
	Requirement Requirement

	SafetyFactor float64

	// AccessRegion is set by setMeshAccessRegion and unioned on each call;
	// nil means "no explicit region", i.e. the full owned interface.
	AccessRegion *mesh.BoundingBox
	// AccessRegionSet tracks whether setMeshAccessRegion has been called,
	// since the Solver Interface only permits calling it once per mesh.
	AccessRegionSet bool

	FromMappings []*MappingContext
	ToMappings   []*MappingContext
}

// NewProvidedMeshContext creates a MeshContext for a mesh this participant
// provides.
func NewProvidedMeshContext(m *mesh.Mesh) *MeshContext {
	return &MeshContext{Mesh: m, Direction: Provide, SafetyFactor: 0.5}
}

// NewReceivedMeshContext creates a MeshContext for a mesh this participant
// receives from fromPeer.
func NewReceivedMeshContext(m *mesh.Mesh, fromPeer string) *MeshContext {
	return &MeshContext{Mesh: m, Direction: ReceiveFrom, FromPeer: fromPeer, SafetyFactor: 0.5}
}

// UnionAccessRegion unions bbox into the access region, creating it on the
// first call.
func (c *MeshContext) UnionAccessRegion(bbox mesh.BoundingBox) {
	if c.AccessRegion == nil {
		cp := bbox
		cp.Min = append([]float64(nil), bbox.Min...)
		cp.Max = append([]float64(nil), bbox.Max...)
		c.AccessRegion = &cp
	} else {
		c.AccessRegion.ExpandBox(bbox)
	}
	c.AccessRegionSet = true
}
