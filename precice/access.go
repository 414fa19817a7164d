package precice

import (
	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/mesh"
)

// SetMeshAccessRegion restricts a received mesh's partitioning filter to
// boundingBox, in addition to this rank's own owned interface, enabling
// direct access to the provider's vertices inside the region. It may only
// be called once per mesh, before initialize().
func (si *SolverInterface) SetMeshAccessRegion(meshName string, boundingBox []float64) error {
	if err := si.requireState(StateConstructed); err != nil {
		return err
	}
	entry, ok := si.meshes[meshName]
	if !ok {
		return couplingerrors.New(couplingerrors.UserError, "precice: mesh %q is not used by participant %q", meshName, si.ParticipantName)
	}
	if entry.ctx.AccessRegionSet {
		return couplingerrors.New(couplingerrors.UserError, "precice: setMeshAccessRegion already called for mesh %q", meshName)
	}
	box, err := boundingBoxFromFlat(entry.mesh.Dimensions, boundingBox)
	if err != nil {
		return err
	}
	entry.ctx.UnionAccessRegion(box)
	return nil
}

// boundingBoxFromFlat decodes the [min0,max0,min1,max1,(min2,max2)?]
// layout the wire protocol also uses for rank bounding boxes.
func boundingBoxFromFlat(dimensions int, flat []float64) (mesh.BoundingBox, error) {
	if len(flat) != 2*dimensions {
		return mesh.BoundingBox{}, couplingerrors.New(couplingerrors.UserError,
			"precice: bounding box must have %d entries (min then max per dimension), got %d", 2*dimensions, len(flat))
	}
	box := mesh.NewBoundingBox(dimensions)
	for d := 0; d < dimensions; d++ {
		lo, hi := flat[2*d], flat[2*d+1]
		if lo > hi {
			return mesh.BoundingBox{}, couplingerrors.New(couplingerrors.UserError,
				"precice: bounding box min %g exceeds max %g in dimension %d", lo, hi, d)
		}
		box.Min[d], box.Max[d] = lo, hi
	}
	return box, nil
}

// GetMeshVerticesAndIDs returns every vertex id and flat coordinate this
// participant currently holds for meshName, after partitioning has run.
func (si *SolverInterface) GetMeshVerticesAndIDs(meshName string) ([]mesh.ID, []float64, error) {
	entry, ok := si.meshes[meshName]
	if !ok {
		return nil, nil, couplingerrors.New(couplingerrors.UserError, "precice: mesh %q is not used by participant %q", meshName, si.ParticipantName)
	}
	ids := make([]mesh.ID, len(entry.mesh.Vertices))
	coords := make([]float64, 0, len(entry.mesh.Vertices)*entry.mesh.Dimensions)
	for i, v := range entry.mesh.Vertices {
		ids[i] = v.ID
		coords = append(coords, v.Coords...)
	}
	return ids, coords, nil
}
