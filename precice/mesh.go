package precice

import (
	"github.com/luxfi/log"

	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/mesh"
)

// ownedMesh looks up meshName and rejects a write once partitioning has
// locked it.
func (si *SolverInterface) ownedMesh(meshName string) (*mesh.Mesh, error) {
	entry, ok := si.meshes[meshName]
	if !ok {
		return nil, couplingerrors.New(couplingerrors.UserError, "precice: mesh %q is not used by participant %q", meshName, si.ParticipantName)
	}
	if entry.mesh.Locked() {
		return nil, couplingerrors.New(couplingerrors.UserError, "precice: mesh %q is locked; writes are only permitted before initialize() or after resetMesh", meshName)
	}
	return entry.mesh, nil
}

// requireMeshWritable allows mesh writes in StateConstructed (the normal
// case), or in StateInitialized for a mesh that ResetMesh has unlocked.
// A locked mesh in StateInitialized is still rejected by ownedMesh's own
// check.
func (si *SolverInterface) requireMeshWritable(meshName string) (*mesh.Mesh, error) {
	if si.state == StateSink {
		return nil, couplingerrors.Wrap(couplingerrors.UserError, couplingerrors.ErrSinkState, "precice")
	}
	if si.state != StateConstructed && si.state != StateInitialized {
		return nil, couplingerrors.New(couplingerrors.UserError,
			"precice: mesh writes require state %s or %s, interface is %s", StateConstructed, StateInitialized, si.state)
	}
	return si.ownedMesh(meshName)
}

// ResetMesh clears meshName's partition state and unlocks it for writes.
// The resulting partition is deliberately left undefined: further
// exchange on this mesh before the next Initialize has undefined
// behavior.
func (si *SolverInterface) ResetMesh(meshName string) error {
	if err := si.requireState(StateInitialized); err != nil {
		return err
	}
	entry, ok := si.meshes[meshName]
	if !ok {
		return couplingerrors.New(couplingerrors.UserError, "precice: mesh %q is not used by participant %q", meshName, si.ParticipantName)
	}
	if entry.receive != nil {
		entry.receive.partition.Reset()
	}
	entry.mesh.Unlock()
	if si.logger != nil {
		si.logger.Info("mesh reset", log.String("mesh", meshName))
	}
	return nil
}

// SetMeshVertex adds a single vertex to meshName, returning its assigned
// vertex id.
func (si *SolverInterface) SetMeshVertex(meshName string, coords []float64) (mesh.ID, error) {
	m, err := si.requireMeshWritable(meshName)
	if err != nil {
		return mesh.InvalidID, err
	}
	return m.SetVertex(coords), nil
}

// SetMeshVertices adds n vertices from a flat vertex-major coordinate
// buffer, returning their assigned ids.
func (si *SolverInterface) SetMeshVertices(meshName string, n int, coords []float64) ([]mesh.ID, error) {
	m, err := si.requireMeshWritable(meshName)
	if err != nil {
		return nil, err
	}
	return m.SetVertices(n, coords)
}

// SetMeshEdge creates (or reuses) the edge between v0 and v1 on meshName.
func (si *SolverInterface) SetMeshEdge(meshName string, v0, v1 mesh.ID) (mesh.ID, error) {
	m, err := si.requireMeshWritable(meshName)
	if err != nil {
		return mesh.InvalidID, err
	}
	return m.CreateUniqueEdge(v0, v1)
}

// SetMeshEdges creates the edge for every consecutive pair in vertexIDs.
func (si *SolverInterface) SetMeshEdges(meshName string, vertexIDs [][2]mesh.ID) ([]mesh.ID, error) {
	m, err := si.requireMeshWritable(meshName)
	if err != nil {
		return nil, err
	}
	ids := make([]mesh.ID, len(vertexIDs))
	for i, pair := range vertexIDs {
		id, err := m.CreateUniqueEdge(pair[0], pair[1])
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// SetMeshTriangle creates a triangle (and its three edges) on meshName.
func (si *SolverInterface) SetMeshTriangle(meshName string, v0, v1, v2 mesh.ID) (mesh.ID, error) {
	m, err := si.requireMeshWritable(meshName)
	if err != nil {
		return mesh.InvalidID, err
	}
	return m.CreateTriangleWithEdges(v0, v1, v2)
}

// SetMeshTriangles creates one triangle per entry of vertexIDs.
func (si *SolverInterface) SetMeshTriangles(meshName string, vertexIDs [][3]mesh.ID) ([]mesh.ID, error) {
	m, err := si.requireMeshWritable(meshName)
	if err != nil {
		return nil, err
	}
	ids := make([]mesh.ID, len(vertexIDs))
	for i, t := range vertexIDs {
		id, err := m.CreateTriangleWithEdges(t[0], t[1], t[2])
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// SetMeshQuad decomposes a convex quad into two triangles along its
// shorter diagonal, using the ConvexOracle supplied at construction. It
// fails with a ConfigurationError if no oracle was supplied: ordering a
// quad's vertices into a convex polygon is a geometry-primitive concern
// this package does not implement.
func (si *SolverInterface) SetMeshQuad(meshName string, v0, v1, v2, v3 mesh.ID) (mesh.ID, error) {
	m, err := si.requireMeshWritable(meshName)
	if err != nil {
		return mesh.InvalidID, err
	}
	if si.convexOracle == nil {
		return mesh.InvalidID, couplingerrors.New(couplingerrors.ConfigurationError,
			"precice: SetMeshQuad requires a ConvexOracle; none was supplied in Dependencies")
	}
	return m.DecomposeQuad(v0, v1, v2, v3, si.convexOracle)
}

// SetMeshQuads decomposes one quad per entry of vertexIDs.
func (si *SolverInterface) SetMeshQuads(meshName string, vertexIDs [][4]mesh.ID) ([]mesh.ID, error) {
	ids := make([]mesh.ID, len(vertexIDs))
	for i, q := range vertexIDs {
		id, err := si.SetMeshQuad(meshName, q[0], q[1], q[2], q[3])
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// SetMeshTetrahedron creates a tetrahedron on meshName.
func (si *SolverInterface) SetMeshTetrahedron(meshName string, v0, v1, v2, v3 mesh.ID) (mesh.ID, error) {
	m, err := si.requireMeshWritable(meshName)
	if err != nil {
		return mesh.InvalidID, err
	}
	return m.CreateTetrahedron(v0, v1, v2, v3)
}

// SetMeshTetrahedra creates one tetrahedron per entry of vertexIDs.
func (si *SolverInterface) SetMeshTetrahedra(meshName string, vertexIDs [][4]mesh.ID) ([]mesh.ID, error) {
	m, err := si.requireMeshWritable(meshName)
	if err != nil {
		return nil, err
	}
	ids := make([]mesh.ID, len(vertexIDs))
	for i, t := range vertexIDs {
		id, err := m.CreateTetrahedron(t[0], t[1], t[2], t[3])
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// GetMeshVertexSize reports meshName's current vertex count.
func (si *SolverInterface) GetMeshVertexSize(meshName string) (int, error) {
	entry, ok := si.meshes[meshName]
	if !ok {
		return 0, couplingerrors.New(couplingerrors.UserError, "precice: mesh %q is not used by participant %q", meshName, si.ParticipantName)
	}
	return entry.mesh.Size(), nil
}
