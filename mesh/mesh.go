// Package mesh implements the vertex/edge/triangle/quad/tetrahedron store
// and the axis-aligned bounding box used to describe a participant's
// geometric interface.
package mesh

import (
	"fmt"

	"github.com/meshcouple/coupler/couplingerrors"
)

// ID is a stable, monotonically increasing identifier assigned when a
// primitive is created. Ids are not reused until Clear() resets the
// counters.
type ID int

// InvalidID marks the absence of an id (e.g. an edge lookup miss).
const InvalidID ID = -1

// Vertex is a 2D or 3D point with a stable id.
type Vertex struct {
	ID     ID
	Coords []float64
}

// Edge references two vertices of the same mesh.
type Edge struct {
	ID     ID
	V0, V1 ID
}

// Triangle references three vertices and (if built via CreateTriangleWithEdges)
// three edges of the same mesh.
type Triangle struct {
	ID       ID
	Vertices [3]ID
	Edges    [3]ID
}

// Quad is decomposed into two triangles along its shorter diagonal; see
// DecomposeQuad.
type Quad struct {
	ID        ID
	Vertices  [4]ID
	Triangles [2]ID
}

// Tetrahedron is stored as 4 triangles + 6 edges + the 4 owning vertices.
type Tetrahedron struct {
	ID        ID
	Vertices  [4]ID
	Triangles [4]ID
	Edges     [6]ID
}

// Mesh is the per-participant geometric interface: an ordered set of
// vertices plus optional connectivity. Every connectivity primitive
// references valid vertex ids of the same mesh; ids are stable until the
// mesh is cleared.
type Mesh struct {
	ID         int
	Name       string
	Dimensions int

	Vertices    []Vertex
	Edges       []Edge
	Triangles   []Triangle
	Quads       []Quad
	Tetrahedra  []Tetrahedron

	// locked is set once partitioning during initialize() completes; no
	// further mesh writes are permitted until ResetMesh unlocks it.
	locked bool

	edgeLookup map[[2]ID]ID
}

// New creates an empty mesh of the given dimensionality (2 or 3).
func New(id int, name string, dimensions int) *Mesh {
	return &Mesh{
		ID:         id,
		Name:       name,
		Dimensions: dimensions,
		edgeLookup: make(map[[2]ID]ID),
	}
}

// Locked reports whether the mesh has been locked by partitioning.
func (m *Mesh) Locked() bool { return m.locked }

// Lock marks the mesh as locked; subsequent writes must be rejected by the
// caller (the Solver Interface enforces this, see couplingerrors.UserError).
func (m *Mesh) Lock() { m.locked = true }

// Unlock clears the lock, used by ResetMesh.
func (m *Mesh) Unlock() { m.locked = false }

// Size returns the current vertex count.
func (m *Mesh) Size() int { return len(m.Vertices) }

// SetVertex appends a single vertex, returning its assigned id.
func (m *Mesh) SetVertex(coords []float64) ID {
	id := ID(len(m.Vertices))
	cp := append([]float64(nil), coords...)
	m.Vertices = append(m.Vertices, Vertex{ID: id, Coords: cp})
	return id
}

// SetVertices appends n vertices from a flat, vertex-major coords buffer of
// length n*Dimensions and returns their assigned ids, each of which lies in
// [oldSize, oldSize+n).
func (m *Mesh) SetVertices(n int, coords []float64) ([]ID, error) {
	if len(coords) != n*m.Dimensions {
		return nil, couplingerrors.New(couplingerrors.UserError,
			"mesh %q: expected %d coords for %d vertices of dimension %d, got %d",
			m.Name, n*m.Dimensions, n, m.Dimensions, len(coords))
	}
	ids := make([]ID, n)
	for i := 0; i < n; i++ {
		ids[i] = m.SetVertex(coords[i*m.Dimensions : (i+1)*m.Dimensions])
	}
	return ids, nil
}

func (m *Mesh) validVertex(id ID) error {
	if id < 0 || int(id) >= len(m.Vertices) {
		return couplingerrors.New(couplingerrors.UserError,
			"mesh %q: vertex id %d out of range [0,%d)", m.Name, id, len(m.Vertices))
	}
	return nil
}

func edgeKey(a, b ID) [2]ID {
	if a > b {
		a, b = b, a
	}
	return [2]ID{a, b}
}

// CreateUniqueEdge returns the edge between a and b, creating it if it does
// not already exist. Edges are deduplicated against the unordered endpoint
// pair.
func (m *Mesh) CreateUniqueEdge(a, b ID) (ID, error) {
	if err := m.validVertex(a); err != nil {
		return InvalidID, err
	}
	if err := m.validVertex(b); err != nil {
		return InvalidID, err
	}
	key := edgeKey(a, b)
	if id, ok := m.edgeLookup[key]; ok {
		return id, nil
	}
	id := ID(len(m.Edges))
	m.Edges = append(m.Edges, Edge{ID: id, V0: a, V1: b})
	m.edgeLookup[key] = id
	return id, nil
}

// CreateTriangleWithEdges builds (or reuses) the three edges of the
// triangle idempotently before constructing the triangle itself.
func (m *Mesh) CreateTriangleWithEdges(a, b, c ID) (ID, error) {
	e0, err := m.CreateUniqueEdge(a, b)
	if err != nil {
		return InvalidID, err
	}
	e1, err := m.CreateUniqueEdge(b, c)
	if err != nil {
		return InvalidID, err
	}
	e2, err := m.CreateUniqueEdge(c, a)
	if err != nil {
		return InvalidID, err
	}
	id := ID(len(m.Triangles))
	m.Triangles = append(m.Triangles, Triangle{
		ID:       id,
		Vertices: [3]ID{a, b, c},
		Edges:    [3]ID{e0, e1, e2},
	})
	return id, nil
}

// Clear removes all primitives and resets id counters.
func (m *Mesh) Clear() {
	m.Vertices = nil
	m.Edges = nil
	m.Triangles = nil
	m.Quads = nil
	m.Tetrahedra = nil
	m.edgeLookup = make(map[[2]ID]ID)
	m.locked = false
}

// BoundingBox computes the bounding box of all vertices currently in the
// mesh.
func (m *Mesh) BoundingBox() BoundingBox {
	box := NewBoundingBox(m.Dimensions)
	for _, v := range m.Vertices {
		box.Expand(v.Coords)
	}
	return box
}

func (m *Mesh) String() string {
	return fmt.Sprintf("Mesh(%s, dims=%d, vertices=%d, edges=%d, triangles=%d, quads=%d, tetrahedra=%d)",
		m.Name, m.Dimensions, len(m.Vertices), len(m.Edges), len(m.Triangles), len(m.Quads), len(m.Tetrahedra))
}
