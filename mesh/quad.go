package mesh

import (
	"math"

	"github.com/meshcouple/coupler/couplingerrors"
)

// ConvexOracle yields whether four coplanar vertices form a convex polygon
// and, if so, a canonical ordering [v0,v1,v2,v3] around the polygon. Its
// implementation (point-in-plane tests, cross-product sign checks) is a
// geometry-primitive concern left to an external collaborator, consumed
// here only through this narrow interface.
type ConvexOracle interface {
	OrderConvex(vertices [4][]float64) (order [4]int, convex bool)
}

func dist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// DecomposeQuad splits a convex quad into two triangles along its shorter
// diagonal. Given the canonical order produced by a ConvexOracle, it
// computes d02 = |v0-v2| and d13 = |v1-v3|; ties (d02 == d13) split along
// (v0,v2) deterministically.
func (m *Mesh) DecomposeQuad(a, b, c, d ID, oracle ConvexOracle) (ID, error) {
	ids := [4]ID{a, b, c, d}
	for _, id := range ids {
		if err := m.validVertex(id); err != nil {
			return InvalidID, err
		}
	}
	seen := map[ID]bool{}
	for _, id := range ids {
		if seen[id] {
			return InvalidID, couplingerrors.New(couplingerrors.UserError,
				"mesh %q: quad has duplicate vertex id %d", m.Name, id)
		}
		seen[id] = true
	}

	coords := [4][]float64{
		m.Vertices[a].Coords, m.Vertices[b].Coords,
		m.Vertices[c].Coords, m.Vertices[d].Coords,
	}
	order, convex := oracle.OrderConvex(coords)
	if !convex {
		return InvalidID, couplingerrors.New(couplingerrors.UserError,
			"mesh %q: quad (%d,%d,%d,%d) is not convex", m.Name, a, b, c, d)
	}

	canon := [4]ID{ids[order[0]], ids[order[1]], ids[order[2]], ids[order[3]]}
	v0, v1, v2, v3 := canon[0], canon[1], canon[2], canon[3]

	d02 := dist(m.Vertices[v0].Coords, m.Vertices[v2].Coords)
	d13 := dist(m.Vertices[v1].Coords, m.Vertices[v3].Coords)

	var t0, t1 ID
	var err error
	if d02 <= d13 {
		// split along (v0,v2): triangles (v0,v1,v2) and (v0,v2,v3)
		t0, err = m.CreateTriangleWithEdges(v0, v1, v2)
		if err != nil {
			return InvalidID, err
		}
		t1, err = m.CreateTriangleWithEdges(v0, v2, v3)
		if err != nil {
			return InvalidID, err
		}
	} else {
		// split along (v1,v3): triangles (v0,v1,v3) and (v1,v2,v3)
		t0, err = m.CreateTriangleWithEdges(v0, v1, v3)
		if err != nil {
			return InvalidID, err
		}
		t1, err = m.CreateTriangleWithEdges(v1, v2, v3)
		if err != nil {
			return InvalidID, err
		}
	}

	id := ID(len(m.Quads))
	m.Quads = append(m.Quads, Quad{ID: id, Vertices: canon, Triangles: [2]ID{t0, t1}})
	return id, nil
}

// CreateTetrahedron stores a tetrahedron as its 4 triangular faces plus the
// 6 edges between its 4 vertices.
func (m *Mesh) CreateTetrahedron(a, b, c, d ID) (ID, error) {
	ids := [4]ID{a, b, c, d}
	for _, id := range ids {
		if err := m.validVertex(id); err != nil {
			return InvalidID, err
		}
	}

	faces := [4][3]ID{
		{a, b, c}, {a, b, d}, {a, c, d}, {b, c, d},
	}
	var triIDs [4]ID
	for i, f := range faces {
		t, err := m.CreateTriangleWithEdges(f[0], f[1], f[2])
		if err != nil {
			return InvalidID, err
		}
		triIDs[i] = t
	}

	pairs := [6][2]ID{{a, b}, {a, c}, {a, d}, {b, c}, {b, d}, {c, d}}
	var edgeIDs [6]ID
	for i, p := range pairs {
		e, err := m.CreateUniqueEdge(p[0], p[1])
		if err != nil {
			return InvalidID, err
		}
		edgeIDs[i] = e
	}

	id := ID(len(m.Tetrahedra))
	m.Tetrahedra = append(m.Tetrahedra, Tetrahedron{
		ID: id, Vertices: ids, Triangles: triIDs, Edges: edgeIDs,
	})
	return id, nil
}
