package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVerticesAssignsDenseIDs(t *testing.T) {
	m := New(0, "MeshA", 2)
	ids, err := m.SetVertices(3, []float64{0, 0, 1, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []ID{0, 1, 2}, ids)
	assert.Equal(t, 3, m.Size())

	moreIDs, err := m.SetVertices(2, []float64{2, 2, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, []ID{3, 4}, moreIDs)
	assert.Equal(t, 5, m.Size())
}

func TestSetVerticesRejectsMismatchedBuffer(t *testing.T) {
	m := New(0, "MeshA", 3)
	_, err := m.SetVertices(2, []float64{0, 0, 1})
	assert.Error(t, err)
}

func TestCreateUniqueEdgeDeduplicates(t *testing.T) {
	m := New(0, "MeshA", 2)
	ids, _ := m.SetVertices(2, []float64{0, 0, 1, 1})
	e1, err := m.CreateUniqueEdge(ids[0], ids[1])
	require.NoError(t, err)
	e2, err := m.CreateUniqueEdge(ids[1], ids[0])
	require.NoError(t, err)
	assert.Equal(t, e1, e2)
	assert.Len(t, m.Edges, 1)
}

func TestCreateTriangleWithEdgesReusesSharedEdge(t *testing.T) {
	m := New(0, "MeshA", 2)
	ids, _ := m.SetVertices(4, []float64{0, 0, 1, 0, 1, 1, 0, 1})
	_, err := m.CreateTriangleWithEdges(ids[0], ids[1], ids[2])
	require.NoError(t, err)
	_, err = m.CreateTriangleWithEdges(ids[0], ids[2], ids[3])
	require.NoError(t, err)
	// the diagonal (ids[0], ids[2]) is shared between both triangles
	assert.Len(t, m.Edges, 5)
	assert.Len(t, m.Triangles, 2)
}

type fixedOracle struct {
	order  [4]int
	convex bool
}

func (o fixedOracle) OrderConvex(vertices [4][]float64) ([4]int, bool) {
	return o.order, o.convex
}

func TestDecomposeQuadSplitsShorterDiagonal(t *testing.T) {
	m := New(0, "MeshA", 2)
	// unit square: v0..v3 around the perimeter
	ids, _ := m.SetVertices(4, []float64{0, 0, 1, 0, 1, 1, 0, 1})
	_, err := m.DecomposeQuad(ids[0], ids[1], ids[2], ids[3], fixedOracle{order: [4]int{0, 1, 2, 3}, convex: true})
	require.NoError(t, err)
	require.Len(t, m.Quads, 1)
	// For a unit square the two diagonals are equal length, so the tie
	// break takes (v0,v2).
	assert.Len(t, m.Triangles, 2)
	tri0 := m.Triangles[m.Quads[0].Triangles[0]]
	assert.Contains(t, tri0.Vertices, ids[0])
	assert.Contains(t, tri0.Vertices, ids[2])
}

func TestDecomposeQuadRejectsNonConvex(t *testing.T) {
	m := New(0, "MeshA", 2)
	ids, _ := m.SetVertices(4, []float64{0, 0, 1, 0, 1, 1, 0, 1})
	_, err := m.DecomposeQuad(ids[0], ids[1], ids[2], ids[3], fixedOracle{convex: false})
	assert.Error(t, err)
}

func TestCreateTetrahedronStoresFourTrianglesAndSixEdges(t *testing.T) {
	m := New(0, "MeshA", 3)
	ids, _ := m.SetVertices(4, []float64{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1})
	_, err := m.CreateTetrahedron(ids[0], ids[1], ids[2], ids[3])
	require.NoError(t, err)
	assert.Len(t, m.Triangles, 4)
	assert.Len(t, m.Edges, 6)
}

func TestBoundingBoxUnionAndIntersect(t *testing.T) {
	a := NewBoundingBox(2)
	a.Expand([]float64{0, 0})
	a.Expand([]float64{1, 1})

	b := NewBoundingBox(2)
	b.Expand([]float64{0.5, 0.5})
	b.Expand([]float64{2, 2})

	assert.True(t, a.Intersects(b))

	c := NewBoundingBox(2)
	c.Expand([]float64{5, 5})
	c.Expand([]float64{6, 6})
	assert.False(t, a.Intersects(c))

	a.ExpandBox(b)
	assert.Equal(t, 0.0, a.Min[0])
	assert.Equal(t, 2.0, a.Max[0])
}

func TestMeshLockUnlock(t *testing.T) {
	m := New(0, "MeshA", 2)
	assert.False(t, m.Locked())
	m.Lock()
	assert.True(t, m.Locked())
	m.Unlock()
	assert.False(t, m.Locked())
}
