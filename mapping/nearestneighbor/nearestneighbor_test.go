package nearestneighbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/mapping"
	"github.com/meshcouple/coupler/mesh"
)

// TestDirectAccessForcesMapping maps a written field across two small
// meshes: B writes Forces=[0,1,2,3,4] on its own mesh; mapped
// nearest-neighbor onto A's mesh it must read back [2,4,3,3].
func TestDirectAccessForcesMapping(t *testing.T) {
	meshA := mesh.New(0, "MeshA", 2)
	_, err := meshA.SetVertices(4, []float64{
		0.2, 0.2,
		0.1, 0.6,
		0.1, 0.0,
		0.1, 0.0,
	})
	require.NoError(t, err)

	meshB := mesh.New(1, "MeshB", 2)
	_, err = meshB.SetVertices(5, []float64{
		0.0, 0.0,
		0.0, 0.05,
		0.1, 0.1,
		0.1, 0.0,
		0.5, 0.5,
	})
	require.NoError(t, err)

	m := New()
	m.SetMeshes(meshB, meshA)
	require.NoError(t, m.ComputeMapping())

	input := []float64{0, 1, 2, 3, 4}
	output := make([]float64, 4)
	require.NoError(t, m.Map(mapping.Consistent, 1, input, output))

	assert.Equal(t, []float64{2, 4, 3, 3}, output)
}

func TestConservativeConstraintPreservesSum(t *testing.T) {
	from := mesh.New(0, "From", 1)
	_, err := from.SetVertices(2, []float64{0, 10})
	require.NoError(t, err)

	to := mesh.New(1, "To", 1)
	_, err = to.SetVertices(4, []float64{0.1, 0.2, 9.8, 10.1})
	require.NoError(t, err)

	m := New()
	m.SetMeshes(from, to)
	require.NoError(t, m.ComputeMapping())

	input := []float64{2, 8}
	output := make([]float64, 4)
	require.NoError(t, m.Map(mapping.Conservative, 1, input, output))

	sum := 0.0
	for _, v := range output {
		sum += v
	}
	assert.InDelta(t, 10.0, sum, 1e-9)
}

func TestMapRejectsUncomputedStencil(t *testing.T) {
	m := New()
	err := m.Map(mapping.Consistent, 1, nil, nil)
	assert.Error(t, err)
}
