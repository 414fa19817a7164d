package couplingcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/mapping"
	"github.com/meshcouple/coupler/mapping/nearestneighbor"
	"github.com/meshcouple/coupler/mesh"
	"github.com/meshcouple/coupler/meshdata"
)

func TestRequirementMax(t *testing.T) {
	assert.Equal(t, RequirementFull, RequirementVertex.Max(RequirementFull))
	assert.Equal(t, RequirementFull, RequirementFull.Max(RequirementVertex))
}

func TestMappingContextRejectsNameMismatch(t *testing.T) {
	d1 := meshdata.New(0, "Forces", 1, false, 2)
	d2 := meshdata.New(1, "Velocities", 1, false, 2)
	_, err := NewMappingContext(nearestneighbor.New(), d1, d2, TimingOnAdvance)
	assert.Error(t, err)
}

func TestDataContextMapReadAppliesMapping(t *testing.T) {
	meshB := mesh.New(0, "MeshB", 1)
	_, err := meshB.SetVertices(2, []float64{0, 10})
	require.NoError(t, err)
	meshA := mesh.New(1, "MeshA", 1)
	_, err = meshA.SetVertices(1, []float64{1})
	require.NoError(t, err)

	source := meshdata.New(0, "Forces", 1, false, 1)
	source.AllocateValues(2)
	require.NoError(t, source.SetValues([]float64{2, 8}))

	target := meshdata.New(1, "Forces", 1, false, 1)
	target.AllocateValues(1)

	nn := nearestneighbor.New()
	nn.SetMeshes(meshB, meshA)

	mc, err := NewMappingContext(nn, source, target, TimingOnAdvance)
	require.NoError(t, err)

	dc := NewDataContext(target, meshA)
	dc.AddFromMapping(mc)

	require.NoError(t, dc.MapRead(mapping.Consistent))
	assert.True(t, mc.HasMappedData)
	assert.Equal(t, []float64{2}, target.Values())
}

func TestParticipantRejectsDuplicateMesh(t *testing.T) {
	p := NewParticipant("A")
	m := mesh.New(0, "MeshA", 2)
	require.NoError(t, p.AddMeshContext("MeshA", NewProvidedMeshContext(m)))
	err := p.AddMeshContext("MeshA", NewProvidedMeshContext(m))
	assert.Error(t, err)
}

func TestAccessRegionUnion(t *testing.T) {
	m := mesh.New(0, "MeshB", 2)
	ctx := NewReceivedMeshContext(m, "A")
	box := mesh.NewBoundingBox(2)
	box.Expand([]float64{0, 0})
	box.Expand([]float64{1, 1})
	ctx.UnionAccessRegion(box)
	assert.True(t, ctx.AccessRegionSet)
	assert.Equal(t, 0.0, ctx.AccessRegion.Min[0])

	box2 := mesh.NewBoundingBox(2)
	box2.Expand([]float64{-1, -1})
	box2.Expand([]float64{0.5, 0.5})
	ctx.UnionAccessRegion(box2)
	assert.Equal(t, -1.0, ctx.AccessRegion.Min[0])
}
