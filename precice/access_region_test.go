package precice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/mesh"
)

const accessRegionDoc = `<solver-interface dimensions="2">
  <global-data:scalar name="Flux"/>
  <mesh name="UpstreamMesh"/>
  <participant name="Generator">
    <provide-mesh name="UpstreamMesh"/>
    <write-data name="Flux" mesh="UpstreamMesh"/>
  </participant>
  <participant name="Observer">
    <receive-mesh name="UpstreamMesh" from="Generator"/>
    <read-data name="Flux" mesh="UpstreamMesh"/>
  </participant>
  <m2n:sockets from="Generator" to="Observer"/>
  <coupling-scheme:serial-explicit>
    <participants first="Generator" second="Observer"/>
    <max-time value="1.0"/>
    <time-window-size value="1.0" method="fixed"/>
    <exchange data="Flux" mesh="UpstreamMesh" from="Generator" to="Observer"/>
  </coupling-scheme:serial-explicit>
</solver-interface>`

// TestAccessRegionFiltersReceivedVertices checks the bounding-box
// intersection behavior: a receiver providing no mesh of its own sees
// exactly the provider vertices inside its declared access region.
func TestAccessRegionFiltersReceivedVertices(t *testing.T) {
	ctx := context.Background()
	epGen, epObs := peerEndpoints("Generator", "Observer")
	cfg := mustParseAndValidate(t, accessRegionDoc)

	gen, err := New("Generator", cfg, 0, 1, Dependencies{Peers: map[string]PeerEndpoint{"Observer": epGen}})
	require.NoError(t, err)
	obs, err := New("Observer", cfg, 0, 1, Dependencies{Peers: map[string]PeerEndpoint{"Generator": epObs}})
	require.NoError(t, err)

	_, err = gen.SetMeshVertices("UpstreamMesh", 6, []float64{
		0.0, 0.0,
		0.25, 0.75,
		0.5, 0.5,
		0.75, 0.25,
		1.0, 1.0,
		0.6, 0.9,
	})
	require.NoError(t, err)
	require.NoError(t, obs.SetMeshAccessRegion("UpstreamMesh", []float64{0.5, 1.5, 0.5, 1.5}))

	initializeBoth(t, ctx, gen, obs)

	// Only the vertices with both coordinates >= 0.5 survive the filter,
	// remapped to dense local ids in their original order.
	size, err := obs.GetMeshVertexSize("UpstreamMesh")
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	ids, coords, err := obs.GetMeshVerticesAndIDs("UpstreamMesh")
	require.NoError(t, err)
	assert.Equal(t, []mesh.ID{0, 1, 2}, ids)
	assert.Equal(t, []float64{0.5, 0.5, 1.0, 1.0, 0.6, 0.9}, coords)

	require.NoError(t, gen.WriteData("", "Flux", 0, []float64{3.5}))

	advDone := make(chan error, 2)
	go func() {
		_, err := gen.Advance(ctx, 1.0)
		advDone <- err
	}()
	go func() {
		_, err := obs.Advance(ctx, 1.0)
		advDone <- err
	}()
	require.NoError(t, <-advDone)
	require.NoError(t, <-advDone)

	flux, err := obs.ReadData("", "Flux", 0, 1.0)
	require.NoError(t, err)
	assert.Equal(t, []float64{3.5}, flux)

	finalizeDone := make(chan error, 2)
	go func() { finalizeDone <- gen.Finalize(ctx) }()
	go func() { finalizeDone <- obs.Finalize(ctx) }()
	require.NoError(t, <-finalizeDone)
	require.NoError(t, <-finalizeDone)
}

const accessRegionTooSmallDoc = `<solver-interface dimensions="2">
  <global-data:scalar name="Flux"/>
  <mesh name="UpstreamMesh"/>
  <mesh name="ProbeMesh"/>
  <participant name="Generator">
    <provide-mesh name="UpstreamMesh"/>
    <write-data name="Flux" mesh="UpstreamMesh"/>
  </participant>
  <participant name="Observer">
    <provide-mesh name="ProbeMesh"/>
    <receive-mesh name="UpstreamMesh" from="Generator"/>
    <read-data name="Flux" mesh="UpstreamMesh"/>
  </participant>
  <m2n:sockets from="Generator" to="Observer"/>
  <coupling-scheme:serial-explicit>
    <participants first="Generator" second="Observer"/>
    <max-time value="1.0"/>
    <time-window-size value="1.0" method="fixed"/>
    <exchange data="Flux" mesh="UpstreamMesh" from="Generator" to="Observer"/>
  </coupling-scheme:serial-explicit>
</solver-interface>`

// TestAccessRegionMustCoverOwnedMesh checks that an access region strictly
// smaller than the receiver's own interface is rejected at initialize()
// instead of silently dropping coverage.
func TestAccessRegionMustCoverOwnedMesh(t *testing.T) {
	ctx := context.Background()
	epGen, epObs := peerEndpoints("Generator", "Observer")
	cfg := mustParseAndValidate(t, accessRegionTooSmallDoc)

	gen, err := New("Generator", cfg, 0, 1, Dependencies{Peers: map[string]PeerEndpoint{"Observer": epGen}})
	require.NoError(t, err)
	obs, err := New("Observer", cfg, 0, 1, Dependencies{Peers: map[string]PeerEndpoint{"Generator": epObs}})
	require.NoError(t, err)

	// The probe vertex lies outside the declared access region, so the
	// region cannot cover the owned bounding box.
	_, err = obs.SetMeshVertex("ProbeMesh", []float64{2.0, 2.0})
	require.NoError(t, err)
	require.NoError(t, obs.SetMeshAccessRegion("UpstreamMesh", []float64{0.5, 1.5, 0.5, 1.5}))

	// The provider's Initialize completes regardless: its handshake and
	// mesh broadcast don't depend on the receiver's filtering outcome.
	genDone := make(chan error, 1)
	go func() {
		_, err := gen.Initialize(ctx)
		genDone <- err
	}()

	_, err = obs.Initialize(ctx)
	require.Error(t, err)
	assert.True(t, couplingerrors.Is(err, couplingerrors.UserError))
	require.NoError(t, <-genDone)
}
