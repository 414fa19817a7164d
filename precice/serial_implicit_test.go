package precice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serialImplicitDoc = `<solver-interface dimensions="2">
  <global-data:scalar name="Y"/>
  <global-data:scalar name="Z"/>
  <mesh name="FluidMesh"/>
  <mesh name="SolidMesh"/>
  <participant name="Fluid">
    <provide-mesh name="FluidMesh"/>
    <write-data name="Y" mesh="FluidMesh"/>
    <read-data name="Z" mesh="FluidMesh"/>
  </participant>
  <participant name="Solid">
    <provide-mesh name="SolidMesh"/>
    <write-data name="Z" mesh="SolidMesh"/>
    <read-data name="Y" mesh="SolidMesh"/>
  </participant>
  <m2n:sockets from="Fluid" to="Solid"/>
  <coupling-scheme:serial-implicit>
    <participants first="Fluid" second="Solid"/>
    <max-time value="2.0"/>
    <time-window-size value="1.0" method="fixed"/>
    <exchange data="Y" mesh="FluidMesh" from="Fluid" to="Solid"/>
    <exchange data="Z" mesh="SolidMesh" from="Solid" to="Fluid"/>
    <convergence-measure data="Z" limit="1e-6" suffices="true" strict="true"/>
    <max-iterations value="30"/>
  </coupling-scheme:serial-implicit>
</solver-interface>`

// TestSerialImplicitFixedPointConvergence drives a linear scalar fixed
// point (x = 1 + 0.5*z, z = 0.5*x) through a serial-implicit coupling
// scheme: the contraction factor of 0.25 converges well within the
// configured 30-iteration cap, and a fresh window again demands a
// checkpoint, confirming the sub-iteration counter was reset by the prior
// window's convergence.
func TestSerialImplicitFixedPointConvergence(t *testing.T) {
	ctx := context.Background()
	epFluid, epSolid := peerEndpoints("Fluid", "Solid")
	cfg := mustParseAndValidate(t, serialImplicitDoc)

	fluid, err := New("Fluid", cfg, 0, 1, Dependencies{Peers: map[string]PeerEndpoint{"Solid": epFluid}})
	require.NoError(t, err)
	solid, err := New("Solid", cfg, 0, 1, Dependencies{Peers: map[string]PeerEndpoint{"Fluid": epSolid}})
	require.NoError(t, err)

	initializeBoth(t, ctx, fluid, solid)

	firstCheckpointSeen := make([]bool, 0, 2)

	fluidDone := make(chan error, 1)
	go func() {
		x := 1.0
		for fluid.IsCouplingOngoing() {
			rounds := 0
			for {
				rounds++
				if rounds > 30 {
					fluidDone <- assert.AnError
					return
				}
				wroteCheckpoint := fluid.RequiresWritingCheckpoint()
				if rounds == 1 {
					firstCheckpointSeen = append(firstCheckpointSeen, wroteCheckpoint)
				}
				if err := fluid.WriteData("", "Y", 0, []float64{x}); err != nil {
					fluidDone <- err
					return
				}
				if _, err := fluid.Advance(ctx, 1.0); err != nil {
					fluidDone <- err
					return
				}
				z, err := fluid.ReadData("", "Z", 0, 1.0)
				if err != nil {
					fluidDone <- err
					return
				}
				x = 1.0 + 0.5*z[0]
				if fluid.RequiresReadingCheckpoint() {
					continue
				}
				break
			}
		}
		fluidDone <- nil
	}()

	solidDone := make(chan error, 1)
	go func() {
		y := 0.0
		for solid.IsCouplingOngoing() {
			for {
				solid.RequiresWritingCheckpoint()
				z := 0.5 * y
				if err := solid.WriteData("", "Z", 0, []float64{z}); err != nil {
					solidDone <- err
					return
				}
				if _, err := solid.Advance(ctx, 1.0); err != nil {
					solidDone <- err
					return
				}
				newY, err := solid.ReadData("", "Y", 0, 1.0)
				if err != nil {
					solidDone <- err
					return
				}
				y = newY[0]
				if solid.RequiresReadingCheckpoint() {
					continue
				}
				break
			}
		}
		solidDone <- nil
	}()

	require.NoError(t, <-fluidDone)
	require.NoError(t, <-solidDone)

	assert.False(t, fluid.IsCouplingOngoing())
	assert.False(t, solid.IsCouplingOngoing())

	// Both windows' first sub-iteration required a checkpoint: the second
	// window wouldn't if the iteration counter had carried over from the
	// first window's convergence instead of resetting.
	require.Len(t, firstCheckpointSeen, 2)
	assert.True(t, firstCheckpointSeen[0])
	assert.True(t, firstCheckpointSeen[1])

	finalizeDone := make(chan error, 2)
	go func() { finalizeDone <- fluid.Finalize(ctx) }()
	go func() { finalizeDone <- solid.Finalize(ctx) }()
	require.NoError(t, <-finalizeDone)
	require.NoError(t, <-finalizeDone)
}
