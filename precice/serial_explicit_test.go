package precice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingWatchpoint captures the observer hooks the facade drives at
// initialization and after each completed window.
type recordingWatchpoint struct {
	initialized bool
	records     []float64
}

func (w *recordingWatchpoint) Initialize(time float64) error {
	w.initialized = true
	return nil
}

func (w *recordingWatchpoint) Record(time float64) error {
	w.records = append(w.records, time)
	return nil
}

type recordingExporter struct {
	windows []int
}

func (e *recordingExporter) Export(timeWindow int, time float64) error {
	e.windows = append(e.windows, timeWindow)
	return nil
}

const serialExplicitDoc = `<solver-interface dimensions="2">
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
  <coupling-scheme:serial-explicit>
    <participants first="Fluid" second="Solid"/>
    <max-time value="3.0"/>
    <time-window-size value="1.0" method="fixed"/>
    <exchange data="Y" mesh="FluidMesh" from="Fluid" to="Solid"/>
    <exchange data="Z" mesh="SolidMesh" from="Solid" to="Fluid"/>
  </coupling-scheme:serial-explicit>
</solver-interface>`

// TestSerialExplicitThreeFixedWindows exercises a fixed W=1.0 serial-explicit
// coupling across three advances: each window exchanges a round trip of
// scalar data and the scheme reports coupling complete once the configured
// max-time is reached.
func TestSerialExplicitThreeFixedWindows(t *testing.T) {
	ctx := context.Background()
	epFluid, epSolid := peerEndpoints("Fluid", "Solid")
	cfg := mustParseAndValidate(t, serialExplicitDoc)

	wp := &recordingWatchpoint{}
	exp := &recordingExporter{}
	fluid, err := New("Fluid", cfg, 0, 1, Dependencies{
		Peers:       map[string]PeerEndpoint{"Solid": epFluid},
		Watchpoints: []Watchpoint{wp},
		Exporters:   []Exporter{exp},
	})
	require.NoError(t, err)
	solid, err := New("Solid", cfg, 0, 1, Dependencies{Peers: map[string]PeerEndpoint{"Fluid": epSolid}})
	require.NoError(t, err)

	initializeBoth(t, ctx, fluid, solid)
	assert.True(t, wp.initialized)

	for window := 0; window < 3; window++ {
		require.True(t, fluid.IsCouplingOngoing())
		require.True(t, solid.IsCouplingOngoing())

		sent := float64(window + 1)
		echoed := 10 * sent
		require.NoError(t, fluid.WriteData("", "Y", 0, []float64{sent}))
		require.NoError(t, solid.WriteData("", "Z", 0, []float64{echoed}))

		done := make(chan error, 2)
		go func() {
			_, err := fluid.Advance(ctx, 1.0)
			done <- err
		}()
		go func() {
			_, err := solid.Advance(ctx, 1.0)
			done <- err
		}()
		require.NoError(t, <-done)
		require.NoError(t, <-done)

		zOnFluid, err := fluid.ReadData("", "Z", 0, 1.0)
		require.NoError(t, err)
		assert.InDelta(t, echoed, zOnFluid[0], 1e-9)

		yOnSolid, err := solid.ReadData("", "Y", 0, 1.0)
		require.NoError(t, err)
		assert.InDelta(t, sent, yOnSolid[0], 1e-9)
	}

	assert.False(t, fluid.IsCouplingOngoing())
	assert.False(t, solid.IsCouplingOngoing())

	// One watchpoint sample and one export per completed window.
	assert.Equal(t, []float64{1, 2, 3}, wp.records)
	assert.Equal(t, []int{1, 2, 3}, exp.windows)

	finalizeDone := make(chan error, 2)
	go func() { finalizeDone <- fluid.Finalize(ctx) }()
	go func() { finalizeDone <- solid.Finalize(ctx) }()
	require.NoError(t, <-finalizeDone)
	require.NoError(t, <-finalizeDone)
}
