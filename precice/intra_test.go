package precice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/couplingerrors"
)

// stubIntra is a canned intra-participant communicator: the primary's
// gather returns its own value followed by the configured secondary-rank
// values.
type stubIntra struct {
	secondaries []float64
}

func (s *stubIntra) GatherScalar(ctx context.Context, v float64) ([]float64, error) {
	return append([]float64{v}, s.secondaries...), nil
}

// TestAdvanceRejectsMismatchedTimestepAcrossRanks drives the primary rank
// of a two-rank participant whose secondary advanced by a different dt:
// the timestep synchronization at the top of Advance must fail before any
// data crosses the wire, and park the interface in its terminal state.
func TestAdvanceRejectsMismatchedTimestepAcrossRanks(t *testing.T) {
	ctx := context.Background()
	epFluid, epSolid := peerEndpoints("Fluid", "Solid")
	cfg := mustParseAndValidate(t, serialExplicitDoc)

	fluid, err := New("Fluid", cfg, 0, 2, Dependencies{
		Peers: map[string]PeerEndpoint{"Solid": epFluid},
		Intra: &stubIntra{secondaries: []float64{0.5}},
	})
	require.NoError(t, err)
	solid, err := New("Solid", cfg, 0, 1, Dependencies{Peers: map[string]PeerEndpoint{"Fluid": epSolid}})
	require.NoError(t, err)

	initializeBoth(t, ctx, fluid, solid)

	require.NoError(t, fluid.WriteData("", "Y", 0, []float64{1}))
	_, err = fluid.Advance(ctx, 1.0)
	require.Error(t, err)
	assert.True(t, couplingerrors.Is(err, couplingerrors.UserError))

	// The failed synchronization is fatal: the next call hits the sink.
	_, err = fluid.Advance(ctx, 1.0)
	require.Error(t, err)

	// A multi-rank participant without an intra communicator is rejected
	// at construction.
	_, err = New("Fluid", cfg, 0, 2, Dependencies{Peers: map[string]PeerEndpoint{"Solid": epFluid}})
	require.Error(t, err)
	assert.True(t, couplingerrors.Is(err, couplingerrors.ConfigurationError))
}
