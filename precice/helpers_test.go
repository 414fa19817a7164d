package precice

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/comm/mock"
	"github.com/meshcouple/coupler/config"
	"github.com/meshcouple/coupler/mapping"
	"github.com/meshcouple/coupler/mapping/nearestneighbor"
)

// peerEndpoints wires an in-process transport between nameA and nameB and
// returns each side's Dependencies entry. The m2n handshake itself runs
// inside Initialize.
func peerEndpoints(nameA, nameB string) (a, b PeerEndpoint) {
	ca, cb := mock.NewPair(nameA, nameB)
	return PeerEndpoint{Comm: ca, Address: "inproc"}, PeerEndpoint{Comm: cb, Address: "inproc"}
}

// initializeBoth runs both interfaces' Initialize concurrently (the m2n
// handshake inside blocks until the peer answers) and fails the test on
// either error.
func initializeBoth(t *testing.T, ctx context.Context, a, b *SolverInterface) {
	t.Helper()
	done := make(chan error, 2)
	go func() {
		_, err := a.Initialize(ctx)
		done <- err
	}()
	go func() {
		_, err := b.Initialize(ctx)
		done <- err
	}()
	require.NoError(t, <-done)
	require.NoError(t, <-done)
}

// mustParseAndValidate parses doc and validates the result, failing the
// test immediately on either error.
func mustParseAndValidate(t *testing.T, doc string) *config.Configuration {
	t.Helper()
	cfg, err := config.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

// mappingFactories registers the one mapping kernel exercised by these
// tests for the "nearest-neighbor" configuration kind.
func mappingFactories() map[string]func() mapping.Mapping {
	return map[string]func() mapping.Mapping{
		"nearest-neighbor": func() mapping.Mapping { return nearestneighbor.New() },
	}
}
