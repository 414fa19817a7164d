package cplscheme

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/acceleration/constant"
	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/comm/mock"
	"github.com/meshcouple/coupler/coupleddata"
	"github.com/meshcouple/coupler/meshdata"
)

// TestMultiCouplingConvergesAcrossTwoPeers drives a central participant
// "Hub" coupled implicitly to two peers "A" and "B" at once, verifying the
// aggregated convergence check and acceleration run across both spokes'
// data together, and that a single verdict reaches both peers.
func TestMultiCouplingConvergesAcrossTwoPeers(t *testing.T) {
	ctx := context.Background()
	hubToA, aToHub := mock.NewPair("Hub", "A")
	hubToB, bToHub := mock.NewPair("Hub", "B")

	hub := NewMultiCoupling("Hub", nil, nil)
	hub.MaxIterations = 50
	hub.Acceleration = constant.New(0.5)

	linkA := NewPeerLink("A", hubToA)
	xFromA := meshdata.New(0, "X", 1, false, 1)
	xFromA.AllocateValues(1)
	xFromACD, err := coupleddata.New(xFromA, false, 0)
	require.NoError(t, err)
	linkA.AddReceiveData(xFromACD)
	hub.Peers = append(hub.Peers, linkA)

	linkB := NewPeerLink("B", hubToB)
	xFromB := meshdata.New(1, "Z", 1, false, 1)
	xFromB.AllocateValues(1)
	xFromBCD, err := coupleddata.New(xFromB, false, 0)
	require.NoError(t, err)
	linkB.AddReceiveData(xFromBCD)
	hub.Peers = append(hub.Peers, linkB)

	hub.SetTimeWindowSize(1)
	hub.ConvergenceMeasures = []ConvergenceMeasure{
		{DataName: "X", Limit: 1e-6, Strict: true},
		{DataName: "Z", Limit: 1e-6, Strict: true},
	}

	require.NoError(t, hub.Initialize(ctx, 0, 1))

	// peerLoop models a bare peer: it sends a fixed value back to the hub
	// every iteration until told the window converged. The hub receives the
	// same value again on its second iteration, and that zero residual
	// converges the window.
	peerLoop := func(peerComm comm.Communication, target float64) error {
		ch, err := peerComm.Primary("Hub")
		if err != nil {
			return err
		}
		for {
			if err := ch.SendBuffer(ctx, comm.KindMeshData, []float64{target}); err != nil {
				return err
			}
			converged, err := ch.ReceiveBool(ctx)
			if err != nil {
				return err
			}
			if converged {
				return nil
			}
		}
	}

	done := make(chan error, 3)
	go func() { done <- peerLoop(aToHub, 5) }()
	go func() { done <- peerLoop(bToHub, 9) }()
	go func() {
		round := 0
		for hub.IsCouplingOngoing() && !hub.IsTimeWindowComplete() {
			round++
			if round > 50 {
				done <- assert.AnError
				return
			}
			hub.RequiresAction(ActionWriteCheckpoint)
			if err := hub.FirstSynchronization(ctx); err != nil {
				done <- err
				return
			}
			if round == 1 {
				if err := hub.AddComputedTime(1); err != nil {
					done <- err
					return
				}
			}
			if err := hub.FirstExchange(ctx); err != nil {
				done <- err
				return
			}
			if err := hub.SecondSynchronization(ctx); err != nil {
				done <- err
				return
			}
			err := hub.SecondExchange(ctx)
			hub.RequiresAction(ActionReadCheckpoint)
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	assert.Equal(t, []float64{5}, xFromACD.Values())
	assert.Equal(t, []float64{9}, xFromBCD.Values())
	assert.True(t, hub.IsTimeWindowComplete())
}

// TestCompositionalRejectsSingleSchemeAndStartsIncomplete checks that
// NewCompositional rejects a single sub-scheme, and that a fresh
// composition reports the coupling ongoing and the outer window not yet
// complete.
func TestCompositionalRejectsSingleSchemeAndStartsIncomplete(t *testing.T) {
	commA1, commB1 := mock.NewPair("A", "B")

	sub1A := NewParallelExplicit("A", "B", commA1, true, nil, nil)
	sub1B := NewParallelExplicit("B", "A", commB1, false, nil, nil)
	sub1A.SetTimeWindowSize(1)
	sub1B.SetTimeWindowSize(1)

	compA, err := NewCompositional(sub1A)
	assert.Error(t, err, "single sub-scheme must be rejected")
	_ = compA

	comp, err := NewCompositional(sub1A, sub1A)
	require.NoError(t, err)
	assert.True(t, comp.IsCouplingOngoing())
	assert.False(t, comp.IsTimeWindowComplete())
}
