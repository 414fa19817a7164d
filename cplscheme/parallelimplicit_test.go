package cplscheme

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/acceleration/iqnils"
	"github.com/meshcouple/coupler/comm/mock"
	"github.com/meshcouple/coupler/coupleddata"
	"github.com/meshcouple/coupler/meshdata"
)

// TestParallelImplicitConvergesWithIQNILS drives a two-participant
// fixed-point (y = 0.5*x + 1, x fed back from y) using IQN-ILS, the
// standard accelerator setup for parallel implicit coupling, and
// checks it converges well inside a generous iteration cap.
func TestParallelImplicitConvergesWithIQNILS(t *testing.T) {
	ctx := context.Background()
	commA, commB := mock.NewPair("A", "B")

	a := NewParallelImplicit("A", "B", commA, false, nil, nil)
	b := NewParallelImplicit("B", "A", commB, false, nil, nil)
	a.SetTimeWindowSize(1)
	b.SetTimeWindowSize(1)
	a.MaxIterations = 30
	b.MaxIterations = 30
	a.MeasuringParticipant = "A"
	b.MeasuringParticipant = "A"
	a.Acceleration = iqnils.New(0.5, 8)
	a.ConvergenceMeasures = []ConvergenceMeasure{{DataName: "Y", Limit: 1e-8}}

	x := meshdata.New(0, "X", 1, false, 1)
	x.AllocateValues(1)
	xCD, err := coupleddata.New(x, false, 0)
	require.NoError(t, err)
	a.AddSendData(xCD)

	yIn := meshdata.New(0, "X", 1, false, 1)
	yIn.AllocateValues(1)
	yInCD, err := coupleddata.New(yIn, false, 0)
	require.NoError(t, err)
	b.AddReceiveData(yInCD)

	yOut := meshdata.New(1, "Y", 1, false, 1)
	yOut.AllocateValues(1)
	yOutCD, err := coupleddata.New(yOut, false, 0)
	require.NoError(t, err)
	b.AddSendData(yOutCD)

	yBack := meshdata.New(1, "Y", 1, false, 1)
	yBack.AllocateValues(1)
	yBackCD, err := coupleddata.New(yBack, false, 0)
	require.NoError(t, err)
	a.AddReceiveData(yBackCD)

	x.SetValue(0, []float64{1})

	rounds := 0
	for a.IsCouplingOngoing() && !a.IsTimeWindowComplete() {
		rounds++
		require.Less(t, rounds, 40, "did not converge in time")

		done := make(chan error, 2)
		go func() {
			a.RequiresAction(ActionWriteCheckpoint)
			if err := a.FirstSynchronization(ctx); err != nil {
				done <- err
				return
			}
			if rounds == 1 {
				if err := a.AddComputedTime(1); err != nil {
					done <- err
					return
				}
			}
			if err := a.FirstExchange(ctx); err != nil {
				done <- err
				return
			}
			if err := a.SecondSynchronization(ctx); err != nil {
				done <- err
				return
			}
			errA := a.SecondExchange(ctx)
			a.RequiresAction(ActionReadCheckpoint)
			done <- errA
		}()
		go func() {
			b.RequiresAction(ActionWriteCheckpoint)
			if err := b.FirstSynchronization(ctx); err != nil {
				done <- err
				return
			}
			if rounds == 1 {
				if err := b.AddComputedTime(1); err != nil {
					done <- err
					return
				}
			}
			if err := b.FirstExchange(ctx); err != nil {
				done <- err
				return
			}
			if err := b.SecondSynchronization(ctx); err != nil {
				done <- err
				return
			}
			errB := b.SecondExchange(ctx)
			b.RequiresAction(ActionReadCheckpoint)
			done <- errB
		}()
		require.NoError(t, <-done)
		require.NoError(t, <-done)

		if !a.IsTimeWindowComplete() {
			yOut.SetValue(0, []float64{0.5*yIn.Values()[0] + 1})
			x.SetValues(yBackCD.Values())
		}
	}

	assert.InDelta(t, 2.0, yBackCD.Values()[0], 1e-5)
	assert.True(t, b.IsTimeWindowComplete(), "B must take the same branch as the measuring side")
	assert.Greater(t, a.Acceleration.GetLSSystemCols(), 0, "IQN-ILS never built a least-squares column")
}
