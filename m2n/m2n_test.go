package m2n

import (
	"context"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/comm/mock"
)

func TestHandshakeExchangesRankCounts(t *testing.T) {
	a, b := mock.NewPair("SolverA", "SolverB")

	type result struct {
		conn *Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := AcceptAndConnect(context.Background(), nil, a, "SolverB", ids.NodeID{}, 3)
		done <- result{conn, err}
	}()

	connB, err := RequestAndConnect(context.Background(), nil, b, "SolverA", "inproc", ids.NodeID{}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, connB.SecondaryRanks)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, 2, r.conn.SecondaryRanks)
}
