// Package comm defines the Communication abstractions:
// point-to-point primary-rank channels and per-secondary-rank distributed
// channels used to exchange scalars, booleans, and numeric buffers between
// participants. Concrete backends (comm/zmq for wire transport, comm/mock
// for tests) implement Communication; callers above this package never
// depend on a specific backend.
package comm

import "context"

// Kind tags a data payload's wire shape. KindGlobalData is declared for
// global (meshless) data, but the coupling schemes send every payload,
// global data included, as KindMeshData.
type Kind int

const (
	KindMeshData Kind = iota
	KindGlobalData
)

// Channel is a single ordered, reliable connection between two ranks. All
// operations block until complete or the context is cancelled; messages
// within one Channel are delivered FIFO.
type Channel interface {
	SendScalar(ctx context.Context, v float64) error
	ReceiveScalar(ctx context.Context) (float64, error)

	SendBool(ctx context.Context, v bool) error
	ReceiveBool(ctx context.Context) (bool, error)

	// SendString/ReceiveString carry the primary handshake's identifying
	// string and its ping/pong close exchange.
	SendString(ctx context.Context, v string) error
	ReceiveString(ctx context.Context) (string, error)

	// SendBuffer sends a contiguous buffer of length |vertices|*dim (or
	// dim, for global data).
	SendBuffer(ctx context.Context, kind Kind, buf []float64) error
	ReceiveBuffer(ctx context.Context, kind Kind, n int) ([]float64, error)

	Close() error
}

// Communication mediates the two channel kinds between this participant
// and one remote peer: one primary-rank connection for control/small
// payloads, and one distributed connection per secondary rank for bulk
// vertex/data payloads.
type Communication interface {
	// AcceptConnection opens a listening endpoint for peerParticipant and
	// blocks until it connects.
	AcceptConnection(ctx context.Context, peerParticipant string) error
	// RequestConnection connects to peerParticipant's listening endpoint.
	RequestConnection(ctx context.Context, peerParticipant, address string) error

	// PreConnectSecondaryRanks opens distributed channels to every
	// secondary rank of peerParticipant ahead of the bulk exchange phase.
	PreConnectSecondaryRanks(ctx context.Context, peerParticipant string, ranks int) error

	// Primary returns the primary-rank channel to peerParticipant.
	Primary(peerParticipant string) (Channel, error)
	// Distributed returns the distributed channel to the given secondary
	// rank of peerParticipant.
	Distributed(peerParticipant string, rank int) (Channel, error)

	// CloseConnection releases every channel (primary and distributed) to
	// peerParticipant.
	CloseConnection(peerParticipant string) error
}

// Intra is the intra-participant communicator connecting one rank to the
// others of the same participant. Concrete backends (MPI collectives, a
// socket star around rank 0) are external collaborators; this package
// only defines the contract the Solver Interface consumes.
type Intra interface {
	// GatherScalar collects every rank's value of v. On the primary it
	// returns the values in rank order (its own included); on a secondary
	// it sends v to the primary and returns nil.
	GatherScalar(ctx context.Context, v float64) ([]float64, error)
}
