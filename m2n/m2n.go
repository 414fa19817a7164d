// Package m2n ("mesh to node") wires up the connection between two
// participants: it runs the primary handshake and pre-connects the
// secondary-rank channels before the partitioning and data-exchange
// phases begin, identifying the peer, checking compatibility, and
// recording it as connected.
package m2n

import (
	"context"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/version"

	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/couplingerrors"
)

// CurrentVersion identifies this build's wire-compatible coupling-core
// version, exchanged during the primary handshake.
var CurrentVersion = &version.Application{Name: "meshcouple", Major: 1, Minor: 0, Patch: 0}

// identifyingString encodes the handshake payload: the sending rank's
// NodeID plus its build version, so the peer can record who it talked to
// and check wire compatibility.
func identifyingString(self ids.NodeID, v *version.Application) string {
	return fmt.Sprintf("%s@%d.%d.%d", self, v.Major, v.Minor, v.Patch)
}

func parseIdentifyingString(s string) (ids.NodeID, *version.Application, error) {
	var nodeIDPart string
	var major, minor, patch int
	if _, err := fmt.Sscanf(s, "%s", &nodeIDPart); err != nil {
		return ids.EmptyNodeID, nil, couplingerrors.New(couplingerrors.ProtocolError, "m2n: malformed identifying string %q", s)
	}
	at := -1
	for i := len(nodeIDPart) - 1; i >= 0; i-- {
		if nodeIDPart[i] == '@' {
			at = i
			break
		}
	}
	if at < 0 {
		return ids.EmptyNodeID, nil, couplingerrors.New(couplingerrors.ProtocolError, "m2n: malformed identifying string %q", s)
	}
	idPart, verPart := nodeIDPart[:at], nodeIDPart[at+1:]
	if _, err := fmt.Sscanf(verPart, "%d.%d.%d", &major, &minor, &patch); err != nil {
		return ids.EmptyNodeID, nil, couplingerrors.New(couplingerrors.ProtocolError, "m2n: malformed version in identifying string %q", s)
	}
	nodeID, err := ids.NodeIDFromString(idPart)
	if err != nil {
		return ids.EmptyNodeID, nil, couplingerrors.Wrap(couplingerrors.ProtocolError, err, "m2n: malformed node id in identifying string %q", s)
	}
	return nodeID, &version.Application{Name: CurrentVersion.Name, Major: major, Minor: minor, Patch: patch}, nil
}

// Connection is the result of a completed handshake with one peer
// participant: the open Communication plus the peer's reported rank count
// and identifying version.
type Connection struct {
	Peer        string
	PeerRank    ids.NodeID
	PeerVersion *version.Application
	SecondaryRanks int
	Comm        comm.Communication

	// initiator is true for the side that dialed (RequestAndConnect), which
	// sends the first "ping" of the close handshake; the accepting side
	// waits for it and replies "pong".
	initiator bool
}

// AcceptAndConnect accepts the incoming primary connection from peer, runs
// the handshake, pre-connects peer's secondary ranks, and returns the
// established Connection. localRanks is this participant's own secondary
// rank count, sent to the peer so it can pre-connect symmetrically.
func AcceptAndConnect(ctx context.Context, logger log.Logger, c comm.Communication, peer string, localSelf ids.NodeID, localRanks int) (*Connection, error) {
	if err := c.AcceptConnection(ctx, peer); err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.TransportError, err, "m2n: accept connection from %q", peer)
	}
	return handshake(ctx, logger, c, peer, localSelf, localRanks, false)
}

// RequestAndConnect dials peer's primary address, runs the handshake, and
// pre-connects peer's secondary ranks.
func RequestAndConnect(ctx context.Context, logger log.Logger, c comm.Communication, peer, address string, localSelf ids.NodeID, localRanks int) (*Connection, error) {
	if err := c.RequestConnection(ctx, peer, address); err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.TransportError, err, "m2n: request connection to %q", peer)
	}
	return handshake(ctx, logger, c, peer, localSelf, localRanks, true)
}

// handshake exchanges the identifying string and rank/
// secondary-rank-count information over the primary channel and records
// the peer as connected.
func handshake(ctx context.Context, logger log.Logger, c comm.Communication, peer string, localSelf ids.NodeID, localRanks int, initiator bool) (*Connection, error) {
	ch, err := c.Primary(peer)
	if err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.ProtocolError, err, "m2n: no primary channel to %q", peer)
	}

	if err := ch.SendString(ctx, identifyingString(localSelf, CurrentVersion)); err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.TransportError, err, "m2n: send identifying string to %q", peer)
	}
	peerIdent, err := ch.ReceiveString(ctx)
	if err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.TransportError, err, "m2n: receive identifying string from %q", peer)
	}
	peerRank, peerVersion, err := parseIdentifyingString(peerIdent)
	if err != nil {
		return nil, err
	}
	if peerVersion.Major != CurrentVersion.Major {
		return nil, couplingerrors.New(couplingerrors.ProtocolError,
			"m2n: peer %q reports incompatible version %d.%d.%d (local %d.%d.%d)",
			peer, peerVersion.Major, peerVersion.Minor, peerVersion.Patch,
			CurrentVersion.Major, CurrentVersion.Minor, CurrentVersion.Patch)
	}

	if err := ch.SendScalar(ctx, float64(localRanks)); err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.TransportError, err, "m2n: send local rank count to %q", peer)
	}
	remoteRanksF, err := ch.ReceiveScalar(ctx)
	if err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.TransportError, err, "m2n: receive rank count from %q", peer)
	}
	remoteRanks := int(remoteRanksF)
	if remoteRanks < 0 {
		return nil, couplingerrors.New(couplingerrors.ProtocolError, "m2n: peer %q reported negative rank count %d", peer, remoteRanks)
	}

	if err := c.PreConnectSecondaryRanks(ctx, peer, remoteRanks); err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.TransportError, err, "m2n: pre-connect secondary ranks of %q", peer)
	}

	if logger != nil {
		logger.Info("connected to peer participant",
			log.String("peer", peer),
			log.Stringer("peerRank", peerRank),
			log.Int("secondaryRanks", remoteRanks),
		)
	}

	return &Connection{
		Peer:           peer,
		PeerRank:       peerRank,
		PeerVersion:    peerVersion,
		SecondaryRanks: remoteRanks,
		Comm:           c,
		initiator:      initiator,
	}, nil
}

// Close runs the ping/pong close exchange over the
// primary channel, then releases every channel to the peer. The initiator
// (the side that dialed) sends "ping" and waits for "pong"; the accepting
// side waits for "ping" and replies "pong", so both sides observe the
// close before either tears down its sockets. A failure of the ping/pong
// itself is logged, not fatal: the peer may already be gone, and the
// underlying CloseConnection below is what actually releases resources.
func (conn *Connection) Close(ctx context.Context) error {
	if ch, err := conn.Comm.Primary(conn.Peer); err == nil {
		pingPongClose(ctx, ch, conn.initiator)
	}
	if err := conn.Comm.CloseConnection(conn.Peer); err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "m2n: close connection to %q", conn.Peer)
	}
	return nil
}

func pingPongClose(ctx context.Context, ch comm.Channel, initiator bool) {
	if initiator {
		if err := ch.SendString(ctx, "ping"); err == nil {
			_, _ = ch.ReceiveString(ctx)
		}
		return
	}
	if _, err := ch.ReceiveString(ctx); err == nil {
		_ = ch.SendString(ctx, "pong")
	}
}
