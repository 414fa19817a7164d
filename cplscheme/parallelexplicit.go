package cplscheme

import (
	"context"

	"github.com/luxfi/log"

	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/coupleddata"
	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/metrics"
)

// ParallelExplicit is the parallel, single-pass scheme variant: both
// participants send their own data and then both receive, rather than
// taking turns.
type ParallelExplicit struct {
	base

	Name, Peer string
	comm       comm.Communication

	// FirstParticipantMethod marks the first-participant time-window-size
	// method for this pair: one side announces a measured window size at
	// window end and the other reads it. Under the fixed method no window
	// size crosses the wire at all.
	FirstParticipantMethod bool
	// SetsTimeWindowSize marks this side as the announcing one; at most
	// one side of a pair sets this.
	SetsTimeWindowSize bool
}

// NewParallelExplicit creates a parallel-explicit scheme for participant
// name, exchanging with peer over c.
func NewParallelExplicit(name, peer string, c comm.Communication, setsTimeWindowSize bool, logger log.Logger, reg *metrics.Registry) *ParallelExplicit {
	return &ParallelExplicit{
		base:               newBase(name, logger, reg),
		Name:               name,
		Peer:               peer,
		comm:               c,
		SetsTimeWindowSize: setsTimeWindowSize,
	}
}

func (p *ParallelExplicit) AddSendData(cd *coupleddata.CouplingData) { p.sendData[cd.Data.Name] = cd }
func (p *ParallelExplicit) AddReceiveData(cd *coupleddata.CouplingData) {
	p.receiveData[cd.Data.Name] = cd
}

var _ Scheme = (*ParallelExplicit)(nil)

func (p *ParallelExplicit) peerChannel() (comm.Channel, error) {
	ch, err := p.comm.Primary(p.Peer)
	if err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.ProtocolError, err, "parallel-explicit: no channel to %q", p.Peer)
	}
	return ch, nil
}

func (p *ParallelExplicit) Initialize(ctx context.Context, startTime float64, startWindow int) error {
	p.time = startTime
	p.timeWindows = startWindow - 1
	if p.timeWindows < 0 {
		p.timeWindows = 0
	}
	if sendsInitializedData(p.sendData) {
		p.RequireAction(ActionInitializeData)
	}
	return nil
}

// ReceiveResultOfFirstAdvance has no distinguished participant in a
// parallel scheme; both sides sample together inside the first Exchange.
func (p *ParallelExplicit) ReceiveResultOfFirstAdvance(ctx context.Context) error { return nil }

func (p *ParallelExplicit) FirstSynchronization(ctx context.Context) error {
	p.resetWindowFlags()
	return p.beginSynchronization()
}

// FirstExchange sends this participant's own data; the peer does the same
// concurrently, so no response is expected yet.
func (p *ParallelExplicit) FirstExchange(ctx context.Context) error {
	ch, err := p.peerChannel()
	if err != nil {
		return err
	}
	return sendAll(ctx, ch, p.sendData)
}

func (p *ParallelExplicit) SecondSynchronization(ctx context.Context) error { return nil }

// SecondExchange receives the peer's data sent during FirstExchange and
// closes out the window.
func (p *ParallelExplicit) SecondExchange(ctx context.Context) error {
	ch, err := p.peerChannel()
	if err != nil {
		return err
	}
	if err := receiveAll(ctx, ch, p.receiveData); err != nil {
		return err
	}
	p.dataReceived = true

	if p.ReachedEndOfTimeWindow() {
		if err := p.exchangeTimeWindowSize(ctx, ch); err != nil {
			return err
		}
		p.completeWindow()
	}
	return nil
}

func (p *ParallelExplicit) exchangeTimeWindowSize(ctx context.Context, ch comm.Channel) error {
	if !p.FirstParticipantMethod {
		return nil
	}
	if p.SetsTimeWindowSize {
		if err := ch.SendScalar(ctx, p.computedTimeWindowPart); err != nil {
			return couplingerrors.Wrap(couplingerrors.TransportError, err, "parallel-explicit: announce time window size")
		}
		return nil
	}
	w, err := ch.ReceiveScalar(ctx)
	if err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "parallel-explicit: receive time window size")
	}
	p.SetTimeWindowSize(w)
	return nil
}

func (p *ParallelExplicit) Finalize(ctx context.Context) error { return nil }

func (p *ParallelExplicit) AnnouncesTimeWindowSize() bool {
	return p.FirstParticipantMethod && p.SetsTimeWindowSize
}

func (p *ParallelExplicit) SendsInitializedData() bool { return sendsInitializedData(p.sendData) }
func (p *ParallelExplicit) WillDataBeExchanged() bool  { return true }
