package cplscheme

import (
	"context"

	"github.com/luxfi/log"

	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/coupleddata"
	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/metrics"
)

// SerialExplicit is the serial, single-pass scheme variant: First writes,
// sends, Second reads; Second computes and sends back, First reads.
type SerialExplicit struct {
	base

	First, Second          string
	isFirst                bool
	peer                   string
	firstParticipantSetsW  bool

	comm comm.Communication
}

// NewSerialExplicit creates a serial-explicit scheme for participantName,
// which must be either first or second.
func NewSerialExplicit(participantName, first, second string, c comm.Communication, firstParticipantSetsTimeWindowSize bool, logger log.Logger, reg *metrics.Registry) (*SerialExplicit, error) {
	if participantName != first && participantName != second {
		return nil, couplingerrors.New(couplingerrors.ConfigurationError,
			"serial-explicit: participant %q is neither %q nor %q", participantName, first, second)
	}
	s := &SerialExplicit{
		base:                  newBase(participantName, logger, reg),
		First:                 first,
		Second:                second,
		isFirst:               participantName == first,
		firstParticipantSetsW: firstParticipantSetsTimeWindowSize,
		comm:                  c,
	}
	if s.isFirst {
		s.peer = second
	} else {
		s.peer = first
	}
	return s, nil
}

// AddSendData registers a CouplingData this participant writes.
func (s *SerialExplicit) AddSendData(cd *coupleddata.CouplingData) { s.sendData[cd.Data.Name] = cd }

// AddReceiveData registers a CouplingData this participant reads.
func (s *SerialExplicit) AddReceiveData(cd *coupleddata.CouplingData) {
	s.receiveData[cd.Data.Name] = cd
}

var _ Scheme = (*SerialExplicit)(nil)

func (s *SerialExplicit) Initialize(ctx context.Context, startTime float64, startWindow int) error {
	s.time = startTime
	s.timeWindows = startWindow - 1
	if s.timeWindows < 0 {
		s.timeWindows = 0
	}
	if sendsInitializedData(s.sendData) {
		s.RequireAction(ActionInitializeData)
	}
	return nil
}

// ReceiveResultOfFirstAdvance exchanges only the data explicitly marked
// initialize="true": First sends its share, Second receives it once before
// its own first advance. Neither side touches the wire at all when nothing
// is so marked, since no matching send/receive exists outside this method.
func (s *SerialExplicit) ReceiveResultOfFirstAdvance(ctx context.Context) error {
	if s.isFirst {
		toSend := initializedSubset(s.sendData)
		if len(toSend) == 0 {
			return nil
		}
		ch, err := s.peerChannel()
		if err != nil {
			return err
		}
		return sendAll(ctx, ch, toSend)
	}
	toReceive := initializedSubset(s.receiveData)
	if len(toReceive) == 0 {
		return nil
	}
	ch, err := s.peerChannel()
	if err != nil {
		return err
	}
	if err := receiveAll(ctx, ch, toReceive); err != nil {
		return err
	}
	s.dataReceived = true
	return nil
}

func (s *SerialExplicit) peerChannel() (comm.Channel, error) {
	ch, err := s.comm.Primary(s.peer)
	if err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.ProtocolError, err, "serial-explicit: no channel to %q", s.peer)
	}
	return ch, nil
}

func (s *SerialExplicit) FirstSynchronization(ctx context.Context) error {
	s.resetWindowFlags()
	return s.beginSynchronization()
}

// FirstExchange runs First's write-then-send and Second's receive.
func (s *SerialExplicit) FirstExchange(ctx context.Context) error {
	ch, err := s.peerChannel()
	if err != nil {
		return err
	}
	if s.isFirst {
		return sendAll(ctx, ch, s.sendData)
	}
	if err := receiveAll(ctx, ch, s.receiveData); err != nil {
		return err
	}
	s.dataReceived = true
	return nil
}

func (s *SerialExplicit) SecondSynchronization(ctx context.Context) error { return nil }

// SecondExchange runs Second's send-back and First's receive, then closes
// out the window (explicit schemes never iterate).
func (s *SerialExplicit) SecondExchange(ctx context.Context) error {
	ch, err := s.peerChannel()
	if err != nil {
		return err
	}
	if s.isFirst {
		if err := receiveAll(ctx, ch, s.receiveData); err != nil {
			return err
		}
		s.dataReceived = true
	} else {
		if err := sendAll(ctx, ch, s.sendData); err != nil {
			return err
		}
	}

	if s.ReachedEndOfTimeWindow() {
		if err := s.announceTimeWindowSize(ctx, ch); err != nil {
			return err
		}
		s.completeWindow()
	}
	return nil
}

// announceTimeWindowSize implements the first-participant-sets-timestep
// method's wire exchange: one double on the primary channel at window end.
func (s *SerialExplicit) announceTimeWindowSize(ctx context.Context, ch comm.Channel) error {
	if !s.firstParticipantSetsW {
		return nil
	}
	if s.isFirst {
		if err := ch.SendScalar(ctx, s.computedTimeWindowPart); err != nil {
			return couplingerrors.Wrap(couplingerrors.TransportError, err, "serial-explicit: announce time window size")
		}
		return nil
	}
	w, err := ch.ReceiveScalar(ctx)
	if err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "serial-explicit: receive time window size")
	}
	s.SetTimeWindowSize(w)
	return nil
}

func (s *SerialExplicit) Finalize(ctx context.Context) error { return nil }

func (s *SerialExplicit) AnnouncesTimeWindowSize() bool {
	return s.firstParticipantSetsW && s.isFirst
}

func (s *SerialExplicit) SendsInitializedData() bool  { return sendsInitializedData(s.sendData) }
func (s *SerialExplicit) WillDataBeExchanged() bool   { return true }
