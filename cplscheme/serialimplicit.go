package cplscheme

import (
	"context"

	"github.com/luxfi/log"

	"github.com/meshcouple/coupler/acceleration"
	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/coupleddata"
	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/metrics"
)

// SerialImplicit adds fixed-point sub-iteration to SerialExplicit's
// exchange ordering: each window is re-exchanged until the configured
// ConvergenceMeasures report convergence (all of them, or a Suffices one
// with no Strict one unmet) or MaxIterations is reached, with
// WriteCheckpoint/ReadCheckpoint actions bracketing each retry.
type SerialImplicit struct {
	base

	First, Second         string
	isFirst               bool
	peer                  string
	firstParticipantSetsW bool

	comm comm.Communication

	ConvergenceMeasures []ConvergenceMeasure
	Acceleration        acceleration.Acceleration
	MaxIterations       int // 0 = unbounded

	// MeasuringParticipant names the side whose ConvergenceMeasures are
	// authoritative; it evaluates them and broadcasts the verdict to its
	// peer, since only one side necessarily has access to the data a
	// measure references. Defaults to First.
	MeasuringParticipant string
}

func (s *SerialImplicit) measuringParticipant() string {
	if s.MeasuringParticipant != "" {
		return s.MeasuringParticipant
	}
	return s.First
}

// NewSerialImplicit creates a serial-implicit scheme for participantName.
func NewSerialImplicit(participantName, first, second string, c comm.Communication, firstParticipantSetsTimeWindowSize bool, logger log.Logger, reg *metrics.Registry) (*SerialImplicit, error) {
	if participantName != first && participantName != second {
		return nil, couplingerrors.New(couplingerrors.ConfigurationError,
			"serial-implicit: participant %q is neither %q nor %q", participantName, first, second)
	}
	s := &SerialImplicit{
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

func (s *SerialImplicit) AddSendData(cd *coupleddata.CouplingData) { s.sendData[cd.Data.Name] = cd }
func (s *SerialImplicit) AddReceiveData(cd *coupleddata.CouplingData) {
	s.receiveData[cd.Data.Name] = cd
}

var _ Scheme = (*SerialImplicit)(nil)

func (s *SerialImplicit) Initialize(ctx context.Context, startTime float64, startWindow int) error {
	s.time = startTime
	s.timeWindows = startWindow - 1
	if s.timeWindows < 0 {
		s.timeWindows = 0
	}
	if sendsInitializedData(s.sendData) {
		s.RequireAction(ActionInitializeData)
	}
	// The solver must snapshot its state before the first window's first
	// attempt; the requirement is queried (and fulfilled) between
	// initialize() and the first advance().
	s.RequireAction(ActionWriteCheckpoint)
	if s.Acceleration != nil && s.ParticipantName == s.measuringParticipant() {
		if err := s.Acceleration.Initialize(s.accelerationData()); err != nil {
			return err
		}
	}
	return nil
}

func (s *SerialImplicit) accelerationData() acceleration.DataMap {
	m := make(acceleration.DataMap, len(s.receiveData))
	for name, cd := range s.receiveData {
		m[name] = cd
	}
	return m
}

func (s *SerialImplicit) peerChannel() (comm.Channel, error) {
	ch, err := s.comm.Primary(s.peer)
	if err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.ProtocolError, err, "serial-implicit: no channel to %q", s.peer)
	}
	return ch, nil
}

// ReceiveResultOfFirstAdvance exchanges only the data explicitly marked
// initialize="true": First sends its share, Second receives it once before
// its own first advance. Neither side touches the wire at all when nothing
// is so marked, since no matching send/receive exists outside this method.
func (s *SerialImplicit) ReceiveResultOfFirstAdvance(ctx context.Context) error {
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

// FirstSynchronization resets per-attempt bookkeeping and verifies the
// previous phase's required actions were serviced.
func (s *SerialImplicit) FirstSynchronization(ctx context.Context) error {
	s.resetWindowFlags()
	return s.beginSynchronization()
}

func (s *SerialImplicit) FirstExchange(ctx context.Context) error {
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

func (s *SerialImplicit) SecondSynchronization(ctx context.Context) error { return nil }

// SecondExchange completes the round trip, measures convergence, and
// either advances the window or requires a checkpoint rewind for another
// attempt at the same window.
func (s *SerialImplicit) SecondExchange(ctx context.Context) error {
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

	converged, err := s.resolveConvergence(ctx, ch)
	if err != nil {
		return err
	}
	if err := s.logIteration(converged, s.Acceleration, residualsOf(s.ConvergenceMeasures)); err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "serial-implicit: write iteration log")
	}
	if !converged {
		if s.Acceleration != nil && s.ParticipantName == s.measuringParticipant() {
			if err := s.Acceleration.PerformAcceleration(s.accelerationData()); err != nil {
				return err
			}
		}
		for _, cd := range s.receiveData {
			cd.StoreIteration()
		}
		s.iterations++
		if s.iterationsGauge != nil {
			s.iterationsGauge.Set(float64(s.iterations))
		}
		s.RequireAction(ActionReadCheckpoint)
		return nil
	}
	s.onConverged()
	if s.ReachedEndOfTimeWindow() {
		if err := s.announceTimeWindowSize(ctx, ch); err != nil {
			return err
		}
		s.completeWindow()
		// A fresh window needs a fresh snapshot.
		if s.IsCouplingOngoing() {
			s.RequireAction(ActionWriteCheckpoint)
		}
	}
	return nil
}

// resolveConvergence has the measuring participant evaluate its
// ConvergenceMeasures and broadcast the verdict over ch so both sides of
// the window take the same branch.
func (s *SerialImplicit) resolveConvergence(ctx context.Context, ch comm.Channel) (bool, error) {
	if s.ParticipantName == s.measuringParticipant() {
		converged := s.evaluateConvergence()
		if !converged && s.MaxIterations > 0 && s.iterations+1 >= s.MaxIterations {
			// At the iteration cap a window with a
			// Strict measure still unmet is fatal, anything else is treated
			// as converged. The forcing happens before the broadcast so both
			// sides take the same branch.
			if anyStrictMeasureUnconverged(s.ConvergenceMeasures) {
				return false, couplingerrors.New(couplingerrors.UserError,
					"serial-implicit: exceeded max iterations (%d) without convergence on a strict measure", s.MaxIterations)
			}
			converged = true
		}
		if err := ch.SendBool(ctx, converged); err != nil {
			return false, couplingerrors.Wrap(couplingerrors.TransportError, err, "serial-implicit: broadcast convergence verdict")
		}
		return converged, nil
	}
	converged, err := ch.ReceiveBool(ctx)
	if err != nil {
		return false, couplingerrors.Wrap(couplingerrors.TransportError, err, "serial-implicit: receive convergence verdict")
	}
	return converged, nil
}

// evaluateConvergence reports whether the window is done (see
// evaluateConvergenceMeasures for the overall rule).
func (s *SerialImplicit) evaluateConvergence() bool {
	return evaluateConvergenceMeasures(s.ConvergenceMeasures, s.receiveData)
}

func (s *SerialImplicit) onConverged() {
	for _, cd := range s.sendData {
		cd.MoveToNextWindow()
		cd.StoreExtrapolationData()
	}
	for _, cd := range s.receiveData {
		cd.MoveToNextWindow()
		cd.StoreExtrapolationData()
	}
	if s.Acceleration != nil && s.ParticipantName == s.measuringParticipant() {
		s.Acceleration.IterationsConverged(s.accelerationData())
	}
	s.totalIterations += s.iterations + 1
	if s.totalIterGauge != nil {
		s.totalIterGauge.Add(float64(s.iterations + 1))
	}
	s.iterations = 0
	if s.iterationsGauge != nil {
		s.iterationsGauge.Set(0)
	}
}

func (s *SerialImplicit) announceTimeWindowSize(ctx context.Context, ch comm.Channel) error {
	if !s.firstParticipantSetsW {
		return nil
	}
	if s.isFirst {
		if err := ch.SendScalar(ctx, s.computedTimeWindowPart); err != nil {
			return couplingerrors.Wrap(couplingerrors.TransportError, err, "serial-implicit: announce time window size")
		}
		return nil
	}
	w, err := ch.ReceiveScalar(ctx)
	if err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "serial-implicit: receive time window size")
	}
	s.SetTimeWindowSize(w)
	return nil
}

func (s *SerialImplicit) Finalize(ctx context.Context) error { return nil }

func (s *SerialImplicit) AnnouncesTimeWindowSize() bool {
	return s.firstParticipantSetsW && s.isFirst
}

func (s *SerialImplicit) SendsInitializedData() bool { return sendsInitializedData(s.sendData) }
func (s *SerialImplicit) WillDataBeExchanged() bool  { return true }
