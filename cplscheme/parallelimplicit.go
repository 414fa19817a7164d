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

// ParallelImplicit adds fixed-point sub-iteration to ParallelExplicit:
// both sides send and receive every iteration, then the measuring
// participant evaluates convergence and broadcasts the verdict, mirroring
// SerialImplicit's checkpoint/acceleration loop.
type ParallelImplicit struct {
	base

	Name, Peer string
	comm       comm.Communication

	// FirstParticipantMethod and SetsTimeWindowSize mirror
	// ParallelExplicit's window-size announcement flags.
	FirstParticipantMethod bool
	SetsTimeWindowSize     bool

	ConvergenceMeasures []ConvergenceMeasure
	Acceleration        acceleration.Acceleration
	MaxIterations       int

	// MeasuringParticipant names the side whose ConvergenceMeasures are
	// authoritative; it evaluates them and broadcasts the verdict while
	// the peer receives it. Both sides of a pair must agree on it, so the
	// constructor's caller sets it from shared configuration. Defaults to
	// this participant's own name.
	MeasuringParticipant string
}

// NewParallelImplicit creates a parallel-implicit scheme for participant
// name, exchanging with peer over c.
func NewParallelImplicit(name, peer string, c comm.Communication, setsTimeWindowSize bool, logger log.Logger, reg *metrics.Registry) *ParallelImplicit {
	return &ParallelImplicit{
		base:               newBase(name, logger, reg),
		Name:               name,
		Peer:               peer,
		comm:               c,
		SetsTimeWindowSize: setsTimeWindowSize,
	}
}

func (p *ParallelImplicit) measuringParticipant() string {
	if p.MeasuringParticipant != "" {
		return p.MeasuringParticipant
	}
	return p.Name
}

func (p *ParallelImplicit) AddSendData(cd *coupleddata.CouplingData) { p.sendData[cd.Data.Name] = cd }
func (p *ParallelImplicit) AddReceiveData(cd *coupleddata.CouplingData) {
	p.receiveData[cd.Data.Name] = cd
}

var _ Scheme = (*ParallelImplicit)(nil)

// accelerationData aggregates send and receive data: the accelerator runs
// on the measuring participant only, treating its outgoing predictor and
// incoming iterate as one concatenated state vector.
func (p *ParallelImplicit) accelerationData() acceleration.DataMap {
	m := make(acceleration.DataMap, len(p.sendData)+len(p.receiveData))
	for name, cd := range p.sendData {
		m[name] = cd
	}
	for name, cd := range p.receiveData {
		m[name] = cd
	}
	return m
}

func (p *ParallelImplicit) peerChannel() (comm.Channel, error) {
	ch, err := p.comm.Primary(p.Peer)
	if err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.ProtocolError, err, "parallel-implicit: no channel to %q", p.Peer)
	}
	return ch, nil
}

func (p *ParallelImplicit) Initialize(ctx context.Context, startTime float64, startWindow int) error {
	p.time = startTime
	p.timeWindows = startWindow - 1
	if p.timeWindows < 0 {
		p.timeWindows = 0
	}
	if sendsInitializedData(p.sendData) {
		p.RequireAction(ActionInitializeData)
	}
	// The solver must snapshot its state before the first window's first
	// attempt; the requirement is queried (and fulfilled) between
	// initialize() and the first advance().
	p.RequireAction(ActionWriteCheckpoint)
	if p.Acceleration != nil && p.Name == p.measuringParticipant() {
		if err := p.Acceleration.Initialize(p.accelerationData()); err != nil {
			return err
		}
	}
	return nil
}

func (p *ParallelImplicit) ReceiveResultOfFirstAdvance(ctx context.Context) error { return nil }

func (p *ParallelImplicit) FirstSynchronization(ctx context.Context) error {
	p.resetWindowFlags()
	return p.beginSynchronization()
}

func (p *ParallelImplicit) FirstExchange(ctx context.Context) error {
	ch, err := p.peerChannel()
	if err != nil {
		return err
	}
	return sendAll(ctx, ch, p.sendData)
}

func (p *ParallelImplicit) SecondSynchronization(ctx context.Context) error { return nil }

func (p *ParallelImplicit) SecondExchange(ctx context.Context) error {
	ch, err := p.peerChannel()
	if err != nil {
		return err
	}
	if err := receiveAll(ctx, ch, p.receiveData); err != nil {
		return err
	}
	p.dataReceived = true

	converged, err := p.resolveConvergence(ctx, ch)
	if err != nil {
		return err
	}
	if err := p.logIteration(converged, p.Acceleration, residualsOf(p.ConvergenceMeasures)); err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "parallel-implicit: write iteration log")
	}
	if !converged {
		if p.Acceleration != nil && p.Name == p.measuringParticipant() {
			if err := p.Acceleration.PerformAcceleration(p.accelerationData()); err != nil {
				return err
			}
		}
		for _, cd := range p.accelerationData() {
			cd.StoreIteration()
		}
		p.iterations++
		if p.iterationsGauge != nil {
			p.iterationsGauge.Set(float64(p.iterations))
		}
		p.RequireAction(ActionReadCheckpoint)
		return nil
	}
	p.onConverged()
	if p.ReachedEndOfTimeWindow() {
		if err := p.exchangeTimeWindowSize(ctx, ch); err != nil {
			return err
		}
		p.completeWindow()
		// A fresh window needs a fresh snapshot.
		if p.IsCouplingOngoing() {
			p.RequireAction(ActionWriteCheckpoint)
		}
	}
	return nil
}

func (p *ParallelImplicit) resolveConvergence(ctx context.Context, ch comm.Channel) (bool, error) {
	if p.Name == p.measuringParticipant() {
		converged := p.evaluateConvergence()
		if !converged && p.MaxIterations > 0 && p.iterations+1 >= p.MaxIterations {
			// At the iteration cap a window with a
			// Strict measure still unmet is fatal, anything else is treated
			// as converged. The forcing happens before the broadcast so both
			// sides take the same branch.
			if anyStrictMeasureUnconverged(p.ConvergenceMeasures) {
				return false, couplingerrors.New(couplingerrors.UserError,
					"parallel-implicit: exceeded max iterations (%d) without convergence on a strict measure", p.MaxIterations)
			}
			converged = true
		}
		if err := ch.SendBool(ctx, converged); err != nil {
			return false, couplingerrors.Wrap(couplingerrors.TransportError, err, "parallel-implicit: broadcast convergence verdict")
		}
		return converged, nil
	}
	converged, err := ch.ReceiveBool(ctx)
	if err != nil {
		return false, couplingerrors.Wrap(couplingerrors.TransportError, err, "parallel-implicit: receive convergence verdict")
	}
	return converged, nil
}

// evaluateConvergence reports whether the window is done (see
// evaluateConvergenceMeasures for the overall rule).
func (p *ParallelImplicit) evaluateConvergence() bool {
	return evaluateConvergenceMeasures(p.ConvergenceMeasures, p.receiveData)
}

func (p *ParallelImplicit) onConverged() {
	for _, cd := range p.sendData {
		cd.MoveToNextWindow()
		cd.StoreExtrapolationData()
	}
	for _, cd := range p.receiveData {
		cd.MoveToNextWindow()
		cd.StoreExtrapolationData()
	}
	if p.Acceleration != nil && p.Name == p.measuringParticipant() {
		p.Acceleration.IterationsConverged(p.accelerationData())
	}
	p.totalIterations += p.iterations + 1
	if p.totalIterGauge != nil {
		p.totalIterGauge.Add(float64(p.iterations + 1))
	}
	p.iterations = 0
	if p.iterationsGauge != nil {
		p.iterationsGauge.Set(0)
	}
}

func (p *ParallelImplicit) exchangeTimeWindowSize(ctx context.Context, ch comm.Channel) error {
	if !p.FirstParticipantMethod {
		return nil
	}
	if p.SetsTimeWindowSize {
		if err := ch.SendScalar(ctx, p.computedTimeWindowPart); err != nil {
			return couplingerrors.Wrap(couplingerrors.TransportError, err, "parallel-implicit: announce time window size")
		}
		return nil
	}
	w, err := ch.ReceiveScalar(ctx)
	if err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "parallel-implicit: receive time window size")
	}
	p.SetTimeWindowSize(w)
	return nil
}

func (p *ParallelImplicit) Finalize(ctx context.Context) error { return nil }

func (p *ParallelImplicit) AnnouncesTimeWindowSize() bool {
	return p.FirstParticipantMethod && p.SetsTimeWindowSize
}

func (p *ParallelImplicit) SendsInitializedData() bool { return sendsInitializedData(p.sendData) }
func (p *ParallelImplicit) WillDataBeExchanged() bool  { return true }
