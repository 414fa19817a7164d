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

// PeerLink is one spoke of a MultiCoupling: the channel to one peer
// participant plus the data this central participant sends to and
// receives from it.
type PeerLink struct {
	Name string
	Comm comm.Communication

	sendData    map[string]*coupleddata.CouplingData
	receiveData map[string]*coupleddata.CouplingData
}

// NewPeerLink creates an empty link to peer over c.
func NewPeerLink(peer string, c comm.Communication) *PeerLink {
	return &PeerLink{
		Name:        peer,
		Comm:        c,
		sendData:    make(map[string]*coupleddata.CouplingData),
		receiveData: make(map[string]*coupleddata.CouplingData),
	}
}

// AddSendData registers data this central participant sends to this peer.
func (l *PeerLink) AddSendData(cd *coupleddata.CouplingData) { l.sendData[cd.Data.Name] = cd }

// AddReceiveData registers data this central participant receives from
// this peer.
func (l *PeerLink) AddReceiveData(cd *coupleddata.CouplingData) { l.receiveData[cd.Data.Name] = cd }

func (l *PeerLink) channel() (comm.Channel, error) {
	ch, err := l.Comm.Primary(l.Name)
	if err != nil {
		return nil, couplingerrors.Wrap(couplingerrors.ProtocolError, err, "multi-coupling: no channel to %q", l.Name)
	}
	return ch, nil
}

// MultiCoupling is the one-central-participant, N-peer implicit scheme:
// the central participant exchanges with every peer in the declared
// Peers order, then applies the same
// implicit-step algorithm as ParallelImplicit across the aggregated data
// of all peers combined, so a single convergence verdict and a single
// acceleration pass cover the whole star topology at once.
type MultiCoupling struct {
	base

	Peers []*PeerLink

	ConvergenceMeasures []ConvergenceMeasure
	Acceleration        acceleration.Acceleration
	MaxIterations       int
}

// NewMultiCoupling creates a MultiCoupling for the central participant
// named name, with Peers populated by the caller via NewPeerLink/
// AddSendData/AddReceiveData before Initialize is called.
func NewMultiCoupling(name string, logger log.Logger, reg *metrics.Registry) *MultiCoupling {
	return &MultiCoupling{base: newBase(name, logger, reg)}
}

var _ Scheme = (*MultiCoupling)(nil)

// aggregatedReceiveData flattens every peer's receiveData into one map for
// convergence measurement and acceleration. Unlike ParallelImplicit's
// accelerationData, which also holds send data, it holds the receive data
// of all spokes only. Peers must use
// disjoint data names; a collision is a configuration error caught at
// Initialize.
func (m *MultiCoupling) aggregatedReceiveData() map[string]*coupleddata.CouplingData {
	agg := make(map[string]*coupleddata.CouplingData)
	for _, p := range m.Peers {
		for name, cd := range p.receiveData {
			agg[name] = cd
		}
	}
	return agg
}

func (m *MultiCoupling) accelerationData() acceleration.DataMap {
	agg := m.aggregatedReceiveData()
	out := make(acceleration.DataMap, len(agg))
	for name, cd := range agg {
		out[name] = cd
	}
	return out
}

func (m *MultiCoupling) Initialize(ctx context.Context, startTime float64, startWindow int) error {
	m.time = startTime
	m.timeWindows = startWindow - 1
	if m.timeWindows < 0 {
		m.timeWindows = 0
	}
	seen := make(map[string]string)
	for _, p := range m.Peers {
		for name := range p.receiveData {
			if owner, ok := seen[name]; ok {
				return couplingerrors.New(couplingerrors.ConfigurationError,
					"multi-coupling: data %q received from both %q and %q", name, owner, p.Name)
			}
			seen[name] = p.Name
		}
		if sendsInitializedData(p.sendData) {
			m.RequireAction(ActionInitializeData)
		}
	}
	// The solver must snapshot its state before the first window's first
	// attempt; the requirement is queried (and fulfilled) between
	// initialize() and the first advance().
	m.RequireAction(ActionWriteCheckpoint)
	if m.Acceleration != nil {
		if err := m.Acceleration.Initialize(m.accelerationData()); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiCoupling) ReceiveResultOfFirstAdvance(ctx context.Context) error { return nil }

func (m *MultiCoupling) FirstSynchronization(ctx context.Context) error {
	m.resetWindowFlags()
	return m.beginSynchronization()
}

// FirstExchange sends this participant's data to every peer, in the fixed
// order Peers declares.
func (m *MultiCoupling) FirstExchange(ctx context.Context) error {
	for _, p := range m.Peers {
		ch, err := p.channel()
		if err != nil {
			return err
		}
		if err := sendAll(ctx, ch, p.sendData); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiCoupling) SecondSynchronization(ctx context.Context) error { return nil }

// SecondExchange receives from every peer in order, then runs one
// convergence measurement and one acceleration pass across the aggregated
// data of all peers, the implicit-step procedure generalized to N peers.
func (m *MultiCoupling) SecondExchange(ctx context.Context) error {
	for _, p := range m.Peers {
		ch, err := p.channel()
		if err != nil {
			return err
		}
		if err := receiveAll(ctx, ch, p.receiveData); err != nil {
			return err
		}
	}
	m.dataReceived = true

	converged := m.evaluateConvergence()
	if !converged && m.MaxIterations > 0 && m.iterations+1 >= m.MaxIterations {
		// At the iteration cap a window with a Strict
		// measure still unmet is fatal, anything else is treated as
		// converged. The forcing happens before the broadcast so every
		// spoke takes the same branch as the hub.
		if anyStrictMeasureUnconverged(m.ConvergenceMeasures) {
			return couplingerrors.New(couplingerrors.UserError,
				"multi-coupling: exceeded max iterations (%d) without convergence on a strict measure", m.MaxIterations)
		}
		converged = true
	}
	for _, p := range m.Peers {
		ch, err := p.channel()
		if err != nil {
			return err
		}
		if err := ch.SendBool(ctx, converged); err != nil {
			return couplingerrors.Wrap(couplingerrors.TransportError, err, "multi-coupling: broadcast convergence verdict to %q", p.Name)
		}
	}

	if err := m.logIteration(converged, m.Acceleration, residualsOf(m.ConvergenceMeasures)); err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "multi-coupling: write iteration log")
	}

	if !converged {
		if m.Acceleration != nil {
			if err := m.Acceleration.PerformAcceleration(m.accelerationData()); err != nil {
				return err
			}
		}
		for _, cd := range m.aggregatedReceiveData() {
			cd.StoreIteration()
		}
		m.iterations++
		if m.iterationsGauge != nil {
			m.iterationsGauge.Set(float64(m.iterations))
		}
		m.RequireAction(ActionReadCheckpoint)
		return nil
	}
	m.onConverged()
	if m.ReachedEndOfTimeWindow() {
		m.completeWindow()
		// A fresh window needs a fresh snapshot.
		if m.IsCouplingOngoing() {
			m.RequireAction(ActionWriteCheckpoint)
		}
	}
	return nil
}

// evaluateConvergence reports whether the window is done (see
// evaluateConvergenceMeasures for the overall rule).
func (m *MultiCoupling) evaluateConvergence() bool {
	return evaluateConvergenceMeasures(m.ConvergenceMeasures, m.aggregatedReceiveData())
}

func (m *MultiCoupling) onConverged() {
	for _, p := range m.Peers {
		for _, cd := range p.sendData {
			cd.MoveToNextWindow()
			cd.StoreExtrapolationData()
		}
		for _, cd := range p.receiveData {
			cd.MoveToNextWindow()
			cd.StoreExtrapolationData()
		}
	}
	if m.Acceleration != nil {
		m.Acceleration.IterationsConverged(m.accelerationData())
	}
	m.totalIterations += m.iterations + 1
	if m.totalIterGauge != nil {
		m.totalIterGauge.Add(float64(m.iterations + 1))
	}
	m.iterations = 0
	if m.iterationsGauge != nil {
		m.iterationsGauge.Set(0)
	}
}

func (m *MultiCoupling) Finalize(ctx context.Context) error { return nil }

// AnnouncesTimeWindowSize is always false: multi coupling only supports a
// fixed window size.
func (m *MultiCoupling) AnnouncesTimeWindowSize() bool { return false }

func (m *MultiCoupling) SendsInitializedData() bool {
	for _, p := range m.Peers {
		if sendsInitializedData(p.sendData) {
			return true
		}
	}
	return false
}

func (m *MultiCoupling) WillDataBeExchanged() bool { return true }
