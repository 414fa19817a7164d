package cplscheme

import (
	"context"
	"math"
	"sort"

	"github.com/luxfi/log"

	"github.com/meshcouple/coupler/acceleration"
	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/coupleddata"
	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/metrics"
)

// Exchange declares one directed data exchange between two participants
// across a mesh, as configured by an <exchange> element.
type Exchange struct {
	DataName   string
	MeshName   string
	From, To   string
	Initialize bool
}

// base holds the bookkeeping shared by every scheme variant: the time/
// window model, required-action tracking, and the send/receive data maps.
type base struct {
	ParticipantName string
	Logger          log.Logger
	Metrics         *metrics.Registry

	time        float64
	maxTime     float64
	hasMaxTime  bool
	timeWindows int

	timeWindowSize    float64
	hasTimeWindowSize bool
	// firstParticipantSets marks the first-participant time-window-size
	// method: this side announces W at the end of its first window rather
	// than reading it from configuration.
	firstParticipantSets bool

	computedTimeWindowPart float64
	validDigits            int

	windowComplete bool
	dataReceived   bool

	sendData    map[string]*coupleddata.CouplingData
	receiveData map[string]*coupleddata.CouplingData

	requiredActions  map[Action]bool
	fulfilledActions map[Action]bool

	iterations      int
	totalIterations int
	iterationsGauge metrics.Gauge
	totalIterGauge  metrics.Counter

	iterationLog   *metrics.IterationLog
	convergenceLog *metrics.IterationLog
}

// SetLogs attaches the iterations/convergence log writers. Pass
// nil for either to skip it (e.g. on a non-primary rank).
func (b *base) SetLogs(iterationLog, convergenceLog *metrics.IterationLog) {
	b.iterationLog = iterationLog
	b.convergenceLog = convergenceLog
}

// logIteration appends one row to both attached log files for the
// sub-iteration attempt that just finished: acc's QN/deleted/dropped column
// counts feed the iterations log's optional columns (zero when no
// least-squares acceleration is configured), residuals feeds the
// convergence log's one Res<abbrev>(dataName) column per logging measure.
func (b *base) logIteration(converged bool, acc acceleration.Acceleration, residuals []float64) error {
	iteration := b.iterations + 1
	qnCols, deletedQN, droppedQN := 0, 0, 0
	if acc != nil {
		qnCols, deletedQN, droppedQN = acc.GetLSSystemCols(), acc.GetDeletedColumns(), acc.GetDroppedColumns()
	}
	if err := b.iterationLog.WriteRow(b.timeWindows+1, b.totalIterations+iteration, iteration, converged,
		float64(qnCols), float64(deletedQN), float64(droppedQN)); err != nil {
		return err
	}
	return b.convergenceLog.WriteRow(b.timeWindows+1, b.totalIterations+iteration, iteration, converged, residuals...)
}

// residualsOf collects each configured measure's last residual norm, in
// declaration order, for the convergence log row. A measure not evaluated
// in this iteration (no previous iteration to compare against) reports the
// residual of its last evaluation, or 0 if it has never been evaluated.
func residualsOf(measures []ConvergenceMeasure) []float64 {
	out := make([]float64, len(measures))
	for i := range measures {
		out[i] = measures[i].LastResidual()
	}
	return out
}

// ConvergenceLogColumns names the convergence log's Res<abbrev>(dataName)
// columns, one per configured measure, in declaration order.
func ConvergenceLogColumns(measures []ConvergenceMeasure) []string {
	cols := make([]string, len(measures))
	for i := range measures {
		cols[i] = "Res" + measures[i].Abbrev() + "(" + measures[i].DataName + ")"
	}
	return cols
}

func newBase(participantName string, logger log.Logger, reg *metrics.Registry) base {
	b := base{
		ParticipantName:  participantName,
		Logger:           logger,
		Metrics:          reg,
		validDigits:      10,
		sendData:         make(map[string]*coupleddata.CouplingData),
		receiveData:      make(map[string]*coupleddata.CouplingData),
		requiredActions:  make(map[Action]bool),
		fulfilledActions: make(map[Action]bool),
	}
	if reg != nil {
		b.iterationsGauge = reg.NewGauge(metricName(participantName, "iterations"), "current implicit iteration count")
		b.totalIterGauge = reg.NewCounter(metricName(participantName, "iterations_total"), "cumulative implicit iteration count")
	}
	return b
}

func metricName(participant, suffix string) string {
	return "precice_" + participant + "_" + suffix
}

func (b *base) epsilon() float64 {
	return math.Pow(10, -float64(b.validDigits))
}

// AddComputedTime accumulates dt into the current window's computed part,
// rejecting an overrun beyond epsilon.
func (b *base) AddComputedTime(dt float64) error {
	if dt <= 0 {
		return couplingerrors.New(couplingerrors.UserError, "addComputedTime: dt must be > 0, got %v", dt)
	}
	b.computedTimeWindowPart += dt
	if b.hasTimeWindowSize && b.computedTimeWindowPart > b.timeWindowSize+b.epsilon() {
		return couplingerrors.New(couplingerrors.UserError,
			"addComputedTime: accumulated time %v exceeds time window size %v", b.computedTimeWindowPart, b.timeWindowSize)
	}
	return nil
}

// ReachedEndOfTimeWindow reports whether the window's computed part equals
// its size within epsilon, or there is no fixed window size at all.
func (b *base) ReachedEndOfTimeWindow() bool {
	if !b.hasTimeWindowSize {
		return true
	}
	return math.Abs(b.timeWindowSize-b.computedTimeWindowPart) <= b.epsilon()
}

// SetTimeWindowSize fixes W, used by configuration-time setup or by the
// first-participant-announces-W path.
func (b *base) SetTimeWindowSize(w float64) {
	b.timeWindowSize = w
	b.hasTimeWindowSize = true
}

// SetMaxTime fixes the simulation's total duration, after which
// IsCouplingOngoing reports false.
func (b *base) SetMaxTime(t float64) {
	b.maxTime = t
	b.hasMaxTime = true
}

func (b *base) HasTimeWindowSize() bool    { return b.hasTimeWindowSize }
func (b *base) GetTimeWindowSize() float64 { return b.timeWindowSize }
func (b *base) GetTime() float64           { return b.time }
func (b *base) GetTimeWindows() int        { return b.timeWindows }

func (b *base) GetThisTimeWindowRemainder() float64 {
	if !b.hasTimeWindowSize {
		return 0
	}
	r := b.timeWindowSize - b.computedTimeWindowPart
	if r < 0 {
		return 0
	}
	return r
}

func (b *base) GetNextTimestepMaxLength() float64 {
	if b.hasTimeWindowSize {
		r := b.timeWindowSize - b.computedTimeWindowPart
		if r < 0 {
			r = 0
		}
		return r
	}
	if b.hasMaxTime {
		r := b.maxTime - b.time
		if r < 0 {
			r = 0
		}
		return r
	}
	return math.Inf(1)
}

func (b *base) IsCouplingOngoing() bool {
	if !b.hasMaxTime {
		return true
	}
	return b.time < b.maxTime-b.epsilon()
}

func (b *base) IsTimeWindowComplete() bool { return b.windowComplete }
func (b *base) HasDataBeenReceived() bool  { return b.dataReceived }

// completeWindow advances the window counter and clock, resetting the
// per-window computed-time accumulator.
func (b *base) completeWindow() {
	b.time += b.computedTimeWindowPart
	b.timeWindows++
	b.computedTimeWindowPart = 0
	b.windowComplete = true
}

func (b *base) resetWindowFlags() {
	b.windowComplete = false
	b.dataReceived = false
}

// RequireAction marks a an obligation the solver must fulfil before the
// phase ends.
func (b *base) RequireAction(a Action) { b.requiredActions[a] = true }

// RequiresAction reports whether a is outstanding, marking it fulfilled as
// a side effect: the query and the fulfillment are the same call.
func (b *base) RequiresAction(a Action) bool {
	if !b.requiredActions[a] {
		return false
	}
	b.fulfilledActions[a] = true
	return true
}

// checkActionsFulfilled returns a fatal UserError if any required action
// from the previous phase was never queried (and thereby fulfilled).
func (b *base) checkActionsFulfilled() error {
	for a, required := range b.requiredActions {
		if required && !b.fulfilledActions[a] {
			return couplingerrors.New(couplingerrors.UserError, "unfulfilled coupling-scheme action: %s", a)
		}
	}
	return nil
}

// beginSynchronization checks that every action required by the previous
// FirstSynchronization/SecondExchange round was serviced by the driver
// (the Solver Interface queries requires*Checkpoint between scheme calls,
// each query fulfilling the action), then clears the action
// bookkeeping for the new round. It must run at the *start* of
// FirstSynchronization rather than at the end of SecondExchange: a
// ReadCheckpoint action raised by SecondExchange itself has to survive
// until the driver has had a chance to query it, not be validated in the
// same call that raised it.
func (b *base) beginSynchronization() error {
	if err := b.checkActionsFulfilled(); err != nil {
		return err
	}
	b.resetActions()
	return nil
}

// resetActions clears action state at the start of a new phase.
func (b *base) resetActions() {
	b.requiredActions = make(map[Action]bool)
	b.fulfilledActions = make(map[Action]bool)
}

func sortedDataNames(data map[string]*coupleddata.CouplingData) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sendAll writes every entry of data to ch in name order.
func sendAll(ctx context.Context, ch comm.Channel, data map[string]*coupleddata.CouplingData) error {
	for _, name := range sortedDataNames(data) {
		cd := data[name]
		if err := ch.SendBuffer(ctx, comm.KindMeshData, cd.Values()); err != nil {
			return couplingerrors.Wrap(couplingerrors.TransportError, err, "send data %q", name)
		}
	}
	return nil
}

// receiveAll reads every entry of data from ch in name order, overwriting
// each CouplingData's buffer in place.
func receiveAll(ctx context.Context, ch comm.Channel, data map[string]*coupleddata.CouplingData) error {
	for _, name := range sortedDataNames(data) {
		cd := data[name]
		values, err := ch.ReceiveBuffer(ctx, comm.KindMeshData, len(cd.Values()))
		if err != nil {
			return couplingerrors.Wrap(couplingerrors.TransportError, err, "receive data %q", name)
		}
		if err := cd.Data.SetValues(values); err != nil {
			return err
		}
	}
	return nil
}

// sendsInitializedData reports whether any send-data entry requires an
// initial exchange during Solver Interface initialize().
func sendsInitializedData(data map[string]*coupleddata.CouplingData) bool {
	for _, cd := range data {
		if cd.RequiresInitialization {
			return true
		}
	}
	return false
}

// initializedSubset returns the entries of data flagged RequiresInitialization,
// the ones actually exchanged during ReceiveResultOfFirstAdvance.
func initializedSubset(data map[string]*coupleddata.CouplingData) map[string]*coupleddata.CouplingData {
	out := make(map[string]*coupleddata.CouplingData)
	for name, cd := range data {
		if cd.RequiresInitialization {
			out[name] = cd
		}
	}
	return out
}

// evaluateConvergenceMeasures implements the overall convergence rule of
// the implicit step: every measure converges, OR some Suffices measure
// converges and no Strict measure is left unmet. dataSource resolves each
// measure's CouplingData by name (a scheme's own receiveData, or the
// aggregated map MultiCoupling builds across its peers). Zero measures
// converges immediately.
func evaluateConvergenceMeasures(measures []ConvergenceMeasure, dataSource map[string]*coupleddata.CouplingData) bool {
	if len(measures) == 0 {
		return true
	}
	allConverged := true
	anySuffices := false
	anyStrictUnmet := false
	for i := range measures {
		m := &measures[i]
		cd := dataSource[m.DataName]
		converged := false
		if cd != nil && cd.HasPreviousIteration() {
			converged = m.Evaluate(cd.PreviousIteration(), cd.Values())
		}
		if converged {
			if m.Suffices {
				anySuffices = true
			}
		} else {
			allConverged = false
			if m.Strict {
				anyStrictUnmet = true
			}
		}
	}
	return allConverged || (anySuffices && !anyStrictUnmet)
}

// anyStrictMeasureUnconverged reports whether a Strict measure's last
// Evaluate call found it not converged. Consulted only once the iteration
// cap is reached, to choose between its two outcomes: a
// fatal error if a Strict measure is responsible, forced convergence
// otherwise.
func anyStrictMeasureUnconverged(measures []ConvergenceMeasure) bool {
	for i := range measures {
		if measures[i].Strict && !measures[i].Converged() {
			return true
		}
	}
	return false
}
