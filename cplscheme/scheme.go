// Package cplscheme implements the coupling scheme engine:
// the time/iteration state machine governing serial/parallel,
// explicit/implicit exchange ordering, fixed-point convergence
// measurement, and acceleration, across the serial/parallel and
// explicit/implicit scheme variants.
package cplscheme

import (
	"context"

	"github.com/meshcouple/coupler/metrics"
)

// Scheme is the common contract every coupling-scheme variant implements.
type Scheme interface {
	Initialize(ctx context.Context, startTime float64, startWindow int) error
	ReceiveResultOfFirstAdvance(ctx context.Context) error
	FirstSynchronization(ctx context.Context) error
	FirstExchange(ctx context.Context) error
	SecondSynchronization(ctx context.Context) error
	SecondExchange(ctx context.Context) error
	Finalize(ctx context.Context) error

	IsCouplingOngoing() bool
	IsTimeWindowComplete() bool
	HasDataBeenReceived() bool
	HasTimeWindowSize() bool
	// AnnouncesTimeWindowSize reports whether this participant is the one
	// measuring and announcing the window size to its peer (the
	// first-participant method); such a participant may only read at the
	// very end of the window.
	AnnouncesTimeWindowSize() bool
	GetTimeWindowSize() float64
	GetTime() float64
	GetTimeWindows() int
	GetThisTimeWindowRemainder() float64
	GetNextTimestepMaxLength() float64

	AddComputedTime(dt float64) error

	RequiresAction(a Action) bool

	// SendsInitializedData reports whether Solver Interface initialize()
	// must perform write mappings for this scheme's send data before
	// delegating to Initialize.
	SendsInitializedData() bool
	// WillDataBeExchanged reports whether the upcoming phase sequence will
	// exchange data at all, used by advance() to decide whether to run
	// write mappings first.
	WillDataBeExchanged() bool
}

// LogSettable is implemented by every scheme variant that embeds base
// (everything but Compositional), since base's SetLogs method promotes.
// Only the implicit variants (SerialImplicit, ParallelImplicit,
// MultiCoupling) ever call base.logIteration, so attaching logs to an
// explicit scheme is harmless but writes nothing; build.go only attaches
// logs where there are sub-iterations to record. Callers type-assert for
// this capability rather than requiring it on Scheme, since Compositional
// has no base of its own to promote it from.
type LogSettable interface {
	SetLogs(iterationLog, convergenceLog *metrics.IterationLog)
}
