package metrics

import (
	"fmt"
	"io"
)

// IterationLog writes one of the tab-separated per-window log files
// (precice-<participant>-iterations.log,
// precice-<participant>-convergence.log): a fixed TimeWindow/TotalIterations/
// Iterations/Convergence prefix plus whatever extra columns the caller
// declares (QN column counts for the iterations log, one Res<abbrev>(data)
// column per logging convergence measure for the convergence log). The
// format needs nothing beyond tab-joined text on a plain io.Writer.
type IterationLog struct {
	w      io.Writer
	header []string
	wrote  bool
}

// NewIterationLog creates a log writer with the required four-column prefix
// plus extraColumns, writing to w. w may be nil, in which case WriteRow is a
// no-op (used on non-primary ranks; only the primary rank writes these
// files).
func NewIterationLog(w io.Writer, extraColumns ...string) *IterationLog {
	header := append([]string{"TimeWindow", "TotalIterations", "Iterations", "Convergence"}, extraColumns...)
	return &IterationLog{w: w, header: header}
}

// WriteRow appends one row: the window index, the cumulative iteration
// count, the current window's iteration count, whether it converged, and
// the extra column values in the order NewIterationLog declared them.
func (l *IterationLog) WriteRow(timeWindow, totalIterations, iterations int, convergence bool, extra ...float64) error {
	if l == nil || l.w == nil {
		return nil
	}
	if !l.wrote {
		if err := l.writeHeader(); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(l.w, "%d\t%d\t%d\t%v", timeWindow, totalIterations, iterations, convergence); err != nil {
		return err
	}
	for _, v := range extra {
		if _, err := fmt.Fprintf(l.w, "\t%g", v); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(l.w)
	return err
}

func (l *IterationLog) writeHeader() error {
	l.wrote = true
	for i, c := range l.header {
		sep := "\t"
		if i == 0 {
			sep = ""
		}
		if _, err := fmt.Fprintf(l.w, "%s%s", sep, c); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(l.w)
	return err
}
