package precice

import (
	"math"

	"github.com/meshcouple/coupler/couplingerrors"
	"github.com/meshcouple/coupler/meshdata"
)

// resolveData looks up the Data buffer a read/write-data call targets,
// preferring the (mesh, name) pair and falling back to a global-data
// buffer with the same name.
func (si *SolverInterface) resolveData(meshName, dataName string) (*meshdata.Data, error) {
	if meshName != "" {
		if d, ok := si.meshData[meshDataKey(meshName, dataName)]; ok {
			return d, nil
		}
	}
	if d, ok := si.data[dataName]; ok {
		return d, nil
	}
	return nil, couplingerrors.New(couplingerrors.UserError,
		"precice: data %q is not declared for mesh %q", dataName, meshName)
}

// requireWritable rejects data writes once Finalize or a fatal error has
// parked the interface in its terminal state.
func (si *SolverInterface) requireWritable() error {
	if si.state == StateFinalized {
		return couplingerrors.Wrap(couplingerrors.UserError, couplingerrors.ErrAlreadyFinalized, "precice")
	}
	if si.state == StateSink {
		return couplingerrors.Wrap(couplingerrors.UserError, couplingerrors.ErrSinkState, "precice")
	}
	return nil
}

// WriteData writes a single vertex's value for dataName on meshName. It is
// valid both before initialize() (for data exchanged at window start) and
// between advance() calls (for data exchanged on every window).
func (si *SolverInterface) WriteData(meshName, dataName string, vertexID int, value []float64) error {
	if err := si.requireWritable(); err != nil {
		return err
	}
	d, err := si.resolveData(meshName, dataName)
	if err != nil {
		return err
	}
	return d.SetValue(vertexID, value)
}

// WriteBlockData writes values for every vertex in vertexIDs for dataName
// on meshName, in order.
func (si *SolverInterface) WriteBlockData(meshName, dataName string, vertexIDs []int, values []float64) error {
	if err := si.requireWritable(); err != nil {
		return err
	}
	d, err := si.resolveData(meshName, dataName)
	if err != nil {
		return err
	}
	if len(values) != len(vertexIDs)*d.Dimensions {
		return couplingerrors.New(couplingerrors.UserError,
			"precice: writeBlockData %q: expected %d values for %d vertices, got %d",
			dataName, len(vertexIDs)*d.Dimensions, len(vertexIDs), len(values))
	}
	for i, id := range vertexIDs {
		if err := d.SetValue(id, values[i*d.Dimensions:(i+1)*d.Dimensions]); err != nil {
			return err
		}
	}
	return nil
}

// WriteGradientData writes the gradient for a single vertex's value for
// dataName. The write is a silent no-op unless
// RequiresGradientDataFor(meshName, dataName) holds; only then is the
// input buffer validated against spaceDim x dataDim and stored.
func (si *SolverInterface) WriteGradientData(meshName, dataName string, vertexID int, grad [][]float64) error {
	if err := si.requireWritable(); err != nil {
		return err
	}
	if !si.RequiresGradientDataFor(meshName, dataName) {
		return nil
	}
	d, err := si.resolveData(meshName, dataName)
	if err != nil {
		return err
	}
	return d.SetGradient(vertexID, grad)
}

// ReadData reads a single vertex's value for dataName, sampled at
// relativeReadTime past the solver's current time in the window
// ([0, windowRemainder]). windowRemainder samples the most recent data
// received; at the start of a window, 0 samples the window-start value
// (the last converged value).
func (si *SolverInterface) ReadData(meshName, dataName string, vertexID int, relativeReadTime float64) ([]float64, error) {
	if err := si.requireState(StateInitialized); err != nil {
		return nil, err
	}
	if relativeReadTime < 0 {
		return nil, couplingerrors.New(couplingerrors.UserError,
			"precice: readData %q: relativeReadTime must be >= 0, got %g", dataName, relativeReadTime)
	}
	// The participant announcing the window size defines the window's end
	// itself, so samples anywhere but there are meaningless to it.
	if si.scheme != nil && si.scheme.AnnouncesTimeWindowSize() &&
		math.Abs(relativeReadTime-si.windowRemainder) > 1e-10 {
		return nil, couplingerrors.New(couplingerrors.UserError,
			"precice: readData %q: this participant sets the time window size and may only read at the window end (relativeReadTime %g, remainder %g)",
			dataName, relativeReadTime, si.windowRemainder)
	}
	d, err := si.resolveData(meshName, dataName)
	if err != nil {
		return nil, err
	}

	values := d.Values()
	// The waveform tracks the exchanged buffer for this data name; a
	// mapped-to copy of the same field on another mesh is read directly,
	// since its values are produced by the read mapping rather than
	// received over the wire.
	if w, ok := si.waves[dataName]; ok {
		if cd, exchanged := si.cpData[dataName]; exchanged && cd.Data == d {
			t := si.normalizeReadTime(relativeReadTime)
			values = w.SampleAt(t)
		}
	}
	off := vertexID * d.Dimensions
	if off < 0 || off+d.Dimensions > len(values) {
		return nil, couplingerrors.New(couplingerrors.UserError,
			"precice: readData %q: vertex id %d out of range", dataName, vertexID)
	}
	out := make([]float64, d.Dimensions)
	copy(out, values[off:off+d.Dimensions])
	return out, nil
}

// ReadBlockData reads values for every vertex in vertexIDs, in order.
func (si *SolverInterface) ReadBlockData(meshName, dataName string, vertexIDs []int, relativeReadTime float64) ([]float64, error) {
	out := make([]float64, 0, len(vertexIDs))
	for _, id := range vertexIDs {
		v, err := si.ReadData(meshName, dataName, id, relativeReadTime)
		if err != nil {
			return nil, err
		}
		out = append(out, v...)
	}
	return out, nil
}

// normalizeReadTime converts an absolute relativeReadTime in
// [0, windowRemainder] into the waveform's [0,1] node space as
// n = (W - r + τ)/W, where W is the full window size, r is
// the remaining window length at the time of the last Initialize/Advance
// call, and τ is relativeReadTime. Without a fixed window size (or before
// one has been established), every read samples the most recent value.
func (si *SolverInterface) normalizeReadTime(relativeReadTime float64) float64 {
	if si.scheme == nil || !si.scheme.HasTimeWindowSize() {
		return 1
	}
	w := si.scheme.GetTimeWindowSize()
	if w <= 0 {
		return 1
	}
	t := (w - si.windowRemainder + relativeReadTime) / w
	if t > 1 {
		t = 1
	}
	if t < 0 {
		t = 0
	}
	return t
}
