// Package meshdata implements Data and GlobalData: the
// numeric fields attached to (or, for GlobalData, detached from) a Mesh,
// stored as dense vertex-major buffers with optional per-vertex gradients.
package meshdata

import (
	"github.com/meshcouple/coupler/couplingerrors"
)

// Data is a named numeric field attached to one mesh. Its storage is a
// dense buffer of length len(vertices) * Dimensions, laid out vertex-major.
// The buffer does not follow vertex insertions into the owning mesh: it
// changes size only when AllocateValues is called, and its size equals
// vertexCount * Dimensions right after that call.
type Data struct {
	ID         int
	Name       string
	Dimensions int // 1 = scalar, n = vector where n = space dimension
	HasGradient bool

	values   []float64
	gradient [][]float64 // shape (spaceDim) x (Dimensions * nVertices), only when HasGradient
	spaceDim int
}

// New creates a Data field. spaceDim is the owning mesh's coordinate
// dimensionality (needed only to size the gradient buffer).
func New(id int, name string, dimensions int, hasGradient bool, spaceDim int) *Data {
	return &Data{ID: id, Name: name, Dimensions: dimensions, HasGradient: hasGradient, spaceDim: spaceDim}
}

// Size returns len(values).
func (d *Data) Size() int { return len(d.values) }

// Values returns the live values buffer; callers must not retain it across
// an AllocateValues call that changes its size.
func (d *Data) Values() []float64 { return d.values }

// VertexCount returns the number of vertices the buffer is currently sized
// for.
func (d *Data) VertexCount() int {
	if d.Dimensions == 0 {
		return 0
	}
	return len(d.values) / d.Dimensions
}

// AllocateValues resizes the values buffer (and gradient buffer, if
// enabled) to match nVertices, preserving existing content and zero-filling
// new entries.
func (d *Data) AllocateValues(nVertices int) {
	want := nVertices * d.Dimensions
	if len(d.values) != want {
		grown := make([]float64, want)
		copy(grown, d.values)
		d.values = grown
	}
	if d.HasGradient {
		rowLen := want
		if len(d.gradient) != d.spaceDim {
			d.gradient = make([][]float64, d.spaceDim)
		}
		for i := range d.gradient {
			if len(d.gradient[i]) != rowLen {
				grown := make([]float64, rowLen)
				copy(grown, d.gradient[i])
				d.gradient[i] = grown
			}
		}
	}
}

// SetValues overwrites the entire buffer.
func (d *Data) SetValues(values []float64) error {
	if len(values) != len(d.values) {
		return couplingerrors.New(couplingerrors.UserError,
			"data %q: expected buffer of length %d, got %d", d.Name, len(d.values), len(values))
	}
	copy(d.values, values)
	return nil
}

// SetValue writes a single vertex's Dimensions-wide slot.
func (d *Data) SetValue(vertexIndex int, value []float64) error {
	if len(value) != d.Dimensions {
		return couplingerrors.New(couplingerrors.UserError,
			"data %q: expected %d components, got %d", d.Name, d.Dimensions, len(value))
	}
	off := vertexIndex * d.Dimensions
	if off < 0 || off+d.Dimensions > len(d.values) {
		return couplingerrors.New(couplingerrors.UserError,
			"data %q: vertex index %d out of range", d.Name, vertexIndex)
	}
	copy(d.values[off:off+d.Dimensions], value)
	return nil
}

// Value reads a single vertex's Dimensions-wide slot.
func (d *Data) Value(vertexIndex int) ([]float64, error) {
	off := vertexIndex * d.Dimensions
	if off < 0 || off+d.Dimensions > len(d.values) {
		return nil, couplingerrors.New(couplingerrors.UserError,
			"data %q: vertex index %d out of range", d.Name, vertexIndex)
	}
	out := make([]float64, d.Dimensions)
	copy(out, d.values[off:off+d.Dimensions])
	return out, nil
}

// SetGradient writes the column-blockwise gradient for a single vertex:
// grad has shape spaceDim x Dimensions.
func (d *Data) SetGradient(vertexIndex int, grad [][]float64) error {
	if !d.HasGradient {
		return couplingerrors.New(couplingerrors.UserError, "data %q does not carry gradients", d.Name)
	}
	if len(grad) != d.spaceDim {
		return couplingerrors.New(couplingerrors.UserError,
			"data %q: expected %d gradient rows (space dim), got %d", d.Name, d.spaceDim, len(grad))
	}
	off := vertexIndex * d.Dimensions
	for row := range grad {
		if len(grad[row]) != d.Dimensions {
			return couplingerrors.New(couplingerrors.UserError,
				"data %q: gradient row %d: expected %d components, got %d", d.Name, row, d.Dimensions, len(grad[row]))
		}
		if off+d.Dimensions > len(d.gradient[row]) {
			return couplingerrors.New(couplingerrors.UserError,
				"data %q: vertex index %d out of range for gradient", d.Name, vertexIndex)
		}
		copy(d.gradient[row][off:off+d.Dimensions], grad[row])
	}
	return nil
}

// Gradient returns the full gradient buffer (spaceDim rows).
func (d *Data) Gradient() [][]float64 { return d.gradient }
